package kernel

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
)

// ChildNodeCount is the pseudo property holding the number of children in JSON trees
const ChildNodeCount = ":childNodeCount"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func checkPath(pth string) error {
	if !model.IsAbsolute(pth) {
		return status.ErrInvalidArgument.WrapMessage("path %q is not absolute", pth)
	}
	if err := model.ValidatePath(pth); err != nil {
		return status.ErrInvalidArgument.Wrap(err)
	}
	return nil
}

// nodeAt walks down from the root node of a revision.
// A missing node yields nil, without error.
func (k *MicroKernel) nodeAt(ctx context.Context, root *model.Node, pth string) (*model.Node, error) {
	node := root
	for _, name := range model.Names(pth) {
		entry, ok := node.Child(name)
		if !ok {
			return nil, nil
		}
		var err error
		if node, err = k.store.GetNode(ctx, entry.ID); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (k *MicroKernel) nodeAtRevision(ctx context.Context, pth string, rev model.Revision) (*model.Node, error) {
	if err := checkPath(pth); err != nil {
		return nil, err
	}
	c, err := k.resolve(ctx, rev)
	if err != nil {
		return nil, err
	}
	root, err := k.store.GetNode(ctx, c.RootNodeID)
	if err != nil {
		return nil, err
	}
	return k.nodeAt(ctx, root, pth)
}

// NodeExists tells if a node exists at some revision
func (k *MicroKernel) NodeExists(ctx context.Context, pth string, rev model.Revision) (bool, error) {
	node, err := k.nodeAtRevision(ctx, pth, rev)
	if err != nil {
		return false, err
	}
	return node != nil, nil
}

// GetChildNodeCount yields the number of children of a node at some revision
func (k *MicroKernel) GetChildNodeCount(ctx context.Context, pth string, rev model.Revision) (int, error) {
	node, err := k.nodeAtRevision(ctx, pth, rev)
	if err != nil {
		return 0, err
	}
	if node == nil {
		return 0, status.ErrNotFound.WrapMessage("no node at %q in revision %v", pth, rev)
	}
	return node.ChildCount(), nil
}

// GetNodes serializes the tree rooted at a node as a JSON object.
//
// Properties come first, then the number of children, then the children. At depth 0, children are
// listed as empty objects. Each level of depth adds one level of children with their properties.
// Offset and count only apply to the children of the top node; a negative count means no limit.
func (k *MicroKernel) GetNodes(ctx context.Context, pth string, rev model.Revision, depth, offset, count int) (string, error) {
	node, err := k.nodeAtRevision(ctx, pth, rev)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", status.ErrNotFound.WrapMessage("no node at %q in revision %v", pth, rev)
	}
	if depth < 0 {
		return "", status.ErrInvalidArgument.WrapMessage("negative depth %d", depth)
	}

	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)
	if err = k.writeTree(ctx, stream, node, depth, offset, count, true); err != nil {
		return "", err
	}
	if stream.Error != nil {
		return "", stream.Error
	}
	return string(stream.Buffer()), nil
}

// writeTree writes the properties and children of a node. A negative depth means the whole subtree.
func (k *MicroKernel) writeTree(ctx context.Context, stream *jsoniter.Stream, node *model.Node, depth, offset, count int, counted bool) error {
	stream.WriteObjectStart()
	more := false
	field := func(name string) {
		if more {
			stream.WriteMore()
		}
		more = true
		stream.WriteObjectField(name)
	}

	for _, name := range node.PropertyNames() {
		value, _ := node.Property(name)
		field(name)
		stream.WriteRaw(value)
	}
	if counted {
		field(ChildNodeCount)
		stream.WriteInt(node.ChildCount())
	}
	next := depth - 1
	if depth < 0 {
		next = depth
	}
	for _, entry := range node.ChildEntries(offset, count) {
		field(entry.Name)
		if depth == 0 {
			stream.WriteEmptyObject()
			continue
		}
		child, err := k.store.GetNode(ctx, entry.ID)
		if err != nil {
			return err
		}
		if err = k.writeTree(ctx, stream, child, next, 0, -1, counted); err != nil {
			return err
		}
	}
	stream.WriteObjectEnd()
	return nil
}

// subtreeJSON serializes a whole subtree as the content of an added node, without pseudo properties
func (k *MicroKernel) subtreeJSON(ctx context.Context, node *model.Node) (string, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)
	if err := k.writeTree(ctx, stream, node, -1, 0, -1, false); err != nil {
		return "", err
	}
	if stream.Error != nil {
		return "", stream.Error
	}
	return string(stream.Buffer()), nil
}
