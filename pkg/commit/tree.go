package commit

import (
	"context"
	"sort"

	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/jsop"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
	"go.uber.org/zap"
)

// NodeReader fetches persisted nodes
type NodeReader interface {
	GetNode(context.Context, model.ID) (*model.Node, error)
}

// NodeWriter persists nodes
type NodeWriter interface {
	PutNode(context.Context, *model.Node) error
}

// Tree is a node tree being edited.
//
// Nodes are loaded lazily from a reader and staged in memory. Persisted
// nodes are never altered: Persist writes the new nodes bottom-up and
// yields the id of the new root.
type Tree struct {
	reader   NodeReader
	root     *stagedNode
	ordered  bool
	affected map[string]struct{}
	l        *zap.Logger
}

type stagedNode struct {
	origID   model.ID // zero for added nodes
	node     *model.MutableNode
	children map[string]*stagedNode
}

func (s *stagedNode) clone() *stagedNode {
	c := &stagedNode{
		origID:   s.origID,
		node:     s.node.Clone(),
		children: make(map[string]*stagedNode, len(s.children)),
	}
	for name, child := range s.children {
		c.children[name] = child.clone()
	}
	return c
}

// NewTree stages the tree rooted at some node
func NewTree(ctx context.Context, reader NodeReader, rootID model.ID, opts ...TreeOption) (*Tree, error) {
	t := &Tree{
		reader:   reader,
		affected: make(map[string]struct{}),
		l:        zap.NewNop(),
	}
	for _, apply := range opts {
		apply(t)
	}
	root, err := t.load(ctx, rootID)
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

func (t *Tree) load(ctx context.Context, id model.ID) (*stagedNode, error) {
	node, err := t.reader.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	return &stagedNode{
		origID:   id,
		node:     node.Mutate(),
		children: make(map[string]*stagedNode),
	}, nil
}

func (t *Tree) child(ctx context.Context, parent *stagedNode, name string) (*stagedNode, error) {
	if staged, ok := parent.children[name]; ok {
		return staged, nil
	}
	entry, ok := parent.node.Child(name)
	if !ok {
		return nil, status.ErrNotFound.WrapMessage("no child node %q", name)
	}
	staged, err := t.load(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	parent.children[name] = staged
	return staged, nil
}

func (t *Tree) resolve(ctx context.Context, pth string) (*stagedNode, error) {
	current := t.root
	for _, name := range model.Names(pth) {
		next, err := t.child(ctx, current, name)
		if err != nil {
			if errors.Is(err, status.ErrNotFound) {
				return nil, status.ErrNotFound.WrapMessage("node %s", pth)
			}
			return nil, err
		}
		current = next
	}
	return current, nil
}

func (t *Tree) touch(paths ...string) {
	for _, pth := range paths {
		t.affected[pth] = struct{}{}
	}
}

// AffectedPaths yields the sorted paths of the nodes altered by the instructions applied so far
func (t *Tree) AffectedPaths() []string {
	paths := make([]string, 0, len(t.affected))
	for pth := range t.affected {
		paths = append(paths, pth)
	}
	sort.Strings(paths)
	return paths
}

// Apply a single instruction.
//
// Errors match status.ErrConflict when a precondition fails (e.g. adding an
// existing node), status.ErrNotFound when a source is missing.
func (t *Tree) Apply(ctx context.Context, i jsop.Instruction) error {
	t.l.Debug("applying instruction", zap.Stringer("instruction", i))
	switch i.Kind {
	case jsop.AddNode:
		return t.addNode(ctx, i.Path, i.Name)
	case jsop.RemoveNode:
		return t.removeNode(ctx, i.Path, i.Name)
	case jsop.MoveNode:
		return t.moveNode(ctx, i.Path, i.Dest)
	case jsop.CopyNode:
		return t.copyNode(ctx, i.Path, i.Dest)
	case jsop.AddProperty:
		return t.addProperty(ctx, i.Path, i.Name, i.Value)
	case jsop.SetProperty:
		return t.setProperty(ctx, i.Path, i.Name, i.Value)
	default:
		return status.ErrInvalidArgument.WrapMessage("unknown instruction kind %v", i.Kind)
	}
}

func (t *Tree) addNode(ctx context.Context, parentPath, name string) error {
	parent, err := t.resolve(ctx, parentPath)
	if err != nil {
		return err
	}
	if !parent.node.AddChild(name, "") {
		return status.ErrConflict.WrapMessage("node %s already exists", model.Concat(parentPath, name))
	}
	parent.children[name] = &stagedNode{
		node:     model.NewMutableNode(t.ordered),
		children: make(map[string]*stagedNode),
	}
	t.touch(parentPath, model.Concat(parentPath, name))
	return nil
}

func (t *Tree) removeNode(ctx context.Context, parentPath, name string) error {
	parent, err := t.resolve(ctx, parentPath)
	if err != nil {
		return err
	}
	if !parent.node.RemoveChild(name) {
		return status.ErrNotFound.WrapMessage("node %s", model.Concat(parentPath, name))
	}
	delete(parent.children, name)
	t.touch(parentPath, model.Concat(parentPath, name))
	return nil
}

// source resolves the parent of a node to move or copy, and checks that the node exists
func (t *Tree) source(ctx context.Context, src string) (*stagedNode, string, error) {
	srcParentPath, srcName := model.Split(src)
	srcParent, err := t.resolve(ctx, srcParentPath)
	if err != nil {
		return nil, "", err
	}
	if !srcParent.node.HasChild(srcName) {
		return nil, "", status.ErrNotFound.WrapMessage("node %s", src)
	}
	return srcParent, srcName, nil
}

// destination resolves the parent of a move or copy target, and checks that the target is free
func (t *Tree) destination(ctx context.Context, dst string) (*stagedNode, string, error) {
	dstParentPath, dstName := model.Split(dst)
	dstParent, err := t.resolve(ctx, dstParentPath)
	if err != nil {
		return nil, "", err
	}
	if dstParent.node.HasChild(dstName) {
		return nil, "", status.ErrConflict.WrapMessage("node %s already exists", dst)
	}
	return dstParent, dstName, nil
}

func (t *Tree) moveNode(ctx context.Context, src, dst string) error {
	if src == dst || model.IsAncestor(src, dst) {
		return status.ErrConflict.WrapMessage("cannot move %s into itself", src)
	}
	srcParent, srcName, err := t.source(ctx, src)
	if err != nil {
		return err
	}
	dstParent, dstName, err := t.destination(ctx, dst)
	if err != nil {
		return err
	}

	staged, isStaged := srcParent.children[srcName]
	if srcParent == dstParent {
		srcParent.node.RenameChild(srcName, dstName)
	} else {
		entry, _ := srcParent.node.Child(srcName)
		srcParent.node.RemoveChild(srcName)
		dstParent.node.AddChild(dstName, entry.ID)
	}
	if isStaged {
		delete(srcParent.children, srcName)
		dstParent.children[dstName] = staged
	}
	srcParentPath, _ := model.Split(src)
	dstParentPath, _ := model.Split(dst)
	t.touch(srcParentPath, dstParentPath, src, dst)
	return nil
}

func (t *Tree) copyNode(ctx context.Context, src, dst string) error {
	if src == dst {
		return status.ErrConflict.WrapMessage("node %s already exists", dst)
	}
	srcParent, srcName, err := t.source(ctx, src)
	if err != nil {
		return err
	}
	// snapshot the source before the destination is created, which may be a descendant of the source
	entry, _ := srcParent.node.Child(srcName)
	var snapshot *stagedNode
	if staged, ok := srcParent.children[srcName]; ok {
		snapshot = staged.clone()
	}

	dstParent, dstName, err := t.destination(ctx, dst)
	if err != nil {
		return err
	}
	dstParent.node.AddChild(dstName, entry.ID)
	if snapshot != nil {
		dstParent.children[dstName] = snapshot
	}
	dstParentPath, _ := model.Split(dst)
	t.touch(dstParentPath, dst)
	return nil
}

func (t *Tree) addProperty(ctx context.Context, pth, name, value string) error {
	node, err := t.resolve(ctx, pth)
	if err != nil {
		return err
	}
	if node.node.HasProperty(name) {
		return status.ErrConflict.WrapMessage("property %s already exists", model.Concat(pth, name))
	}
	if value == "null" {
		return nil
	}
	node.node.SetProperty(name, value)
	t.touch(pth)
	return nil
}

func (t *Tree) setProperty(ctx context.Context, pth, name, value string) error {
	node, err := t.resolve(ctx, pth)
	if err != nil {
		return err
	}
	if value == "null" {
		if node.node.RemoveProperty(name) {
			t.touch(pth)
		}
		return nil
	}
	node.node.SetProperty(name, value)
	t.touch(pth)
	return nil
}

// Persist writes the staged nodes, children first, and yields the id of the root.
//
// Nodes whose content is unchanged are not written again.
func (t *Tree) Persist(ctx context.Context, w NodeWriter) (model.ID, error) {
	return t.persist(ctx, w, t.root)
}

func (t *Tree) persist(ctx context.Context, w NodeWriter, s *stagedNode) (model.ID, error) {
	for name, child := range s.children {
		id, err := t.persist(ctx, w, child)
		if err != nil {
			return "", err
		}
		s.node.SetChildID(name, id)
	}
	node, err := s.node.Build()
	if err != nil {
		return "", status.ErrInvalidArgument.Wrap(err)
	}
	if node.ID() == s.origID {
		return s.origID, nil
	}
	if err = w.PutNode(ctx, node); err != nil {
		return "", err
	}
	return node.ID(), nil
}
