package kernel

import (
	"context"
	"slices"

	"github.com/oneconcern/microkernel/pkg/jsop"
	"github.com/oneconcern/microkernel/pkg/model"
)

// Diff computes the changes turning the subtree at path in one revision into the same subtree in
// another revision. Intermediate revisions are consolidated, and the revisions may come in any order.
//
// The zero to revision designates the head. An empty path designates the root.
// Applying the diff with absolute paths to the from revision reproduces the to revision.
func (k *MicroKernel) Diff(ctx context.Context, from, to model.Revision, pth string) (string, error) {
	if pth == "" {
		pth = model.Root
	}
	before, err := k.nodeAtRevision(ctx, pth, from)
	if err != nil {
		return "", err
	}
	after, err := k.nodeAtRevision(ctx, pth, to)
	if err != nil {
		return "", err
	}

	var b jsop.Builder
	switch {
	case before == nil && after == nil:
	case before == nil:
		content, err := k.subtreeJSON(ctx, after)
		if err != nil {
			return "", err
		}
		b.AddNode(pth, content)
	case after == nil:
		b.RemoveNode(pth)
	default:
		if err = k.diffNodes(ctx, &b, pth, before, after); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func (k *MicroKernel) diffNodes(ctx context.Context, b *jsop.Builder, pth string, before, after *model.Node) error {
	if before.ID() == after.ID() {
		return nil
	}

	for _, name := range before.PropertyNames() {
		if _, ok := after.Property(name); !ok {
			b.SetProperty(model.Concat(pth, name), "null")
		}
	}
	for _, name := range after.PropertyNames() {
		value, _ := after.Property(name)
		if old, ok := before.Property(name); !ok || old != value {
			b.SetProperty(model.Concat(pth, name), value)
		}
	}

	removed, moved, added := renames(before, after)
	for _, entry := range removed {
		b.RemoveNode(model.Concat(pth, entry.Name))
	}
	for _, m := range moved {
		b.MoveNode(model.Concat(pth, m.from), model.Concat(pth, m.to))
	}
	for _, entry := range added {
		child, err := k.store.GetNode(ctx, entry.ID)
		if err != nil {
			return err
		}
		content, err := k.subtreeJSON(ctx, child)
		if err != nil {
			return err
		}
		b.AddNode(model.Concat(pth, entry.Name), content)
	}
	for _, entry := range before.DiffModified(after) {
		oldChild, err := k.store.GetNode(ctx, entry.ID)
		if err != nil {
			return err
		}
		current, _ := after.Child(entry.Name)
		newChild, err := k.store.GetNode(ctx, current.ID)
		if err != nil {
			return err
		}
		if err = k.diffNodes(ctx, b, model.Concat(pth, entry.Name), oldChild, newChild); err != nil {
			return err
		}
	}
	return nil
}

type rename struct {
	from, to string
}

// renames pairs the removed and added children holding the same node into moves.
// With ordered children, the pairing is kept only when replaying it restores the order of after.
func renames(before, after *model.Node) (removed []model.ChildEntry, moved []rename, added []model.ChildEntry) {
	gone := before.DiffRemoved(after)
	fresh := before.DiffAdded(after)

	byID := make(map[model.ID][]int, len(gone))
	for i, entry := range gone {
		byID[entry.ID] = append(byID[entry.ID], i)
	}
	paired := make([]bool, len(gone))
	for _, entry := range fresh {
		candidates := byID[entry.ID]
		if len(candidates) == 0 {
			added = append(added, entry)
			continue
		}
		i := candidates[0]
		byID[entry.ID] = candidates[1:]
		paired[i] = true
		moved = append(moved, rename{from: gone[i].Name, to: entry.Name})
	}
	if len(moved) == 0 {
		return gone, nil, fresh
	}
	for i, entry := range gone {
		if !paired[i] {
			removed = append(removed, entry)
		}
	}

	if before.Ordered() && !slices.Equal(replay(before.ChildNames(), removed, moved, added), after.ChildNames()) {
		return gone, nil, fresh
	}
	return removed, moved, added
}

// replay the child order obtained by removals, then renames in place, then appended additions
func replay(names []string, removed []model.ChildEntry, moved []rename, added []model.ChildEntry) []string {
	drop := make(map[string]bool, len(removed))
	for _, entry := range removed {
		drop[entry.Name] = true
	}
	to := make(map[string]string, len(moved))
	for _, m := range moved {
		to[m.from] = m.to
	}
	order := make([]string, 0, len(names)+len(added))
	for _, name := range names {
		if drop[name] {
			continue
		}
		if renamed, ok := to[name]; ok {
			name = renamed
		}
		order = append(order, name)
	}
	for _, entry := range added {
		order = append(order, entry.Name)
	}
	return order
}
