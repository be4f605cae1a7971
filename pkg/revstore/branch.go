package revstore

import (
	"context"

	"github.com/oneconcern/microkernel/pkg/commit"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
)

// CommitGetter reads commits
type CommitGetter interface {
	GetCommit(context.Context, model.Revision) (*model.Commit, error)
}

// nodeStore is the part of a revision store needed to build trees
type nodeStore interface {
	GetNode(context.Context, model.ID) (*model.Node, error)
	PutNode(context.Context, *model.Node) error
	GetCommit(context.Context, model.Revision) (*model.Commit, error)
	PutCommit(context.Context, *model.Commit) (model.Revision, error)
}

// CommitOnBranch applies a commit on top of a branch revision.
//
// The new commit stays on the branch: its parent is the base revision and the head does not move.
func CommitOnBranch(ctx context.Context, store nodeStore, c *commit.Commit, base *model.Commit, opts ...commit.TreeOption) (model.Revision, error) {
	if !base.IsBranch() {
		return 0, status.ErrInvalidArgument.WrapMessage("revision %v is not on a branch", base.ID)
	}
	tree, err := commit.NewTree(ctx, store, base.RootNodeID, opts...)
	if err != nil {
		return 0, err
	}
	if err = c.Apply(ctx, tree); err != nil {
		return 0, err
	}
	rootID, err := tree.Persist(ctx, store)
	if err != nil {
		return 0, err
	}
	rec := c.Record(0, base.ID, base.ID, rootID, tree.AffectedPaths())
	rec.BranchID = base.BranchID
	return store.PutCommit(ctx, rec)
}

// TrunkHistory walks the parents of a trunk commit, from the newest to the oldest.
//
// The walk stops when fn returns false.
func TrunkHistory(ctx context.Context, store CommitGetter, from model.Revision, fn func(*model.Commit) bool) error {
	for rev := from; !rev.IsZero(); {
		c, err := store.GetCommit(ctx, rev)
		if err != nil {
			return err
		}
		if !fn(c) {
			return nil
		}
		rev = c.ParentID
	}
	return nil
}
