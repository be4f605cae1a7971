package kernel

import (
	"context"

	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Branch creates a private branch off a trunk revision, and yields its first revision.
//
// Commits based on a branch revision stay on the branch: the head does not move until the
// branch is merged. The zero revision designates the head.
func (k *MicroKernel) Branch(ctx context.Context, trunkRevision model.Revision) (model.Revision, error) {
	base, err := k.resolve(ctx, trunkRevision)
	if err != nil {
		return 0, err
	}
	if base.IsBranch() {
		return 0, status.ErrInvalidArgument.WrapMessage("revision %v is on branch %s", base.ID, base.BranchID)
	}
	branchID, err := ksuid.NewRandom()
	if err != nil {
		return 0, status.ErrBackend.Wrap(err)
	}
	rev, err := k.store.PutCommit(ctx, &model.Commit{
		ParentID:     base.ID,
		BaseRevision: base.ID,
		BranchID:     branchID.String(),
		Timestamp:    model.NewTimestamp(),
		Message:      "branch",
		RootNodeID:   base.RootNodeID,
	})
	if err != nil {
		return 0, err
	}
	k.l.Info("branch created", zap.Stringer("revision", rev), zap.Stringer("base", base.ID), zap.String("branch", branchID.String()))
	return rev, nil
}

// branchBase walks back a branch to the trunk revision it was created from
func (k *MicroKernel) branchBase(ctx context.Context, c *model.Commit) (*model.Commit, error) {
	for c.IsBranch() {
		parent, err := k.store.GetCommit(ctx, c.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.BranchID != c.BranchID {
			return parent, nil
		}
		c = parent
	}
	return nil, status.ErrInvalidArgument.WrapMessage("revision %v is not on a branch", c.ID)
}

// Merge replays the changes made on a branch onto the trunk, and yields the new head revision.
func (k *MicroKernel) Merge(ctx context.Context, branchRevision model.Revision, message string) (model.Revision, error) {
	if branchRevision.IsZero() {
		return 0, status.ErrInvalidArgument.WrapMessage("a branch revision is required")
	}
	tip, err := k.store.GetCommit(ctx, branchRevision)
	if err != nil {
		return 0, err
	}
	base, err := k.branchBase(ctx, tip)
	if err != nil {
		return 0, err
	}
	diff, err := k.Diff(ctx, base.ID, tip.ID, model.Root)
	if err != nil {
		return 0, err
	}
	rev, err := k.Commit(ctx, "", diff, base.ID, message)
	if err != nil {
		if errors.Is(err, status.ErrConflict) {
			k.l.Info("branch merge conflicts with the trunk", zap.Stringer("branch", tip.ID), zap.Error(err))
		}
		return 0, err
	}
	k.l.Info("branch merged", zap.Stringer("branch", tip.ID), zap.Stringer("revision", rev))
	return rev, nil
}
