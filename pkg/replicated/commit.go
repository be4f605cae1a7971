package replicated

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oneconcern/microkernel/pkg/commit"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/metrics"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/revstore"
	"github.com/oneconcern/microkernel/pkg/status"
	"go.uber.org/zap"
)

// Commit applies a commit on the shared head.
//
// Each attempt reserves a candidate revision, builds the new tree on the head it observed and
// installs it with a compare-and-set. An attempt which loses the race leaves a failed commit
// record behind and is retried. Commits based on a branch revision stay on that branch.
func (s *Store) Commit(ctx context.Context, c *commit.Commit, base model.Revision) (model.Revision, error) {
	start := time.Now()
	if err := s.verifyInitialized(); err != nil {
		return 0, err
	}
	baseCommit, err := s.GetCommit(ctx, base)
	if err != nil {
		return 0, err
	}
	if baseCommit.IsBranch() {
		rev, err := revstore.CommitOnBranch(ctx, s, c, baseCommit, s.treeOptions()...)
		s.recordCommit(err, start)
		return rev, err
	}

	var (
		rev     model.Revision
		attempt int
	)
	op := func() error {
		attempt++
		if attempt > 1 {
			s.m.Retry()
		}
		var e error
		rev, e = s.attempt(ctx, c, base)
		return s.classify(ctx, e)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(s.retries)), ctx)
	err = backoff.Retry(op, bo)
	s.recordCommit(err, start)
	if err != nil {
		s.l.Debug("commit failed", zap.Stringer("base", base), zap.Int("attempts", attempt), zap.Error(err))
		return 0, err
	}
	s.l.Info("committed",
		zap.Stringer("revision", rev),
		zap.Stringer("base", base),
		zap.Int("attempts", attempt),
		zap.String("message", c.Message),
	)
	return rev, nil
}

// attemptError carries the head observed by a failed attempt
type attemptError struct {
	err   error
	prior model.Revision
	raced bool
}

func (e *attemptError) Error() string { return e.err.Error() }

func (e *attemptError) Unwrap() error { return e.err }

// classify tells retryable failures from permanent ones.
//
// A lost race is always retried. An instruction which fails on the observed head is retried only
// if the head has moved meanwhile, since the next attempt sees a different tree.
func (s *Store) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var ae *attemptError
	if !errors.As(err, &ae) {
		return backoff.Permanent(err)
	}
	if ae.raced {
		return ae.err
	}
	if !errors.Is(ae.err, status.ErrConflict) && !errors.Is(ae.err, status.ErrNotFound) {
		return backoff.Permanent(ae.err)
	}
	head, herr := s.shared.ReadHead(ctx)
	if herr != nil {
		return backoff.Permanent(herr)
	}
	if head == ae.prior {
		return backoff.Permanent(ae.err)
	}
	return ae.err
}

func (s *Store) attempt(ctx context.Context, c *commit.Commit, base model.Revision) (model.Revision, error) {
	s.LockHead()
	defer s.UnlockHead()

	prior, candidate, err := s.shared.ReadAndIncHead(ctx)
	if err != nil {
		return 0, err
	}
	priorCommit, err := s.GetCommit(ctx, prior)
	if err != nil {
		return 0, err
	}
	tree, err := commit.NewTree(ctx, s, priorCommit.RootNodeID, s.treeOptions()...)
	if err != nil {
		return 0, err
	}
	if err = c.Apply(ctx, tree); err != nil {
		return 0, &attemptError{err: err, prior: prior}
	}
	affected := tree.AffectedPaths()
	if prior != base {
		s.logMerge(ctx, prior, base, affected)
	}

	rootID, err := tree.Persist(ctx, s)
	if err != nil {
		return 0, err
	}
	rec := c.Record(candidate, prior, base, rootID, affected)
	if err = s.records.WriteCommit(ctx, rec); err != nil {
		return 0, err
	}
	swapped, err := s.shared.CompareAndSetHead(ctx, prior, candidate)
	if err != nil {
		return 0, err
	}
	if !swapped {
		if err = s.markFailed(ctx, rec); err != nil {
			return 0, err
		}
		return 0, &attemptError{
			err:   status.ErrConflict.WrapMessage("head moved from %v while committing %v", prior, candidate),
			prior: prior,
			raced: true,
		}
	}
	return candidate, nil
}

// logMerge reports the paths touched both by this commit and by the trunk commits made since its base.
//
// The commit has been applied on the current head: concurrent changes to distinct paths are merged.
func (s *Store) logMerge(ctx context.Context, prior, base model.Revision, affected []string) {
	mine := make(map[string]struct{}, len(affected))
	for _, pth := range affected {
		mine[pth] = struct{}{}
	}
	var overlap []string
	err := revstore.TrunkHistory(ctx, s, prior, func(c *model.Commit) bool {
		if c.ID <= base {
			return false
		}
		for _, pth := range c.AffectedPaths {
			if _, ok := mine[pth]; ok {
				overlap = append(overlap, pth)
			}
		}
		return true
	})
	if err != nil {
		s.l.Warn("could not walk commits since base", zap.Stringer("base", base), zap.Error(err))
		return
	}
	s.l.Debug("merged concurrent changes",
		zap.Stringer("base", base),
		zap.Stringer("head", prior),
		zap.Strings("overlapping_paths", overlap),
	)
}

func (s *Store) recordCommit(err error, start time.Time) {
	switch {
	case err == nil:
		s.m.Commit(metrics.OutcomeSuccess, start)
	case errors.Is(err, status.ErrConflict):
		s.m.Commit(metrics.OutcomeConflict, start)
	default:
		s.m.Commit(metrics.OutcomeFailed, start)
	}
}

func (s *Store) treeOptions() []commit.TreeOption {
	return []commit.TreeOption{commit.Ordered(s.ordered), commit.Logger(s.l)}
}
