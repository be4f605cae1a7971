// Copyright © 2018 One Concern

// Package kernel exposes the operations of the micro-kernel over a revision store.
//
// Revisions are designated by their id. The zero revision designates the
// current head wherever a revision is optional.
package kernel

import (
	"context"
	"io"
	"time"

	"github.com/oneconcern/microkernel/pkg/blob"
	"github.com/oneconcern/microkernel/pkg/commit"
	"github.com/oneconcern/microkernel/pkg/dlogger"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/revstore"
	"github.com/oneconcern/microkernel/pkg/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MicroKernel is the facade of a content repository
type MicroKernel struct {
	store   revstore.RevisionStore
	blobs   *blob.Store
	closers []io.Closer
	l       *zap.Logger
}

// RevisionInfo describes a revision
type RevisionInfo struct {
	ID        model.Revision `json:"id" yaml:"id"`
	Timestamp time.Time      `json:"ts" yaml:"ts"`
}

// JournalEntry describes a revision and its changes relative to its parent
type JournalEntry struct {
	ID        model.Revision `json:"id" yaml:"id"`
	Timestamp time.Time      `json:"ts" yaml:"ts"`
	Message   string         `json:"msg" yaml:"msg"`
	Changes   string         `json:"changes" yaml:"changes"`
}

// New kernel over an initialized revision store
func New(store revstore.RevisionStore, opts ...Option) *MicroKernel {
	k := &MicroKernel{
		store: store,
		l:     dlogger.MustGetLogger("info"),
	}
	for _, apply := range opts {
		apply(k)
	}
	return k
}

// Store yields the underlying revision store
func (k *MicroKernel) Store() revstore.RevisionStore {
	return k.store
}

// Close the revision store, then any other registered resource
func (k *MicroKernel) Close() error {
	err := k.store.Close()
	for _, c := range k.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// GetHeadRevision yields the current head
func (k *MicroKernel) GetHeadRevision(ctx context.Context) (model.Revision, error) {
	return k.store.GetHeadRevision(ctx)
}

// resolve yields the commit of a revision, or of the head for the zero revision
func (k *MicroKernel) resolve(ctx context.Context, rev model.Revision) (*model.Commit, error) {
	if rev.IsZero() {
		return k.store.GetHeadCommit(ctx)
	}
	return k.store.GetCommit(ctx, rev)
}

// GetRevisions lists the trunk revisions committed since some time, in chronological order.
//
// Only the most recent maxEntries revisions are returned. A negative maxEntries means no limit.
func (k *MicroKernel) GetRevisions(ctx context.Context, since time.Time, maxEntries int) ([]RevisionInfo, error) {
	head, err := k.store.GetHeadRevision(ctx)
	if err != nil {
		return nil, err
	}
	var history []RevisionInfo
	if maxEntries == 0 {
		return history, nil
	}
	err = revstore.TrunkHistory(ctx, k.store, head, func(c *model.Commit) bool {
		if c.Timestamp.Before(since) {
			return false
		}
		history = append(history, RevisionInfo{ID: c.ID, Timestamp: c.Timestamp})
		return maxEntries < 0 || len(history) < maxEntries
	})
	if err != nil {
		return nil, err
	}
	reverse(history)
	return history, nil
}

// GetJournal lists the revisions from one revision to another, both included, in chronological order.
//
// The from revision must be an ancestor of the to revision, or the same revision.
func (k *MicroKernel) GetJournal(ctx context.Context, from, to model.Revision) ([]JournalEntry, error) {
	last, err := k.resolve(ctx, to)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = last.ID
	}

	var (
		commits []*model.Commit
		found   bool
	)
	err = revstore.TrunkHistory(ctx, k.store, last.ID, func(c *model.Commit) bool {
		commits = append(commits, c)
		found = c.ID == from
		return !found && c.ID > from
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, status.ErrInvalidArgument.WrapMessage("revision %v is not an ancestor of %v", from, last.ID)
	}

	journal := make([]JournalEntry, 0, len(commits))
	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]
		var changes string
		if !c.IsBootstrap() {
			if changes, err = k.Diff(ctx, c.ParentID, c.ID, model.Root); err != nil {
				return nil, err
			}
		}
		journal = append(journal, JournalEntry{
			ID:        c.ID,
			Timestamp: c.Timestamp,
			Message:   c.Message,
			Changes:   changes,
		})
	}
	return journal, nil
}

// WaitForCommit waits for the head to move away from oldHead, at most for some timeout.
// It yields the current head either way.
func (k *MicroKernel) WaitForCommit(ctx context.Context, oldHead model.Revision, timeout time.Duration) (model.Revision, error) {
	return k.store.WaitForCommit(ctx, oldHead, timeout)
}

// Commit applies a diff to the node at path. When path is empty, the paths in the diff must be absolute.
//
// The zero base revision designates the current head.
func (k *MicroKernel) Commit(ctx context.Context, path, diff string, base model.Revision, message string) (model.Revision, error) {
	c, err := commit.Build(path, diff, message)
	if err != nil {
		return 0, err
	}
	if base.IsZero() {
		if base, err = k.store.GetHeadRevision(ctx); err != nil {
			return 0, err
		}
	}
	return k.store.Commit(ctx, c, base)
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
