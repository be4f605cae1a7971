// Copyright © 2018 One Concern

// Package revstore provides revision stores: cached access to nodes and
// commits, and atomic advancement of the head revision.
package revstore

import (
	"context"
	"time"

	"github.com/oneconcern/microkernel/pkg/commit"
	"github.com/oneconcern/microkernel/pkg/model"
)

// RevisionStore persists nodes and commits, and maintains the head revision.
//
// All operations fail with status.ErrIllegalState before Initialize or after Close.
type RevisionStore interface {
	// Initialize reads the persisted head, or bootstraps a virgin repository with an empty root
	Initialize(context.Context) error
	// Clear drops every record, then bootstraps the store again
	Clear(context.Context) error
	Close() error

	PutNode(context.Context, *model.Node) error
	// PutCommit persists a commit record. A commit with a zero id is assigned a new revision,
	// otherwise the revision counter moves past the given id.
	PutCommit(context.Context, *model.Commit) (model.Revision, error)

	GetNode(context.Context, model.ID) (*model.Node, error)
	HasNode(context.Context, model.ID) (bool, error)
	GetCommit(context.Context, model.Revision) (*model.Commit, error)
	GetRootNode(context.Context, model.Revision) (*model.Node, error)
	GetHeadCommit(context.Context) (*model.Commit, error)
	GetHeadRevision(context.Context) (model.Revision, error)

	// LockHead acquires the exclusive head lock
	LockHead()
	UnlockHead()
	// SetHead moves the head. The caller must hold the head lock.
	SetHead(context.Context, model.Revision) error

	// Commit applies a commit based on some revision and yields the new revision
	Commit(ctx context.Context, c *commit.Commit, base model.Revision) (model.Revision, error)

	// WaitForCommit blocks until the head differs from oldHead or the timeout elapses,
	// and yields the current head either way
	WaitForCommit(ctx context.Context, oldHead model.Revision, timeout time.Duration) (model.Revision, error)
}
