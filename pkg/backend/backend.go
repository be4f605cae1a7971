// Copyright © 2018 One Concern

// Package backend defines the persistence layer of revision stores.
//
// A backend holds a head pointer record, a commit table keyed by revision
// and a node table keyed by content id. Implementations translate their
// errors into the status package taxonomy: missing records match
// status.ErrNotFound, failures of the underlying storage match
// status.ErrBackend.
package backend

import (
	"context"
	"fmt"

	"github.com/oneconcern/microkernel/pkg/model"
)

// Backend is the persistence manager of a revision store
type Backend interface {
	fmt.Stringer

	ReadNode(context.Context, model.ID) (*model.Node, error)
	WriteNode(context.Context, *model.Node) error
	HasNode(context.Context, model.ID) (bool, error)

	ReadCommit(context.Context, model.Revision) (*model.Commit, error)
	WriteCommit(context.Context, *model.Commit) error
	HasCommit(context.Context, model.Revision) (bool, error)

	// ReadHead yields the persisted head revision, or an error matching status.ErrNotFound
	// for a virgin repository
	ReadHead(context.Context) (model.Revision, error)
	WriteHead(context.Context, model.Revision) error

	// Clear removes every record, leaving a virgin repository
	Clear(context.Context) error
	Close() error
}

// Shared backends may be used concurrently by several processes.
//
// They maintain a revision counter next to the head pointer.
type Shared interface {
	Backend

	// ReadAndIncHead atomically increments the revision counter. It yields the current head
	// and the new counter value, a revision which is not issued to anyone else.
	ReadAndIncHead(context.Context) (head, candidate model.Revision, err error)

	// CompareAndSetHead atomically sets the head to next, provided it is still expected.
	// The zero revision is expected for a virgin repository.
	CompareAndSetHead(ctx context.Context, expected, next model.Revision) (bool, error)
}

// Key layout shared by the key/value implementations
const (
	HeadKey    = "head"
	CounterKey = "counter"
)

// NodeKey yields the key of a node record
func NodeKey(id model.ID) string {
	if len(id) < 2 {
		return "nodes/" + string(id)
	}
	return "nodes/" + string(id[:2]) + "/" + string(id)
}

// CommitKey yields the key of a commit record
func CommitKey(rev model.Revision) string {
	return "commits/" + rev.Key()
}

func maxRevision(a, b model.Revision) model.Revision {
	if a > b {
		return a
	}
	return b
}
