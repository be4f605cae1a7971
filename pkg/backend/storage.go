package backend

import (
	"bytes"
	"context"
	"strings"

	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/oneconcern/microkernel/pkg/storage"
)

var _ Backend = &Storage{}

// Storage is a backend over a key/value object storage, such as a local file system.
//
// Object storage has no atomic read-modify-write primitive: this backend is not shared.
type Storage struct {
	store storage.Store
}

// NewStorage builds a backend persisting records as objects
func NewStorage(store storage.Store) *Storage {
	return &Storage{store: store}
}

func (s *Storage) String() string {
	return "storage@" + s.store.String()
}

func (s *Storage) ReadNode(ctx context.Context, id model.ID) (*model.Node, error) {
	data, err := storage.ReadAll(ctx, s.store, NodeKey(id))
	if err != nil {
		return nil, notFound(err, "node %s", id)
	}
	return model.DecodeNode(id, data)
}

func (s *Storage) WriteNode(ctx context.Context, node *model.Node) error {
	data, err := model.EncodeNode(node)
	if err != nil {
		return err
	}
	err = s.store.Put(ctx, NodeKey(node.ID()), bytes.NewReader(data), storage.NoOverWrite)
	if err != nil && !errors.Is(err, status.ErrConflict) {
		return err
	}
	return nil
}

func (s *Storage) HasNode(ctx context.Context, id model.ID) (bool, error) {
	return s.store.Has(ctx, NodeKey(id))
}

func (s *Storage) ReadCommit(ctx context.Context, rev model.Revision) (*model.Commit, error) {
	data, err := storage.ReadAll(ctx, s.store, CommitKey(rev))
	if err != nil {
		return nil, notFound(err, "commit %v", rev)
	}
	return model.DecodeCommit(data)
}

func (s *Storage) WriteCommit(ctx context.Context, c *model.Commit) error {
	data, err := model.EncodeCommit(c)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, CommitKey(c.ID), bytes.NewReader(data), storage.OverWrite)
}

func (s *Storage) HasCommit(ctx context.Context, rev model.Revision) (bool, error) {
	return s.store.Has(ctx, CommitKey(rev))
}

func (s *Storage) ReadHead(ctx context.Context) (model.Revision, error) {
	data, err := storage.ReadAll(ctx, s.store, HeadKey)
	if err != nil {
		return 0, notFound(err, "head")
	}
	rev, err := model.ParseRevision(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, status.ErrBackend.Wrap(err)
	}
	return rev, nil
}

func (s *Storage) WriteHead(ctx context.Context, rev model.Revision) error {
	return s.store.Put(ctx, HeadKey, strings.NewReader(rev.String()), storage.OverWrite)
}

func (s *Storage) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

func (s *Storage) Close() error {
	return nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, status.ErrNotFound) {
		return status.ErrNotFound.WrapMessage(format, args...)
	}
	return err
}
