// Copyright © 2018 One Concern

// Package bdgr implements a shared backend on top of an embedded badger database.
//
// Badger transactions provide the atomic read-and-increment and compare-and-set
// primitives required by concurrent writers.
package bdgr

import (
	"context"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	badgeroptions "github.com/dgraph-io/badger/v3/options"
	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
	"go.uber.org/zap"
)

const (
	conflictRetryDelay = 10 * time.Millisecond
	maxConflictRetries = 100
)

var _ backend.Shared = &Backend{}

// Backend persists records in a badger database
type Backend struct {
	*badger.DB

	dir              string
	inMemory         bool
	valueLogFileSize int64
	l                *zap.Logger
}

// New opens a badger database in some directory
func New(dir string, opts ...Option) (*Backend, error) {
	b := &Backend{
		dir: dir,
		l:   zap.NewNop(),
	}
	for _, apply := range opts {
		apply(b)
	}

	options := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{b.l.Sugar()}).
		WithLoggingLevel(badger.WARNING).
		WithCompression(badgeroptions.None) // records are small JSON documents referencing random hashes

	if b.inMemory {
		options = options.WithInMemory(true).WithDir("").WithValueDir("")
	} else if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, status.ErrBackend.Wrap(err).WrapMessage("creating %s", dir)
	}
	if b.valueLogFileSize > 0 {
		options = options.WithValueLogFileSize(b.valueLogFileSize)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, status.ErrBackend.Wrap(err).WrapMessage("opening badger database")
	}
	b.DB = db
	return b, nil
}

func (b *Backend) String() string {
	if b.inMemory {
		return "badger@memory"
	}
	return "badger@" + b.dir
}

func translate(err error, format string, args ...interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return status.ErrNotFound.WrapMessage(format, args...)
	case errors.Is(err, status.ErrNotFound), errors.Is(err, status.ErrBackend):
		return err
	default:
		return status.ErrBackend.Wrap(err)
	}
}

func (b *Backend) get(key string) ([]byte, error) {
	var value []byte
	err := b.DB.View(func(txn *badger.Txn) error {
		item, e := txn.Get([]byte(key))
		if e != nil {
			return e
		}
		value, e = item.ValueCopy(nil)
		return e
	})
	return value, err
}

func (b *Backend) exists(key string) (bool, error) {
	err := b.DB.View(func(txn *badger.Txn) error {
		_, e := txn.Get([]byte(key))
		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, status.ErrBackend.Wrap(err)
	}
	return true, nil
}

// update runs a read-write transaction, and retries it when it conflicts with another one
func (b *Backend) update(ctx context.Context, fn func(*badger.Txn) error) error {
	err := backoff.Retry(func() error {
		err := b.DB.Update(fn)
		if err != nil {
			if errors.Is(err, badger.ErrConflict) {
				b.l.Debug("badger transaction conflict, retrying")
				return err // retry
			}
			return backoff.Permanent(err)
		}
		return nil
	},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(conflictRetryDelay), maxConflictRetries), ctx),
	)
	return translate(err, "transaction")
}

func (b *Backend) set(ctx context.Context, key string, value []byte) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *Backend) ReadNode(_ context.Context, id model.ID) (*model.Node, error) {
	data, err := b.get(backend.NodeKey(id))
	if err != nil {
		return nil, translate(err, "node %s", id)
	}
	return model.DecodeNode(id, data)
}

func (b *Backend) WriteNode(ctx context.Context, node *model.Node) error {
	data, err := model.EncodeNode(node)
	if err != nil {
		return err
	}
	key := []byte(backend.NodeKey(node.ID()))
	return b.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil // content addressed: already there
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

func (b *Backend) HasNode(_ context.Context, id model.ID) (bool, error) {
	return b.exists(backend.NodeKey(id))
}

func (b *Backend) ReadCommit(_ context.Context, rev model.Revision) (*model.Commit, error) {
	data, err := b.get(backend.CommitKey(rev))
	if err != nil {
		return nil, translate(err, "commit %v", rev)
	}
	return model.DecodeCommit(data)
}

func (b *Backend) WriteCommit(ctx context.Context, c *model.Commit) error {
	data, err := model.EncodeCommit(c)
	if err != nil {
		return err
	}
	return b.set(ctx, backend.CommitKey(c.ID), data)
}

func (b *Backend) HasCommit(_ context.Context, rev model.Revision) (bool, error) {
	return b.exists(backend.CommitKey(rev))
}

func readRevision(txn *badger.Txn, key string) (model.Revision, bool, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, err
	}
	rev, err := model.ParseRevision(string(value))
	if err != nil {
		return 0, false, err
	}
	return rev, true, nil
}

func writeRevision(txn *badger.Txn, key string, rev model.Revision) error {
	return txn.Set([]byte(key), []byte(rev.String()))
}

func (b *Backend) ReadHead(_ context.Context) (model.Revision, error) {
	var (
		head  model.Revision
		found bool
	)
	err := b.DB.View(func(txn *badger.Txn) error {
		var e error
		head, found, e = readRevision(txn, backend.HeadKey)
		return e
	})
	if err != nil {
		return 0, translate(err, "head")
	}
	if !found {
		return 0, status.ErrNotFound.WrapMessage("head")
	}
	return head, nil
}

func (b *Backend) WriteHead(ctx context.Context, rev model.Revision) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		counter, _, err := readRevision(txn, backend.CounterKey)
		if err != nil {
			return err
		}
		if rev > counter {
			if err = writeRevision(txn, backend.CounterKey, rev); err != nil {
				return err
			}
		}
		return writeRevision(txn, backend.HeadKey, rev)
	})
}

func (b *Backend) ReadAndIncHead(ctx context.Context) (model.Revision, model.Revision, error) {
	var head, candidate model.Revision
	err := b.update(ctx, func(txn *badger.Txn) error {
		var err error
		if head, _, err = readRevision(txn, backend.HeadKey); err != nil {
			return err
		}
		counter, _, err := readRevision(txn, backend.CounterKey)
		if err != nil {
			return err
		}
		if counter < head {
			counter = head
		}
		candidate = counter + 1
		return writeRevision(txn, backend.CounterKey, candidate)
	})
	return head, candidate, err
}

func (b *Backend) CompareAndSetHead(ctx context.Context, expected, next model.Revision) (bool, error) {
	var swapped bool
	err := b.update(ctx, func(txn *badger.Txn) error {
		swapped = false
		head, _, err := readRevision(txn, backend.HeadKey)
		if err != nil {
			return err
		}
		if head != expected {
			return nil
		}
		if err = writeRevision(txn, backend.HeadKey, next); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// Clear drops all the keys of the database
func (b *Backend) Clear(_ context.Context) error {
	if err := b.DB.DropAll(); err != nil {
		return status.ErrBackend.Wrap(err)
	}
	return nil
}

// Close the database
func (b *Backend) Close() error {
	if err := b.DB.Close(); err != nil {
		return status.ErrBackend.Wrap(err)
	}
	return nil
}

// badgerLogger redirects badger logs to zap
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.SugaredLogger.Warnf(format, args...)
}
