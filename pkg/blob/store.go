// Copyright © 2018 One Concern

// Package blob stores binary values by content.
//
// Blobs are keyed by the hash of their content: writing the same content
// twice yields the same id and stores it once.
package blob

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"strings"

	blake2b "github.com/minio/blake2b-simd"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/oneconcern/microkernel/pkg/storage"
	"go.uber.org/zap"
)

const blobPrefix = "blobs/"

// Store for blobs, on top of a key/value storage
type Store struct {
	store storage.Store
	l     *zap.Logger
}

// Option for the blob store
type Option func(*Store)

// Logger for the blob store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// New blob store
func New(store storage.Store, opts ...Option) *Store {
	s := &Store{
		store: store,
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

func (s *Store) String() string {
	return "blob@" + s.store.String()
}

func key(id string) (string, error) {
	if _, err := hex.DecodeString(id); err != nil || len(id) != 2*model.IDSize {
		return "", status.ErrInvalidArgument.WrapMessage("invalid blob id %q", id)
	}
	return blobPrefix + id[:2] + "/" + id, nil
}

// Write a blob from a stream and return its id
func (s *Store) Write(ctx context.Context, r io.Reader) (string, error) {
	hasher, err := blake2b.New(&blake2b.Config{Size: model.IDSize})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err = io.Copy(io.MultiWriter(hasher, &buf), r); err != nil {
		return "", status.ErrBackend.Wrap(err).WrapMessage("reading blob content")
	}
	id := hex.EncodeToString(hasher.Sum(nil))
	k, _ := key(id)

	err = s.store.Put(ctx, k, &buf, storage.NoOverWrite)
	switch {
	case err == nil:
		s.l.Debug("blob written", zap.String("blob", id), zap.Int("size", buf.Len()))
	case errors.Is(err, status.ErrConflict):
		s.l.Debug("blob exists already", zap.String("blob", id))
	default:
		return "", err
	}
	return id, nil
}

// GetLength yields the size of a blob
func (s *Store) GetLength(ctx context.Context, id string) (int64, error) {
	k, err := key(id)
	if err != nil {
		return 0, err
	}
	attrs, err := s.store.GetAttr(ctx, k)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

// Read up to length bytes of a blob, starting at position pos, into buf[off:].
//
// It returns io.EOF when pos is at or beyond the end of the blob.
func (s *Store) Read(ctx context.Context, id string, pos int64, buf []byte, off, length int) (int, error) {
	if pos < 0 || off < 0 || length < 0 || off+length > len(buf) {
		return 0, status.ErrInvalidArgument.WrapMessage("invalid read window pos=%d off=%d len=%d", pos, off, length)
	}
	k, err := key(id)
	if err != nil {
		return 0, err
	}
	ra, err := s.store.GetAt(ctx, k)
	if err != nil {
		return 0, err
	}
	if closer, ok := ra.(io.Closer); ok {
		defer closer.Close()
	}

	n, err := ra.ReadAt(buf[off:off+length], pos)
	switch {
	case n > 0 && err == io.EOF:
		return n, nil
	case err == io.EOF:
		return 0, io.EOF
	case err != nil:
		return n, status.ErrBackend.Wrap(err)
	}
	return n, nil
}

// Has tells if a blob exists
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	k, err := key(id)
	if err != nil {
		return false, err
	}
	return s.store.Has(ctx, k)
}

// IsBlobKey tells if a storage key holds a blob
func IsBlobKey(k string) bool {
	return strings.HasPrefix(k, blobPrefix)
}
