// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
	"io/ioutil"
	"time"
)

// Put modes
const (
	NoOverWrite = true
	OverWrite   = false
)

// Attributes of a stored object
type Attributes struct {
	Size    int64
	Updated time.Time
}

// Store implementations know how to write entries to a K/V model.
//
// Typically this is something file system-like.
// Implementations of this interface are assumed to be fairly simple.
//
// Missing keys are reported with errors matching status.ErrNotFound.
// An exclusive Put on an existing key fails with an error matching status.ErrConflict.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	GetAt(context.Context, string) (io.ReaderAt, error)
	GetAttr(context.Context, string) (Attributes, error)
	Put(context.Context, string, io.Reader, bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}

// ReadAll reads a whole object in memory
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return ioutil.ReadAll(reader)
}
