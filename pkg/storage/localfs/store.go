// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/oneconcern/microkernel/pkg/storage"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
)

// staging area for atomic puts, within the file system itself
const putStageName = ".put-stage"

// New creates a new local file system backed storage.
//
// Puts are atomic: objects are written in a staging area, then renamed into place.
// A nil file system stores objects under ".microkernel/objects".
func New(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".microkernel", "objects"))
	}
	if err := fs.MkdirAll(putStageName, 0700); err != nil {
		return nil, status.ErrBackend.Wrap(err).WrapMessage("ensuring put staging directory %q", putStageName)
	}
	return &localFS{
		fs: fs,
	}, nil
}

type localFS struct {
	fs afero.Fs

	// claims of exclusive keys, within this process
	mx sync.Mutex
}

func checkKey(key string) error {
	components := strings.Split(strings.TrimLeft(filepath.ToSlash(key), "/"), "/")
	if key == "" || components[0] == putStageName {
		return status.ErrInvalidArgument.WrapMessage("invalid key %q", key)
	}
	return nil
}

func translate(key string, err error) error {
	if os.IsNotExist(err) {
		return status.ErrNotFound.WrapMessage("key %q", key)
	}
	return status.ErrBackend.Wrap(err)
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.ErrBackend.Wrap(err)
	}
	return !fi.IsDir(), nil
}

func (l *localFS) open(key string) (afero.File, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	f, err := l.fs.Open(key)
	if err != nil {
		return nil, translate(key, err)
	}
	return f, nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return l.open(key)
}

func (l *localFS) GetAt(ctx context.Context, key string) (io.ReaderAt, error) {
	return l.open(key)
}

func (l *localFS) GetAttr(ctx context.Context, key string) (storage.Attributes, error) {
	if err := checkKey(key); err != nil {
		return storage.Attributes{}, err
	}
	fi, err := l.fs.Stat(key)
	if err != nil {
		return storage.Attributes{}, translate(key, err)
	}
	return storage.Attributes{
		Size:    fi.Size(),
		Updated: fi.ModTime(),
	}, nil
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if dir := filepath.Dir(key); dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrBackend.Wrap(err).WrapMessage("ensuring directories for %q", key)
		}
	}
	staged := filepath.Join(putStageName, ksuid.New().String())
	if err := l.write(staged, source); err != nil {
		_ = l.fs.Remove(staged)
		return err
	}
	if exclusive {
		return l.claim(staged, key)
	}
	if err := l.fs.Rename(staged, key); err != nil {
		_ = l.fs.Remove(staged)
		return status.ErrBackend.Wrap(err).WrapMessage("renaming record for %q", key)
	}
	return nil
}

// claim moves a fully written staged object to a key which must not exist yet
func (l *localFS) claim(staged, key string) error {
	l.mx.Lock()
	defer l.mx.Unlock()

	_, err := l.fs.Stat(key)
	switch {
	case err == nil:
		_ = l.fs.Remove(staged)
		return status.ErrConflict.WrapMessage("key %q exists already", key)
	case !os.IsNotExist(err):
		_ = l.fs.Remove(staged)
		return status.ErrBackend.Wrap(err).WrapMessage("checking %q", key)
	}
	if err = l.fs.Rename(staged, key); err != nil {
		_ = l.fs.Remove(staged)
		return status.ErrBackend.Wrap(err).WrapMessage("renaming record for %q", key)
	}
	return nil
}

func (l *localFS) write(name string, source io.Reader) error {
	target, err := l.fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return status.ErrBackend.Wrap(err).WrapMessage("create record for %q", name)
	}
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		return status.ErrBackend.Wrap(err).WrapMessage("write record for %q", name)
	}
	if err = target.Close(); err != nil {
		return status.ErrBackend.Wrap(err)
	}
	return nil
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := l.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return status.ErrBackend.Wrap(err).WrapMessage("removing %q", key)
	}
	return nil
}

func (l *localFS) Keys(ctx context.Context) ([]string, error) {
	const root = "."
	var res []string
	e := afero.Walk(l.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == putStageName {
				return filepath.SkipDir
			}
			return nil
		}
		res = append(res, filepath.ToSlash(path))
		return nil
	})
	if e != nil {
		return nil, status.ErrBackend.Wrap(e)
	}
	return res, nil
}

func (l *localFS) Clear(ctx context.Context) error {
	entries, err := afero.ReadDir(l.fs, ".")
	if err != nil {
		return status.ErrBackend.Wrap(err)
	}
	for _, entry := range entries {
		if entry.Name() == putStageName {
			continue
		}
		if err := l.fs.RemoveAll(entry.Name()); err != nil {
			return status.ErrBackend.Wrap(err)
		}
	}
	return nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}
