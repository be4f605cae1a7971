package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/oneconcern/microkernel/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t testing.TB) *Store {
	fs, err := localfs.New(afero.NewMemMapFs())
	require.NoError(t, err)
	return New(fs)
}

func TestWriteDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id1, err := s.Write(ctx, strings.NewReader("some binary content"))
	require.NoError(t, err)
	id2, err := s.Write(ctx, strings.NewReader("some binary content"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := s.Write(ctx, strings.NewReader("other content"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	has, err := s.Has(ctx, id1)
	require.NoError(t, err)
	assert.True(t, has)

	keys, err := s.store.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	for _, k := range keys {
		assert.True(t, IsBlobKey(k))
	}
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.Write(ctx, strings.NewReader("0123456789"))
	require.NoError(t, err)

	length, err := s.GetLength(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10), length)

	buf := make([]byte, 8)
	n, err := s.Read(ctx, id, 2, buf, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "2345", string(buf[1:5]))

	n, err = s.Read(ctx, id, 8, buf, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "89", string(buf[:2]))

	_, err = s.Read(ctx, id, 10, buf, 0, 8)
	assert.Equal(t, io.EOF, err)

	_, err = s.Read(ctx, id, 0, buf, 4, 8)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}

func TestMissingBlob(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetLength(ctx, strings.Repeat("ab", 32))
	assert.True(t, errors.Is(err, status.ErrNotFound))

	_, err = s.GetLength(ctx, "not-an-id")
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}
