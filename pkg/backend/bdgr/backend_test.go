package bdgr

import (
	"context"
	"testing"

	"github.com/oneconcern/microkernel/pkg/backend/backendtest"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestBackend(t *testing.T) *Backend {
	b, err := New("", InMemory(true), Logger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, b.Close())
	})
	return b
}

func TestBadger(t *testing.T) {
	backendtest.TestBackend(t, newTestBackend(t))
}

func TestBadgerShared(t *testing.T) {
	backendtest.TestShared(t, newTestBackend(t))
}

func TestBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir, ValueLogFileSize(16<<20))
	require.NoError(t, err)
	assert.Equal(t, "badger@"+dir, b.String())

	require.NoError(t, b.WriteHead(context.Background(), 3))
	require.NoError(t, b.Close())

	reopened, err := New(dir)
	require.NoError(t, err)
	defer reopened.Close()

	head, err := reopened.ReadHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Revision(3), head)

	// the counter follows the head
	_, candidate, err := reopened.ReadAndIncHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Revision(4), candidate)
}
