// Package backendtest exercises backend implementations against the same expectations.
package backendtest

import (
	"context"
	"sync"
	"testing"

	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackend checks the records of a backend
func TestBackend(t *testing.T, b backend.Backend) {
	ctx := context.Background()

	_, err := b.ReadHead(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound), "a virgin backend has no head")

	leaf := model.NewMutableNode(false)
	leaf.SetProperty("x", "1")
	node, err := leaf.Build()
	require.NoError(t, err)

	has, err := b.HasNode(ctx, node.ID())
	require.NoError(t, err)
	assert.False(t, has)
	_, err = b.ReadNode(ctx, node.ID())
	assert.True(t, errors.Is(err, status.ErrNotFound))

	require.NoError(t, b.WriteNode(ctx, node))
	require.NoError(t, b.WriteNode(ctx, node), "writing the same node twice is fine")
	has, err = b.HasNode(ctx, node.ID())
	require.NoError(t, err)
	assert.True(t, has)

	read, err := b.ReadNode(ctx, node.ID())
	require.NoError(t, err)
	assert.Equal(t, node.ID(), read.ID())
	value, ok := read.Property("x")
	require.True(t, ok)
	assert.Equal(t, "1", value)

	c := &model.Commit{
		ID:         1,
		Timestamp:  model.NewTimestamp(),
		RootNodeID: node.ID(),
		Message:    "first",
	}
	_, err = b.ReadCommit(ctx, 1)
	assert.True(t, errors.Is(err, status.ErrNotFound))
	require.NoError(t, b.WriteCommit(ctx, c))
	has, err = b.HasCommit(ctx, 1)
	require.NoError(t, err)
	assert.True(t, has)
	readCommit, err := b.ReadCommit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, c.RootNodeID, readCommit.RootNodeID)
	assert.Equal(t, "first", readCommit.Message)

	require.NoError(t, b.WriteHead(ctx, 0x1a))
	head, err := b.ReadHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Revision(0x1a), head)

	require.NoError(t, b.Clear(ctx))
	_, err = b.ReadHead(ctx)
	assert.True(t, errors.Is(err, status.ErrNotFound), "a cleared backend has no head")
	has, err = b.HasNode(ctx, node.ID())
	require.NoError(t, err)
	assert.False(t, has)
	has, err = b.HasCommit(ctx, 1)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, b.WriteNode(ctx, node), "a cleared backend is still usable")
}

// TestShared checks the atomic primitives of a shared backend
func TestShared(t *testing.T, b backend.Shared) {
	ctx := context.Background()

	head, candidate, err := b.ReadAndIncHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Revision(0), head)
	assert.Equal(t, model.Revision(1), candidate)

	ok, err := b.CompareAndSetHead(ctx, 0, candidate)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.CompareAndSetHead(ctx, 0, 5)
	require.NoError(t, err)
	assert.False(t, ok, "the head has moved")

	const workers = 8
	var (
		wg         sync.WaitGroup
		mx         sync.Mutex
		candidates = make(map[model.Revision]struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, e := b.ReadAndIncHead(ctx)
			assert.NoError(t, e)
			mx.Lock()
			candidates[c] = struct{}{}
			mx.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, candidates, workers, "candidate revisions are never issued twice")

	var wins int
	for c := range candidates {
		swapped, e := b.CompareAndSetHead(ctx, 1, c)
		require.NoError(t, e)
		if swapped {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}
