package gc

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/commit"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/metrics"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/revstore"
	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	g                      *CopyingGC
	from, to               *revstore.DefaultStore
	fromBackend, toBackend *backend.Memory
}

func newFixture(t *testing.T, opts ...Option) fixture {
	f := fixture{
		fromBackend: backend.NewMemory(),
		toBackend:   backend.NewMemory(),
	}
	f.from = revstore.New(f.fromBackend, revstore.Logger(zaptest.NewLogger(t)))
	f.to = revstore.New(f.toBackend, revstore.Logger(zaptest.NewLogger(t)))
	f.g = New(f.from, f.to, append([]Option{Logger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, f.g.Initialize(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, f.g.Close())
	})
	return f
}

func commitDiff(t *testing.T, s revstore.RevisionStore, diff string) model.Revision {
	ctx := context.Background()
	c, err := commit.Build("/", diff, diff)
	require.NoError(t, err)
	head, err := s.GetHeadRevision(ctx)
	require.NoError(t, err)
	rev, err := s.Commit(ctx, c, head)
	require.NoError(t, err)
	return rev
}

func headRoot(t *testing.T, s revstore.RevisionStore) *model.Node {
	ctx := context.Background()
	head, err := s.GetHeadRevision(ctx)
	require.NoError(t, err)
	root, err := s.GetRootNode(ctx, head)
	require.NoError(t, err)
	return root
}

func TestCopyingGC(t *testing.T) {
	ctx := context.Background()
	m := metrics.New("test")
	f := newFixture(t, Metrics(m), ConcurrentCopies(1))
	g := f.g

	commitDiff(t, g, `+"a":{"x":1,"b":{"y":"z"}}`)
	commitDiff(t, g, `+"garbage":{"big":"value"}`)
	garbage, ok := headRoot(t, g).Child("garbage")
	require.True(t, ok)
	commitDiff(t, g, `-"garbage"`)
	sourceHead, err := g.GetHeadCommit(ctx)
	require.NoError(t, err)
	targetBootstrap, err := f.to.GetHeadRevision(ctx)
	require.NoError(t, err)

	res, err := g.Start(ctx)
	require.NoError(t, err)
	assert.True(t, g.Running())
	assert.Equal(t, sourceHead.ID, res.Source)
	assert.Equal(t, sourceHead.ID, res.Target, "the copied head keeps its revision")
	// root, a and a/b: the removed node is unreachable
	assert.Equal(t, 3, res.Copied)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.NodesCopied))

	copiedHead, err := f.to.GetHeadCommit(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Target, copiedHead.ID)
	assert.Equal(t, targetBootstrap, copiedHead.ParentID)
	assert.Equal(t, sourceHead.RootNodeID, copiedHead.RootNodeID)
	assert.Equal(t, sourceHead.Message, copiedHead.Message)

	ok, err = f.toBackend.HasNode(ctx, sourceHead.RootNodeID)
	require.NoError(t, err)
	assert.True(t, ok, "copied nodes are persisted by the target backend")
	ok, err = f.toBackend.HasNode(ctx, garbage.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.Start(ctx)
	assert.True(t, errors.Is(err, status.ErrIllegalState))

	// the target serves reads and writes during the cycle
	head, err := g.GetHeadRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Target, head)
	rev := commitDiff(t, g, `+"b":{}`)
	c, err := f.to.GetCommit(ctx, rev)
	require.NoError(t, err)
	assert.Equal(t, res.Target, c.ParentID)

	require.NoError(t, g.Stop(ctx))
	assert.False(t, g.Running())
	assert.Equal(t, uint64(1), g.Generation())
	assert.True(t, errors.Is(g.Stop(ctx), status.ErrIllegalState))

	authoritative, target := g.Stores()
	assert.Same(t, f.to, authoritative)
	assert.Same(t, f.from, target)
	assert.Equal(t, []string{"a", "b"}, headRoot(t, g).ChildNames(), "commits made during the cycle survive")

	// the former source is reset
	ok, err = f.fromBackend.HasNode(ctx, garbage.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	reset, err := f.from.GetHeadCommit(ctx)
	require.NoError(t, err)
	assert.True(t, reset.IsBootstrap())
}

func TestCommitsDuringSwitch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.g
	commitDiff(t, g, `+"a":{"x":1}`)

	const writers = 4
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := commit.Build("/", fmt.Sprintf(`+"w%d":{"i":%d}`, i, i), "writer")
			if !assert.NoError(t, err) {
				return
			}
			head, err := g.GetHeadRevision(ctx)
			if !assert.NoError(t, err) {
				return
			}
			_, err = g.Commit(ctx, c, head)
			assert.NoError(t, err)
		}(i)
	}
	_, err := g.Start(ctx)
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, g.Stop(ctx))

	assert.Equal(t, []string{"a", "w0", "w1", "w2", "w3"}, headRoot(t, g).ChildNames())
}

func TestCopyingGCReclaimsSpace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.g

	commitDiff(t, g, `+"a":{"x":1}`)
	res, err := g.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Copied)
	require.NoError(t, g.Stop(ctx))

	// the next generation copies back into the cleared store: every live node travels again
	commitDiff(t, g, `+"b":{"k":"v"}`)
	res, err = g.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Copied)
	require.NoError(t, g.Stop(ctx))

	authoritative, _ := g.Stores()
	assert.Same(t, f.from, authoritative)
	assert.Equal(t, []string{"a", "b"}, headRoot(t, g).ChildNames())
	assert.Equal(t, uint64(2), g.Generation())
}

func TestCopyingGCSkipsPresentNodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ClearOnStop(false))
	g := f.g

	commitDiff(t, g, `+"a":{"x":1}`)
	res, err := g.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Copied)
	require.NoError(t, g.Stop(ctx))

	// the former source is kept: only the new subtree and the new root travel back
	commitDiff(t, g, `+"b":{"k":"v"}`)
	res, err = g.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Copied)
	require.NoError(t, g.Stop(ctx))

	authoritative, _ := g.Stores()
	assert.Same(t, f.from, authoritative)
	root, err := f.from.GetRootNode(ctx, res.Target)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, root.ChildNames())
}
