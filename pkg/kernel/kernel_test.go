package kernel

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/blob"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/gc"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/replicated"
	"github.com/oneconcern/microkernel/pkg/revstore"
	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/oneconcern/microkernel/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestKernel(t *testing.T, opts ...revstore.Option) *MicroKernel {
	l := zaptest.NewLogger(t)
	store := revstore.New(backend.NewMemory(), append([]revstore.Option{revstore.Logger(l)}, opts...)...)
	require.NoError(t, store.Initialize(context.Background()))

	objects, err := localfs.New(afero.NewMemMapFs())
	require.NoError(t, err)
	k := New(store, Logger(l), Blobs(blob.New(objects)))
	t.Cleanup(func() {
		_ = k.Close()
	})
	return k
}

func mustCommit(t *testing.T, k *MicroKernel, diff string, base model.Revision) model.Revision {
	rev, err := k.Commit(context.Background(), "/", diff, base, diff)
	require.NoError(t, err)
	return rev
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t)

	tree, err := k.GetNodes(ctx, "/", 0, 0, 0, -1)
	require.NoError(t, err)
	assert.JSONEq(t, `{":childNodeCount":0}`, tree)

	r1 := mustCommit(t, k, `+"a":{"x":1}`, 0)
	tree, err = k.GetNodes(ctx, "/a", r1, 0, 0, -1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,":childNodeCount":0}`, tree)

	c, err := k.Store().GetCommit(ctx, r1)
	require.NoError(t, err)
	assert.Equal(t, c.ParentID, c.BaseRevision, "committed on the head")

	r2 := mustCommit(t, k, `^"a/x":null`, r1)
	tree, err = k.GetNodes(ctx, "/a", r2, 0, 0, -1)
	require.NoError(t, err)
	assert.JSONEq(t, `{":childNodeCount":0}`, tree)
	exists, err := k.NodeExists(ctx, "/a", r2)
	require.NoError(t, err)
	assert.True(t, exists)

	var wg sync.WaitGroup
	for _, diff := range []string{`+"b":{}`, `+"c":{}`} {
		wg.Add(1)
		go func(diff string) {
			defer wg.Done()
			_, e := k.Commit(ctx, "/", diff, r2, "")
			assert.NoError(t, e)
		}(diff)
	}
	wg.Wait()
	count, err := k.GetChildNodeCount(ctx, "/", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// older revisions are untouched
	exists, err = k.NodeExists(ctx, "/b", r2)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = k.Commit(ctx, "/", `+"a":{}`, r2, "")
	assert.True(t, errors.Is(err, status.ErrConflict))
	_, err = k.Commit(ctx, "/", `+"a":`, r2, "")
	assert.True(t, errors.Is(err, status.ErrSyntax))
}

func TestGetNodes(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t)
	rev := mustCommit(t, k, `+"p":{"title":"t","c1":{"v":1,"g":{"deep":true}},"c2":{"v":[1,2]},"c3":{}}`, 0)

	for _, tc := range []struct {
		name                 string
		depth, offset, count int
		expected             string
	}{
		{"names only", 0, 0, -1, `{"title":"t",":childNodeCount":3,"c1":{},"c2":{},"c3":{}}`},
		{"one level", 1, 0, -1, `{"title":"t",":childNodeCount":3,"c1":{"v":1,":childNodeCount":1,"g":{}},"c2":{"v":[1,2],":childNodeCount":0},"c3":{":childNodeCount":0}}`},
		{"two levels", 2, 0, 1, `{"title":"t",":childNodeCount":3,"c1":{"v":1,":childNodeCount":1,"g":{"deep":true,":childNodeCount":0}}}`},
		{"window", 0, 1, 1, `{"title":"t",":childNodeCount":3,"c2":{}}`},
		{"past the end", 0, 5, -1, `{"title":"t",":childNodeCount":3}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := k.GetNodes(ctx, "/p", rev, tc.depth, tc.offset, tc.count)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, tree)
		})
	}

	_, err := k.GetNodes(ctx, "/missing", rev, 0, 0, -1)
	assert.True(t, errors.Is(err, status.ErrNotFound))
	_, err = k.GetNodes(ctx, "relative", rev, 0, 0, -1)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
	_, err = k.GetNodes(ctx, "/", 999, 0, 0, -1)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestDiffRoundTrip(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t)

	r1 := mustCommit(t, k, `+"a":{"x":1,"keep":{"k":"v"},"gone":{}} +"b":{"y":"z"}`, 0)
	mustCommit(t, k, `^"a/x":2 ^"a/new":[true,false] -"a/gone"`, 0)
	mustCommit(t, k, `>"b":"/a/keep/b" +"c":{"d":{"e":null}} ^"/root":"r"`, 0)
	r4, err := k.GetHeadRevision(ctx)
	require.NoError(t, err)

	diff, err := k.Diff(ctx, r1, r4, "")
	require.NoError(t, err)
	require.NotEmpty(t, diff)

	// replay on a fresh kernel holding the tree of r1
	replica := newTestKernel(t)
	tree1, err := k.GetNodes(ctx, "/", r1, 10, 0, -1)
	require.NoError(t, err)
	content, err := k.Diff(ctx, 1, r1, "/")
	require.NoError(t, err)
	base := mustCommit(t, replica, content, 0)
	replayed, err := replica.GetNodes(ctx, "/", base, 10, 0, -1)
	require.NoError(t, err)
	require.JSONEq(t, tree1, replayed)

	rev, err := replica.Commit(ctx, "", diff, base, "replay")
	require.NoError(t, err)
	expected, err := k.GetNodes(ctx, "/", r4, 10, 0, -1)
	require.NoError(t, err)
	actual, err := replica.GetNodes(ctx, "/", rev, 10, 0, -1)
	require.NoError(t, err)
	assert.JSONEq(t, expected, actual)

	// reversed revisions undo the changes
	undo, err := k.Diff(ctx, r4, r1, "/")
	require.NoError(t, err)
	rev, err = replica.Commit(ctx, "", undo, rev, "undo")
	require.NoError(t, err)
	actual, err = replica.GetNodes(ctx, "/", rev, 10, 0, -1)
	require.NoError(t, err)
	assert.JSONEq(t, tree1, actual)

	scoped, err := k.Diff(ctx, r1, r4, "/c")
	require.NoError(t, err)
	// null properties are never stored
	assert.Equal(t, `+"/c":{"d":{}}`, scoped)

	unchanged, err := k.Diff(ctx, r4, r4, "/")
	require.NoError(t, err)
	assert.Empty(t, unchanged)
}

func rootID(t *testing.T, k *MicroKernel, rev model.Revision) model.ID {
	c, err := k.Store().GetCommit(context.Background(), rev)
	require.NoError(t, err)
	return c.RootNodeID
}

func TestDiffOrderedRenames(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, revstore.Ordered(true))

	r1 := mustCommit(t, k, `+"p":{"a":{"x":1},"b":{}}`, 0)
	r2 := mustCommit(t, k, `>"/p/a":"/p/c"`, 0)
	// same content under another name, appended
	r3 := mustCommit(t, k, `-"/p/c" +"/p/d":{"x":1}`, 0)

	renamed, err := k.Diff(ctx, r1, r2, "")
	require.NoError(t, err)
	assert.Equal(t, `>"/p/a":"/p/c"`, renamed)

	// a rename in place would put d first
	appended, err := k.Diff(ctx, r2, r3, "")
	require.NoError(t, err)
	assert.Equal(t, "-\"/p/c\"\n+\"/p/d\":{\"x\":1}", appended)

	replica := newTestKernel(t, revstore.Ordered(true))
	content, err := k.Diff(ctx, 1, r1, "/")
	require.NoError(t, err)
	rev := mustCommit(t, replica, content, 0)
	require.Equal(t, rootID(t, k, r1), rootID(t, replica, rev))

	rev, err = replica.Commit(ctx, "", renamed, rev, "rename")
	require.NoError(t, err)
	assert.Equal(t, rootID(t, k, r2), rootID(t, replica, rev), "children keep their order")

	rev, err = replica.Commit(ctx, "", appended, rev, "append")
	require.NoError(t, err)
	assert.Equal(t, rootID(t, k, r3), rootID(t, replica, rev))
}

func TestRevisionsAndJournal(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t)
	start := time.Now().Add(-time.Second)

	bootstrap, err := k.GetHeadRevision(ctx)
	require.NoError(t, err)
	r1 := mustCommit(t, k, `+"a":{}`, 0)
	r2 := mustCommit(t, k, `^"a/p":"v"`, 0)
	r3 := mustCommit(t, k, `-"a"`, 0)

	all, err := k.GetRevisions(ctx, start, -1)
	require.NoError(t, err)
	ids := make([]model.Revision, 0, len(all))
	for _, info := range all {
		ids = append(ids, info.ID)
	}
	assert.Equal(t, []model.Revision{bootstrap, r1, r2, r3}, ids)

	recent, err := k.GetRevisions(ctx, start, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, r2, recent[0].ID)
	assert.Equal(t, r3, recent[1].ID)

	none, err := k.GetRevisions(ctx, time.Now().Add(time.Hour), -1)
	require.NoError(t, err)
	assert.Empty(t, none)

	journal, err := k.GetJournal(ctx, r1, 0)
	require.NoError(t, err)
	require.Len(t, journal, 3)
	assert.Equal(t, r1, journal[0].ID)
	assert.Equal(t, `+"/a":{}`, journal[0].Changes)
	assert.Equal(t, `^"/a/p":"v"`, journal[1].Changes)
	assert.Equal(t, `-"/a"`, journal[2].Changes)
	assert.Equal(t, `-"a"`, journal[2].Message)

	_, err = k.GetJournal(ctx, r3, r1)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
}

func TestWaitForCommit(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t)
	head, err := k.GetHeadRevision(ctx)
	require.NoError(t, err)

	now, err := k.WaitForCommit(ctx, head, 0)
	require.NoError(t, err)
	assert.Equal(t, head, now)

	committed := make(chan model.Revision, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		rev, e := k.Commit(ctx, "/", `+"a":{}`, 0, "")
		assert.NoError(t, e)
		committed <- rev
	}()
	next, err := k.WaitForCommit(ctx, head, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, <-committed, next)
}

func TestBranchAndMerge(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t)
	base := mustCommit(t, k, `+"a":{"x":1}`, 0)

	branch, err := k.Branch(ctx, 0)
	require.NoError(t, err)
	onBranch := mustCommit(t, k, `+"a/b":{} ^"a/x":2`, branch)
	head, err := k.GetHeadRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, head, "branch commits leave the head alone")

	exists, err := k.NodeExists(ctx, "/a/b", onBranch)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = k.Branch(ctx, onBranch)
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))
	_, err = k.Merge(ctx, head, "not a branch")
	assert.True(t, errors.Is(err, status.ErrInvalidArgument))

	// concurrent change on the trunk
	mustCommit(t, k, `+"c":{}`, 0)

	merged, err := k.Merge(ctx, onBranch, "merge")
	require.NoError(t, err)
	tree, err := k.GetNodes(ctx, "/", merged, 2, 0, -1)
	require.NoError(t, err)
	assert.JSONEq(t, `{":childNodeCount":2,"a":{"x":2,":childNodeCount":1,"b":{":childNodeCount":0}},"c":{":childNodeCount":0}}`, tree)
}

func TestBlobs(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t)
	content := []byte("some binary content")

	id, err := k.Write(ctx, bytes.NewReader(content))
	require.NoError(t, err)
	again, err := k.Write(ctx, bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	size, err := k.GetLength(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)

	buf := make([]byte, 10)
	n, err := k.Read(ctx, id, 5, buf, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, content[5:11], buf[2:8])

	_, err = k.Read(ctx, id, int64(len(content)), buf, 0, 1)
	assert.Equal(t, io.EOF, err)

	bare := New(k.Store())
	_, err = bare.GetLength(ctx, id)
	assert.True(t, errors.Is(err, status.ErrIllegalState))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestReplicatedKernel(t *testing.T) {
	ctx := context.Background()
	shared := backend.NewMemory()

	open := func() *MicroKernel {
		s := replicated.New(shared, replicated.Logger(zaptest.NewLogger(t)), replicated.RetryDelay(time.Millisecond))
		require.NoError(t, s.Initialize(ctx))
		return New(s, Logger(zaptest.NewLogger(t)))
	}
	a, b := open(), open()

	base, err := a.GetHeadRevision(ctx)
	require.NoError(t, err)
	_, err = a.Commit(ctx, "/", `+"a":{}`, base, "")
	require.NoError(t, err)
	_, err = b.Commit(ctx, "/", `+"a":{}`, base, "")
	assert.True(t, errors.Is(err, status.ErrConflict))

	closed := false
	a = New(a.Store(), CloseWith(closerFunc(func() error {
		closed = true
		return nil
	})))
	require.NoError(t, a.Close())
	assert.True(t, closed)
	require.NoError(t, b.Close())
}

func TestCollectedKernel(t *testing.T) {
	ctx := context.Background()
	l := zaptest.NewLogger(t)
	from := revstore.New(backend.NewMemory(), revstore.Logger(l))
	to := revstore.New(backend.NewMemory(), revstore.Logger(l))
	collector := gc.New(from, to, gc.Logger(l))
	require.NoError(t, collector.Initialize(ctx))
	k := New(collector, Logger(l))
	t.Cleanup(func() {
		_ = k.Close()
	})

	r1 := mustCommit(t, k, `+"a":{"x":1}`, 0)
	mustCommit(t, k, `-"a" +"b":{}`, 0)

	res, err := collector.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Source, res.Target)

	during := mustCommit(t, k, `+"c":{}`, res.Target)
	head, err := k.GetHeadRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, during, head)

	require.NoError(t, collector.Stop(ctx))
	head, err = k.GetHeadRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, during, head, "commits made while collecting survive the switch")

	tree, err := k.GetNodes(ctx, "/", 0, 1, 0, -1)
	require.NoError(t, err)
	assert.JSONEq(t, `{":childNodeCount":2,"b":{":childNodeCount":0},"c":{":childNodeCount":0}}`, tree)

	_, err = k.GetNodes(ctx, "/a", r1, 0, 0, -1)
	assert.True(t, errors.Is(err, status.ErrNotFound), "past revisions are not copied")
}
