// Copyright © 2018 One Concern

// Package gc reclaims the space taken by unreachable history.
//
// The collector is a revision store switching between two stores. A
// collection cycle copies the node graph reachable from the head of the
// authoritative store into the target store, then routes every read and
// write to the target. Once the cycle stops, the roles of the two stores are
// swapped and the former authoritative store is cleared, ready to receive
// the live nodes of the next generation.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oneconcern/microkernel/pkg/commit"
	"github.com/oneconcern/microkernel/pkg/dlogger"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/metrics"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/revstore"
	"github.com/oneconcern/microkernel/pkg/status"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var _ revstore.RevisionStore = &CopyingGC{}

// CopyingGC copies reachable nodes from one revision store to another.
//
// Both stores must share the same blob store.
type CopyingGC struct {
	l                *zap.Logger
	m                *metrics.Metrics
	concurrentCopies int
	clearOnStop      bool
	pollInterval     time.Duration

	// writes is held shared by writers, and exclusively while the routing changes
	writes sync.RWMutex

	mx         sync.RWMutex
	from, to   revstore.RevisionStore
	running    bool
	generation uint64

	starting *atomic.Bool
}

// New garbage collector copying from a store to another one
func New(from, to revstore.RevisionStore, opts ...Option) *CopyingGC {
	g := &CopyingGC{
		from:             from,
		to:               to,
		l:                dlogger.MustGetLogger("info"),
		concurrentCopies: DefaultConcurrentCopies,
		clearOnStop:      true,
		pollInterval:     revstore.DefaultPollInterval,
		starting:         atomic.NewBool(false),
	}
	for _, apply := range opts {
		apply(g)
	}
	return g
}

// Result of a collection cycle
type Result struct {
	// Source is the head revision which has been copied
	Source model.Revision
	// Target is the revision installed as the new head of the target store
	Target model.Revision
	// Copied is the number of nodes written to the target store
	Copied int
}

func (r Result) String() string {
	return fmt.Sprintf("%v -> %v (%d nodes copied)", r.Source, r.Target, r.Copied)
}

func (g *CopyingGC) String() string {
	from, to := g.Stores()
	return fmt.Sprintf("gc@%v,%v", storeName(from), storeName(to))
}

// Running tells if a collection cycle is in progress
func (g *CopyingGC) Running() bool {
	g.mx.RLock()
	defer g.mx.RUnlock()
	return g.running
}

// Generation counts the completed cycles
func (g *CopyingGC) Generation() uint64 {
	g.mx.RLock()
	defer g.mx.RUnlock()
	return g.generation
}

// Stores yields the store which was authoritative when the running cycle started,
// then the target of the cycle
func (g *CopyingGC) Stores() (authoritative, target revstore.RevisionStore) {
	g.mx.RLock()
	defer g.mx.RUnlock()
	return g.from, g.to
}

// current yields the store serving reads and writes
func (g *CopyingGC) current() revstore.RevisionStore {
	g.mx.RLock()
	defer g.mx.RUnlock()
	if g.running {
		return g.to
	}
	return g.from
}

// Start a collection cycle: copy the graph reachable from the head into the target store,
// install the copied commit as the head of the target, then route everything to the target.
//
// The copied head keeps its revision whenever the target has not issued it yet, so that
// callers may keep using it as a base.
func (g *CopyingGC) Start(ctx context.Context) (Result, error) {
	if !g.starting.CompareAndSwap(false, true) {
		return Result{}, status.ErrIllegalState.WrapMessage("a collection cycle is already starting")
	}
	defer g.starting.Store(false)
	if g.Running() {
		return Result{}, status.ErrIllegalState.WrapMessage("a collection cycle is already running")
	}

	from, to := g.Stores()
	l := g.l.With(zap.Stringer("from", storeName(from)), zap.Stringer("to", storeName(to)))
	l.Info("collection cycle started")

	copied := atomic.NewInt64(0)
	head, err := from.GetHeadCommit(ctx)
	if err != nil {
		return Result{}, err
	}
	if err = g.copyNode(ctx, from, to, head.RootNodeID, copied); err != nil {
		return Result{}, err
	}

	// writers wait while the latest changes are copied and the target takes over
	g.writes.Lock()
	defer g.writes.Unlock()

	latest, err := from.GetHeadCommit(ctx)
	if err != nil {
		return Result{}, err
	}
	if latest.ID != head.ID {
		l.Info("catching up with commits made during the copy", zap.Stringer("head", latest.ID))
		if err = g.copyNode(ctx, from, to, latest.RootNodeID, copied); err != nil {
			return Result{}, err
		}
		head = latest
	}
	g.m.Copied(int(copied.Load()))

	rev, err := g.install(ctx, to, head)
	if err != nil {
		return Result{}, err
	}

	g.mx.Lock()
	g.running = true
	g.mx.Unlock()

	res := Result{Source: head.ID, Target: rev, Copied: int(copied.Load())}
	l.Info("collection cycle switched to target", zap.Stringer("result", res))
	return res, nil
}

// install the copy of a head commit as the head of the target store
func (g *CopyingGC) install(ctx context.Context, to revstore.RevisionStore, head *model.Commit) (model.Revision, error) {
	previous, err := to.GetHeadRevision(ctx)
	if err != nil {
		return 0, err
	}
	rev := head.ID
	if rev <= previous {
		rev = 0
	} else if _, err = to.GetCommit(ctx, rev); err == nil {
		rev = 0
	} else if !errors.Is(err, status.ErrNotFound) {
		return 0, err
	}
	if rev.IsZero() {
		g.l.Warn("head revision already issued by the target, a new revision is assigned", zap.Stringer("head", head.ID))
	}

	to.LockHead()
	defer to.UnlockHead()
	rev, err = to.PutCommit(ctx, &model.Commit{
		ID:           rev,
		ParentID:     previous,
		BaseRevision: previous,
		Timestamp:    model.NewTimestamp(),
		Message:      head.Message,
		RootNodeID:   head.RootNodeID,
		Changes:      head.Changes,
	})
	if err != nil {
		return 0, err
	}
	if err = to.SetHead(ctx, rev); err != nil {
		return 0, err
	}
	return rev, nil
}

// copyNode copies a node after its children, so that a node present in the target
// always comes with its whole subtree
func (g *CopyingGC) copyNode(ctx context.Context, from, to revstore.RevisionStore, id model.ID, copied *atomic.Int64) error {
	exists, err := to.HasNode(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	node, err := from.GetNode(ctx, id)
	if err != nil {
		return err
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.concurrentCopies)
	for _, entry := range node.ChildEntries(0, -1) {
		childID := entry.ID
		grp.Go(func() error {
			return g.copyNode(gctx, from, to, childID, copied)
		})
	}
	if err = grp.Wait(); err != nil {
		return err
	}

	if err = to.PutNode(ctx, node); err != nil {
		return err
	}
	copied.Inc()
	return nil
}

// Stop ends the running cycle: the target becomes authoritative, and the former
// authoritative store becomes the target of the next cycle
func (g *CopyingGC) Stop(ctx context.Context) error {
	g.writes.Lock()
	defer g.writes.Unlock()

	g.mx.Lock()
	if !g.running {
		g.mx.Unlock()
		return status.ErrIllegalState.WrapMessage("no collection cycle is running")
	}
	g.from, g.to = g.to, g.from
	g.running = false
	g.generation++
	generation, target := g.generation, g.to
	g.mx.Unlock()

	if g.clearOnStop {
		if err := target.Clear(ctx); err != nil {
			return err
		}
	}
	g.l.Info("collection cycle stopped", zap.Uint64("generation", generation), zap.Bool("cleared", g.clearOnStop))
	return nil
}

// Initialize both stores
func (g *CopyingGC) Initialize(ctx context.Context) error {
	from, to := g.Stores()
	if err := from.Initialize(ctx); err != nil {
		return err
	}
	return to.Initialize(ctx)
}

// Clear the store serving reads and writes
func (g *CopyingGC) Clear(ctx context.Context) error {
	g.writes.Lock()
	defer g.writes.Unlock()
	return g.current().Clear(ctx)
}

// Close both stores
func (g *CopyingGC) Close() error {
	from, to := g.Stores()
	return multierr.Append(from.Close(), to.Close())
}

func (g *CopyingGC) PutNode(ctx context.Context, node *model.Node) error {
	g.writes.RLock()
	defer g.writes.RUnlock()
	return g.current().PutNode(ctx, node)
}

func (g *CopyingGC) PutCommit(ctx context.Context, c *model.Commit) (model.Revision, error) {
	g.writes.RLock()
	defer g.writes.RUnlock()
	return g.current().PutCommit(ctx, c)
}

func (g *CopyingGC) GetNode(ctx context.Context, id model.ID) (*model.Node, error) {
	return g.current().GetNode(ctx, id)
}

func (g *CopyingGC) HasNode(ctx context.Context, id model.ID) (bool, error) {
	return g.current().HasNode(ctx, id)
}

func (g *CopyingGC) GetCommit(ctx context.Context, rev model.Revision) (*model.Commit, error) {
	return g.current().GetCommit(ctx, rev)
}

func (g *CopyingGC) GetRootNode(ctx context.Context, rev model.Revision) (*model.Node, error) {
	return g.current().GetRootNode(ctx, rev)
}

func (g *CopyingGC) GetHeadCommit(ctx context.Context) (*model.Commit, error) {
	return g.current().GetHeadCommit(ctx)
}

func (g *CopyingGC) GetHeadRevision(ctx context.Context) (model.Revision, error) {
	return g.current().GetHeadRevision(ctx)
}

// LockHead locks the head of the current store. The routing does not change until UnlockHead:
// the holder must not call other writing methods of the collector meanwhile, only SetHead.
func (g *CopyingGC) LockHead() {
	g.writes.RLock()
	g.current().LockHead()
}

func (g *CopyingGC) UnlockHead() {
	g.current().UnlockHead()
	g.writes.RUnlock()
}

func (g *CopyingGC) SetHead(ctx context.Context, rev model.Revision) error {
	return g.current().SetHead(ctx, rev)
}

func (g *CopyingGC) Commit(ctx context.Context, c *commit.Commit, base model.Revision) (model.Revision, error) {
	g.writes.RLock()
	defer g.writes.RUnlock()
	return g.current().Commit(ctx, c, base)
}

// WaitForCommit polls the head of whichever store is current, so that a switch of stores
// does not hold the wait
func (g *CopyingGC) WaitForCommit(ctx context.Context, oldHead model.Revision, timeout time.Duration) (model.Revision, error) {
	return revstore.PollHead(ctx, g.GetHeadRevision, oldHead, timeout, g.pollInterval)
}

type stringer string

func (s stringer) String() string { return string(s) }

func storeName(s revstore.RevisionStore) fmt.Stringer {
	if named, ok := s.(fmt.Stringer); ok {
		return named
	}
	return stringer(fmt.Sprintf("%T", s))
}
