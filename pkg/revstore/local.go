// Copyright © 2018 One Concern

package revstore

import (
	"context"
	"sync"
	"time"

	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/commit"
	"github.com/oneconcern/microkernel/pkg/dlogger"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/metrics"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var _ RevisionStore = &DefaultStore{}

// DefaultStore is a revision store for a single process.
//
// Records are written through to the backend, then cached. The head is
// guarded by a read/write lock.
type DefaultStore struct {
	backend      backend.Backend
	cacheSize    int
	pollInterval time.Duration
	ordered      bool
	l            *zap.Logger
	m            *metrics.Metrics

	records     *Records
	initialized *atomic.Bool
	counter     *atomic.Uint64 // last issued revision

	headLock sync.RWMutex
	head     model.Revision
}

func defaultsForStore(b backend.Backend) *DefaultStore {
	return &DefaultStore{
		backend:      b,
		cacheSize:    DefaultCacheSize,
		pollInterval: DefaultPollInterval,
		l:            dlogger.MustGetLogger("info"),
		initialized:  atomic.NewBool(false),
		counter:      atomic.NewUint64(0),
	}
}

// New builds a local revision store on some backend
func New(b backend.Backend, opts ...Option) *DefaultStore {
	s := defaultsForStore(b)
	for _, apply := range opts {
		apply(s)
	}
	s.l = s.l.With(zap.Stringer("backend", b))
	return s
}

func (s *DefaultStore) String() string {
	return "local@" + s.backend.String()
}

func (s *DefaultStore) verifyInitialized() error {
	if !s.initialized.Load() {
		return status.ErrIllegalState.WrapMessage("store not initialized")
	}
	return nil
}

// Initialize the store: read the head, or bootstrap a virgin repository
func (s *DefaultStore) Initialize(ctx context.Context) error {
	if s.initialized.Load() {
		return status.ErrIllegalState.WrapMessage("store already initialized")
	}
	records, err := NewRecords(s.backend, s.cacheSize, s.m)
	if err != nil {
		return err
	}
	s.records = records

	head, err := s.backend.ReadHead(ctx)
	switch {
	case err == nil:
		s.head = head
		if err = s.skipIssuedRevisions(ctx, head); err != nil {
			return err
		}
		s.initialized.Store(true)
		s.l.Info("revision store initialized", zap.Stringer("head", head))
		return nil

	case errors.Is(err, status.ErrNotFound):
		s.initialized.Store(true)
		if err = s.bootstrap(ctx); err != nil {
			s.initialized.Store(false)
			return err
		}
		return nil

	default:
		return err
	}
}

// skipIssuedRevisions skips revisions already issued beyond the head, e.g. to branch commits
func (s *DefaultStore) skipIssuedRevisions(ctx context.Context, head model.Revision) error {
	last := head
	for {
		exists, err := s.backend.HasCommit(ctx, last+1)
		if err != nil {
			return err
		}
		if !exists {
			break
		}
		last++
	}
	s.counter.Store(uint64(last))
	return nil
}

func (s *DefaultStore) bootstrap(ctx context.Context) error {
	root := model.EmptyNode(s.ordered)
	if err := s.PutNode(ctx, root); err != nil {
		return err
	}
	rev, err := s.PutCommit(ctx, &model.Commit{
		Timestamp:  model.NewTimestamp(),
		RootNodeID: root.ID(),
		Message:    "initial commit",
	})
	if err != nil {
		return err
	}

	s.LockHead()
	defer s.UnlockHead()
	if err = s.SetHead(ctx, rev); err != nil {
		return err
	}
	s.l.Info("virgin repository bootstrapped", zap.Stringer("head", rev))
	return nil
}

// Clear drops every record of the backend, then bootstraps the store again
func (s *DefaultStore) Clear(ctx context.Context) error {
	if err := s.verifyInitialized(); err != nil {
		return err
	}
	s.LockHead()
	err := s.backend.Clear(ctx)
	if err == nil {
		s.records.Purge()
		s.counter.Store(0)
		s.head = 0
	}
	s.UnlockHead()
	if err != nil {
		return err
	}
	s.l.Info("revision store cleared")
	return s.bootstrap(ctx)
}

// Close the store and its backend
func (s *DefaultStore) Close() error {
	if err := s.verifyInitialized(); err != nil {
		return err
	}
	s.initialized.Store(false)
	s.records.Purge()
	return s.backend.Close()
}

// PutNode writes a node through to the backend, then caches it
func (s *DefaultStore) PutNode(ctx context.Context, node *model.Node) error {
	if err := s.verifyInitialized(); err != nil {
		return err
	}
	return s.records.PutNode(ctx, node)
}

// PutCommit writes a commit through to the backend, then caches it.
// A commit with a zero id is assigned the next revision.
func (s *DefaultStore) PutCommit(ctx context.Context, c *model.Commit) (model.Revision, error) {
	if err := s.verifyInitialized(); err != nil {
		return 0, err
	}
	if c.ID.IsZero() {
		c.ID = model.Revision(s.counter.Inc())
	} else {
		s.raiseCounter(c.ID)
	}
	if err := s.records.WriteCommit(ctx, c); err != nil {
		return 0, err
	}
	return c.ID, nil
}

func (s *DefaultStore) raiseCounter(rev model.Revision) {
	for {
		last := s.counter.Load()
		if uint64(rev) <= last || s.counter.CompareAndSwap(last, uint64(rev)) {
			return
		}
	}
}

// GetNode reads a node from the cache, or from the backend on a miss
func (s *DefaultStore) GetNode(ctx context.Context, id model.ID) (*model.Node, error) {
	if err := s.verifyInitialized(); err != nil {
		return nil, err
	}
	return s.records.GetNode(ctx, id)
}

// HasNode tells if a node is persisted
func (s *DefaultStore) HasNode(ctx context.Context, id model.ID) (bool, error) {
	if err := s.verifyInitialized(); err != nil {
		return false, err
	}
	return s.records.HasNode(ctx, id)
}

// GetCommit reads a commit from the cache, or from the backend on a miss
func (s *DefaultStore) GetCommit(ctx context.Context, rev model.Revision) (*model.Commit, error) {
	if err := s.verifyInitialized(); err != nil {
		return nil, err
	}
	return s.records.GetCommit(ctx, rev)
}

// GetRootNode yields the root node of a revision
func (s *DefaultStore) GetRootNode(ctx context.Context, rev model.Revision) (*model.Node, error) {
	c, err := s.GetCommit(ctx, rev)
	if err != nil {
		return nil, err
	}
	return s.GetNode(ctx, c.RootNodeID)
}

// GetHeadRevision yields the current head, under the shared head lock
func (s *DefaultStore) GetHeadRevision(_ context.Context) (model.Revision, error) {
	if err := s.verifyInitialized(); err != nil {
		return 0, err
	}
	s.headLock.RLock()
	defer s.headLock.RUnlock()
	return s.head, nil
}

// GetHeadCommit yields the commit at the head
func (s *DefaultStore) GetHeadCommit(ctx context.Context) (*model.Commit, error) {
	head, err := s.GetHeadRevision(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetCommit(ctx, head)
}

// LockHead acquires the exclusive head lock
func (s *DefaultStore) LockHead() {
	s.headLock.Lock()
}

// UnlockHead releases the exclusive head lock
func (s *DefaultStore) UnlockHead() {
	s.headLock.Unlock()
}

// SetHead persists the new head, then publishes it. The caller must hold the head lock.
func (s *DefaultStore) SetHead(ctx context.Context, rev model.Revision) error {
	if err := s.verifyInitialized(); err != nil {
		return err
	}
	if err := s.backend.WriteHead(ctx, rev); err != nil {
		return err
	}
	s.head = rev
	return nil
}

// Commit applies a commit on the current head, then advances the head under the exclusive lock.
//
// Commits based on a branch revision stay on that branch.
func (s *DefaultStore) Commit(ctx context.Context, c *commit.Commit, base model.Revision) (model.Revision, error) {
	start := time.Now()
	if err := s.verifyInitialized(); err != nil {
		return 0, err
	}
	baseCommit, err := s.GetCommit(ctx, base)
	if err != nil {
		return 0, err
	}
	if baseCommit.IsBranch() {
		rev, err := CommitOnBranch(ctx, s, c, baseCommit, s.treeOptions()...)
		s.recordCommit(err, start)
		return rev, err
	}

	s.LockHead()
	defer s.UnlockHead()

	rev, err := s.commitOnHead(ctx, c, base)
	s.recordCommit(err, start)
	if err != nil {
		return 0, err
	}
	s.l.Info("committed", zap.Stringer("revision", rev), zap.Stringer("base", base), zap.String("message", c.Message))
	return rev, nil
}

func (s *DefaultStore) commitOnHead(ctx context.Context, c *commit.Commit, base model.Revision) (model.Revision, error) {
	head := s.head
	headCommit, err := s.GetCommit(ctx, head)
	if err != nil {
		return 0, err
	}
	tree, err := commit.NewTree(ctx, s, headCommit.RootNodeID, s.treeOptions()...)
	if err != nil {
		return 0, err
	}
	if err = c.Apply(ctx, tree); err != nil {
		return 0, err
	}
	rootID, err := tree.Persist(ctx, s)
	if err != nil {
		return 0, err
	}
	rev, err := s.PutCommit(ctx, c.Record(0, head, base, rootID, tree.AffectedPaths()))
	if err != nil {
		return 0, err
	}
	if err = s.SetHead(ctx, rev); err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *DefaultStore) treeOptions() []commit.TreeOption {
	return []commit.TreeOption{commit.Ordered(s.ordered), commit.Logger(s.l)}
}

func (s *DefaultStore) recordCommit(err error, start time.Time) {
	switch {
	case err == nil:
		s.m.Commit(metrics.OutcomeSuccess, start)
	case errors.Is(err, status.ErrConflict):
		s.m.Commit(metrics.OutcomeConflict, start)
	default:
		s.m.Commit(metrics.OutcomeFailed, start)
	}
}

// WaitForCommit polls the head until it differs from oldHead or the timeout elapses
func (s *DefaultStore) WaitForCommit(ctx context.Context, oldHead model.Revision, timeout time.Duration) (model.Revision, error) {
	return PollHead(ctx, s.GetHeadRevision, oldHead, timeout, s.pollInterval)
}
