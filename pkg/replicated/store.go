// Copyright © 2018 One Concern

// Package replicated provides a revision store shared by several processes.
//
// The head is advanced optimistically: a commit is built on the head it
// observed, then installed with a compare-and-set on the shared head. A
// commit which loses the race is marked as failed and attempted again, up
// to a fixed number of retries.
package replicated

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/dlogger"
	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/metrics"
	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/revstore"
	"github.com/oneconcern/microkernel/pkg/status"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var _ revstore.RevisionStore = &Store{}

// Store is a revision store over a shared backend
type Store struct {
	shared       backend.Shared
	retries      int
	retryDelay   time.Duration
	cacheSize    int
	pollInterval time.Duration
	ordered      bool
	l            *zap.Logger
	m            *metrics.Metrics

	records     *revstore.Records
	initialized *atomic.Bool

	// revisions known to have won the race for the head: their records are final
	settled *lru.Cache

	// headLock serializes head updates within this process only:
	// other processes are fenced by the compare-and-set on the shared head.
	headLock sync.Mutex
}

func defaultsForStore(shared backend.Shared) *Store {
	return &Store{
		shared:       shared,
		retries:      DefaultRetries,
		retryDelay:   DefaultRetryDelay,
		cacheSize:    revstore.DefaultCacheSize,
		pollInterval: revstore.DefaultPollInterval,
		l:            dlogger.MustGetLogger("info"),
		initialized:  atomic.NewBool(false),
	}
}

// New builds a replicated store over a shared backend
func New(shared backend.Shared, opts ...Option) *Store {
	s := defaultsForStore(shared)
	for _, apply := range opts {
		apply(s)
	}
	s.l = s.l.With(zap.Stringer("backend", shared))
	return s
}

func (s *Store) String() string {
	return "replicated@" + s.shared.String()
}

func (s *Store) verifyInitialized() error {
	if !s.initialized.Load() {
		return status.ErrIllegalState.WrapMessage("store not initialized")
	}
	return nil
}

// Initialize the store. A virgin repository is bootstrapped by whichever process wins the race.
func (s *Store) Initialize(ctx context.Context) error {
	if s.initialized.Load() {
		return status.ErrIllegalState.WrapMessage("store already initialized")
	}
	records, err := revstore.NewRecords(s.shared, s.cacheSize, s.m)
	if err != nil {
		return err
	}
	s.records = records
	if s.settled, err = lru.New(s.cacheSize); err != nil {
		return err
	}

	head, err := s.shared.ReadHead(ctx)
	switch {
	case err == nil:
		s.initialized.Store(true)
		s.l.Info("replicated store initialized", zap.Stringer("head", head))
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

func (s *Store) bootstrap(ctx context.Context) error {
	root := model.EmptyNode(s.ordered)
	if err := s.records.PutNode(ctx, root); err != nil {
		return err
	}
	prior, candidate, err := s.shared.ReadAndIncHead(ctx)
	if err != nil {
		return err
	}
	if !prior.IsZero() {
		// another process has bootstrapped meanwhile
		return nil
	}
	rec := &model.Commit{
		ID:         candidate,
		Timestamp:  model.NewTimestamp(),
		RootNodeID: root.ID(),
		Message:    "initial commit",
	}
	if err = s.records.WriteCommit(ctx, rec); err != nil {
		return err
	}
	swapped, err := s.shared.CompareAndSetHead(ctx, 0, candidate)
	if err != nil {
		return err
	}
	if !swapped {
		s.l.Info("virgin repository bootstrapped by another process")
		return s.markFailed(ctx, rec)
	}
	s.l.Info("virgin repository bootstrapped", zap.Stringer("head", candidate))
	return nil
}

// Clear drops every record of the shared backend, then bootstraps the store again.
//
// Other processes sharing the backend must not use it meanwhile.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.verifyInitialized(); err != nil {
		return err
	}
	s.LockHead()
	err := s.shared.Clear(ctx)
	if err == nil {
		s.records.Purge()
		s.settled.Purge()
	}
	s.UnlockHead()
	if err != nil {
		return err
	}
	s.l.Info("replicated store cleared")
	return s.bootstrap(ctx)
}

// Close the store and its backend
func (s *Store) Close() error {
	if err := s.verifyInitialized(); err != nil {
		return err
	}
	s.initialized.Store(false)
	s.records.Purge()
	return s.shared.Close()
}

// PutNode writes a node through to the shared backend, then caches it
func (s *Store) PutNode(ctx context.Context, node *model.Node) error {
	if err := s.verifyInitialized(); err != nil {
		return err
	}
	return s.records.PutNode(ctx, node)
}

// PutCommit writes a commit. A commit with a zero id is assigned a revision from the shared counter.
func (s *Store) PutCommit(ctx context.Context, c *model.Commit) (model.Revision, error) {
	if err := s.verifyInitialized(); err != nil {
		return 0, err
	}
	if c.ID.IsZero() {
		_, candidate, err := s.shared.ReadAndIncHead(ctx)
		if err != nil {
			return 0, err
		}
		c.ID = candidate
	}
	if err := s.records.WriteCommit(ctx, c); err != nil {
		return 0, err
	}
	return c.ID, nil
}

// GetNode reads a node from the cache, or from the shared backend on a miss
func (s *Store) GetNode(ctx context.Context, id model.ID) (*model.Node, error) {
	if err := s.verifyInitialized(); err != nil {
		return nil, err
	}
	return s.records.GetNode(ctx, id)
}

// HasNode tells if a node is persisted
func (s *Store) HasNode(ctx context.Context, id model.ID) (bool, error) {
	if err := s.verifyInitialized(); err != nil {
		return false, err
	}
	return s.records.HasNode(ctx, id)
}

// GetCommit reads a commit. Commits which lost the race for the head are not found.
func (s *Store) GetCommit(ctx context.Context, rev model.Revision) (*model.Commit, error) {
	if err := s.verifyInitialized(); err != nil {
		return nil, err
	}
	c, err := s.records.GetCommitIf(ctx, rev, s.isSettled(ctx))
	if err != nil {
		return nil, err
	}
	if c.Failed {
		return nil, status.ErrNotFound.WrapMessage("commit %v failed", rev)
	}
	if !c.IsBootstrap() {
		s.settled.Add(c.ParentID, struct{}{})
	}
	return c, nil
}

// isSettled tells if a commit record is final. A candidate written by another process may
// still be marked as failed, unless it has been seen at the head or as the parent of a
// settled commit.
func (s *Store) isSettled(ctx context.Context) func(*model.Commit) (bool, error) {
	return func(c *model.Commit) (bool, error) {
		if c.Failed || c.IsBranch() || s.settled.Contains(c.ID) {
			return true, nil
		}
		head, err := s.shared.ReadHead(ctx)
		if err != nil {
			return false, err
		}
		return c.ID == head, nil
	}
}

// GetRootNode yields the root node of a revision
func (s *Store) GetRootNode(ctx context.Context, rev model.Revision) (*model.Node, error) {
	c, err := s.GetCommit(ctx, rev)
	if err != nil {
		return nil, err
	}
	return s.GetNode(ctx, c.RootNodeID)
}

// GetHeadRevision reads the shared head
func (s *Store) GetHeadRevision(ctx context.Context) (model.Revision, error) {
	if err := s.verifyInitialized(); err != nil {
		return 0, err
	}
	return s.shared.ReadHead(ctx)
}

// GetHeadCommit yields the commit at the shared head
func (s *Store) GetHeadCommit(ctx context.Context) (*model.Commit, error) {
	head, err := s.GetHeadRevision(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetCommit(ctx, head)
}

// LockHead serializes head updates within this process
func (s *Store) LockHead() {
	s.headLock.Lock()
}

// UnlockHead releases the process-local head lock
func (s *Store) UnlockHead() {
	s.headLock.Unlock()
}

// SetHead forces the shared head. The caller must hold the head lock.
func (s *Store) SetHead(ctx context.Context, rev model.Revision) error {
	if err := s.verifyInitialized(); err != nil {
		return err
	}
	return s.shared.WriteHead(ctx, rev)
}

// WaitForCommit polls the shared head until it differs from oldHead or the timeout elapses
func (s *Store) WaitForCommit(ctx context.Context, oldHead model.Revision, timeout time.Duration) (model.Revision, error) {
	return revstore.PollHead(ctx, s.GetHeadRevision, oldHead, timeout, s.pollInterval)
}

func (s *Store) markFailed(ctx context.Context, rec *model.Commit) error {
	failed := *rec
	failed.Failed = true
	return s.records.WriteCommit(ctx, &failed)
}
