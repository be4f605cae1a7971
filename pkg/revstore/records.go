package revstore

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/metrics"
	"github.com/oneconcern/microkernel/pkg/model"
)

// Records is a cached view of the nodes and commits of a backend.
//
// Writes go through to the backend first, then to the cache: no record lives only in cache.
// Reads check the cache first, and populate it from the backend on a miss.
type Records struct {
	backend backend.Backend
	cache   *lru.Cache
	m       *metrics.Metrics
}

// NewRecords builds a cached view of the records of a backend, holding up to size entries
func NewRecords(b backend.Backend, size int, m *metrics.Metrics) (*Records, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Records{
		backend: b,
		cache:   cache,
		m:       m,
	}, nil
}

func nodeCacheKey(id model.ID) string {
	return "n:" + string(id)
}

func commitCacheKey(rev model.Revision) string {
	return "c:" + rev.Key()
}

// PutNode writes a node
func (r *Records) PutNode(ctx context.Context, node *model.Node) error {
	if err := r.backend.WriteNode(ctx, node); err != nil {
		return err
	}
	r.cache.Add(nodeCacheKey(node.ID()), node)
	return nil
}

// WriteCommit writes a commit which has been assigned a revision
func (r *Records) WriteCommit(ctx context.Context, c *model.Commit) error {
	if err := r.backend.WriteCommit(ctx, c); err != nil {
		return err
	}
	r.cache.Add(commitCacheKey(c.ID), c)
	return nil
}

// GetNode reads a node
func (r *Records) GetNode(ctx context.Context, id model.ID) (*model.Node, error) {
	if cached, ok := r.cache.Get(nodeCacheKey(id)); ok {
		r.m.CacheLookup("node", true)
		return cached.(*model.Node), nil
	}
	r.m.CacheLookup("node", false)
	node, err := r.backend.ReadNode(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(nodeCacheKey(id), node)
	return node, nil
}

// HasNode tells if a node is persisted
func (r *Records) HasNode(ctx context.Context, id model.ID) (bool, error) {
	if r.cache.Contains(nodeCacheKey(id)) {
		return true, nil
	}
	return r.backend.HasNode(ctx, id)
}

// GetCommit reads a commit
func (r *Records) GetCommit(ctx context.Context, rev model.Revision) (*model.Commit, error) {
	return r.GetCommitIf(ctx, rev, nil)
}

// GetCommitIf reads a commit. On a cache miss, the commit read from the backend is cached only
// if keep accepts it, e.g. when it may still be rewritten by another process. A nil keep accepts all.
func (r *Records) GetCommitIf(ctx context.Context, rev model.Revision, keep func(*model.Commit) (bool, error)) (*model.Commit, error) {
	if cached, ok := r.cache.Get(commitCacheKey(rev)); ok {
		r.m.CacheLookup("commit", true)
		return cached.(*model.Commit), nil
	}
	r.m.CacheLookup("commit", false)
	c, err := r.backend.ReadCommit(ctx, rev)
	if err != nil {
		return nil, err
	}
	if keep != nil {
		ok, err := keep(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			return c, nil
		}
	}
	r.cache.Add(commitCacheKey(rev), c)
	return c, nil
}

// Purge the cache
func (r *Records) Purge() {
	r.cache.Purge()
}
