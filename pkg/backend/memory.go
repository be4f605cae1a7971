package backend

import (
	"context"
	"sync"

	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
)

var _ Shared = &Memory{}

// Memory is an in-memory shared backend. Records are kept in their serialized form.
type Memory struct {
	mx      sync.Mutex
	nodes   map[model.ID][]byte
	commits map[model.Revision][]byte
	head    model.Revision
	counter model.Revision
	hasHead bool
}

// NewMemory builds an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{
		nodes:   make(map[model.ID][]byte),
		commits: make(map[model.Revision][]byte),
	}
}

func (m *Memory) String() string {
	return "memory"
}

func (m *Memory) ReadNode(_ context.Context, id model.ID) (*model.Node, error) {
	m.mx.Lock()
	data, ok := m.nodes[id]
	m.mx.Unlock()
	if !ok {
		return nil, status.ErrNotFound.WrapMessage("node %s", id)
	}
	return model.DecodeNode(id, data)
}

func (m *Memory) WriteNode(_ context.Context, node *model.Node) error {
	data, err := model.EncodeNode(node)
	if err != nil {
		return err
	}
	m.mx.Lock()
	m.nodes[node.ID()] = data
	m.mx.Unlock()
	return nil
}

func (m *Memory) HasNode(_ context.Context, id model.ID) (bool, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	_, ok := m.nodes[id]
	return ok, nil
}

func (m *Memory) ReadCommit(_ context.Context, rev model.Revision) (*model.Commit, error) {
	m.mx.Lock()
	data, ok := m.commits[rev]
	m.mx.Unlock()
	if !ok {
		return nil, status.ErrNotFound.WrapMessage("commit %v", rev)
	}
	return model.DecodeCommit(data)
}

func (m *Memory) WriteCommit(_ context.Context, c *model.Commit) error {
	data, err := model.EncodeCommit(c)
	if err != nil {
		return err
	}
	m.mx.Lock()
	m.commits[c.ID] = data
	m.mx.Unlock()
	return nil
}

func (m *Memory) HasCommit(_ context.Context, rev model.Revision) (bool, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	_, ok := m.commits[rev]
	return ok, nil
}

func (m *Memory) ReadHead(_ context.Context) (model.Revision, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if !m.hasHead {
		return 0, status.ErrNotFound.WrapMessage("head")
	}
	return m.head, nil
}

func (m *Memory) WriteHead(_ context.Context, rev model.Revision) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.head, m.hasHead = rev, true
	m.counter = maxRevision(m.counter, rev)
	return nil
}

func (m *Memory) ReadAndIncHead(_ context.Context) (model.Revision, model.Revision, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.counter = maxRevision(m.counter, m.head) + 1
	return m.head, m.counter, nil
}

func (m *Memory) CompareAndSetHead(_ context.Context, expected, next model.Revision) (bool, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.head != expected {
		return false, nil
	}
	m.head, m.hasHead = next, true
	m.counter = maxRevision(m.counter, next)
	return true, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.nodes = make(map[model.ID][]byte)
	m.commits = make(map[model.Revision][]byte)
	m.head, m.counter, m.hasHead = 0, 0, false
	return nil
}

func (m *Memory) Close() error {
	return nil
}
