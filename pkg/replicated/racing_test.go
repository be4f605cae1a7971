package replicated

import (
	"context"
	"sync"

	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/model"
)

// racingBackend lets a competing process install a commit right before each compare-and-set
type racingBackend struct {
	*backend.Memory

	mx     sync.Mutex
	racing bool
	once   bool
	won    []model.Revision
	lost   int
}

func (b *racingBackend) compete() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.racing = true
}

func (b *racingBackend) competeOnce() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.racing, b.once = true, true
}

func (b *racingBackend) CompareAndSetHead(ctx context.Context, expected, next model.Revision) (bool, error) {
	b.mx.Lock()
	defer b.mx.Unlock()

	if b.racing {
		if b.once {
			b.racing = false
		}
		rev, err := b.competitor(ctx, expected)
		if err != nil {
			return false, err
		}
		b.won = append(b.won, rev)
	}
	swapped, err := b.Memory.CompareAndSetHead(ctx, expected, next)
	if err == nil && !swapped {
		b.lost++
	}
	return swapped, err
}

// competitor commits the unchanged tree of the expected head, or bootstraps a virgin repository
func (b *racingBackend) competitor(ctx context.Context, expected model.Revision) (model.Revision, error) {
	_, candidate, err := b.Memory.ReadAndIncHead(ctx)
	if err != nil {
		return 0, err
	}
	rec := &model.Commit{
		ID:        candidate,
		ParentID:  expected,
		Timestamp: model.NewTimestamp(),
		Message:   "competitor",
	}
	if expected.IsZero() {
		root := model.EmptyNode(false)
		if err = b.Memory.WriteNode(ctx, root); err != nil {
			return 0, err
		}
		rec.RootNodeID = root.ID()
	} else {
		prior, err := b.Memory.ReadCommit(ctx, expected)
		if err != nil {
			return 0, err
		}
		rec.RootNodeID = prior.RootNodeID
	}
	if err = b.Memory.WriteCommit(ctx, rec); err != nil {
		return 0, err
	}
	if _, err = b.Memory.CompareAndSetHead(ctx, expected, candidate); err != nil {
		return 0, err
	}
	return candidate, nil
}
