package revstore

import (
	"context"
	"time"

	"github.com/oneconcern/microkernel/pkg/model"
)

// PollHead polls the head revision until it differs from oldHead or the timeout elapses.
//
// A zero timeout checks the head once. Cancelling the context interrupts the wait
// and yields the last known head with the context error.
func PollHead(ctx context.Context, head func(context.Context) (model.Revision, error), oldHead model.Revision, timeout, interval time.Duration) (model.Revision, error) {
	current, err := head(ctx)
	if err != nil || current != oldHead || timeout <= 0 {
		return current, err
	}

	if interval > timeout {
		interval = timeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-deadline.C:
			return head(ctx)
		case <-ticker.C:
			current, err = head(ctx)
			if err != nil || current != oldHead {
				return current, err
			}
		}
	}
}
