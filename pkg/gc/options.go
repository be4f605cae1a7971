package gc

import (
	"time"

	"github.com/oneconcern/microkernel/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultConcurrentCopies is the default number of children of a node copied concurrently
const DefaultConcurrentCopies = 8

// Option for the garbage collector
type Option func(*CopyingGC)

// Logger for the garbage collector
func Logger(l *zap.Logger) Option {
	return func(g *CopyingGC) {
		if l != nil {
			g.l = l
		}
	}
}

// Metrics collectors for the garbage collector
func Metrics(m *metrics.Metrics) Option {
	return func(g *CopyingGC) {
		g.m = m
	}
}

// ConcurrentCopies tunes the number of children of a node copied concurrently
func ConcurrentCopies(n int) Option {
	return func(g *CopyingGC) {
		if n > 0 {
			g.concurrentCopies = n
		}
	}
}

// ClearOnStop resets the former authoritative store when a cycle stops, so that it
// only receives live nodes as the target of the next cycle. Enabled by default.
func ClearOnStop(enabled bool) Option {
	return func(g *CopyingGC) {
		g.clearOnStop = enabled
	}
}

// PollInterval sets the interval between two checks of the head when waiting for a commit
func PollInterval(interval time.Duration) Option {
	return func(g *CopyingGC) {
		if interval > 0 {
			g.pollInterval = interval
		}
	}
}
