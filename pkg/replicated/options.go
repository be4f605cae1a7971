package replicated

import (
	"time"

	"github.com/oneconcern/microkernel/pkg/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultRetries is the default number of extra attempts of a commit which lost the race for the head
	DefaultRetries = 20

	// DefaultRetryDelay is the default delay between two attempts of a commit
	DefaultRetryDelay = 10 * time.Millisecond
)

// Option for the replicated store
type Option func(*Store)

// Retries sets the number of extra attempts of a commit which lost the race for the head
func Retries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// RetryDelay sets the delay between two attempts of a commit
func RetryDelay(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// CacheSize sets the number of nodes and commits kept in cache
func CacheSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

// PollInterval sets the interval between two checks of the shared head when waiting for a commit
func PollInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// Ordered makes new nodes preserve the insertion order of their children
func Ordered(ordered bool) Option {
	return func(s *Store) {
		s.ordered = ordered
	}
}

// Logger for the store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// Metrics collectors for the store
func Metrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.m = m
	}
}
