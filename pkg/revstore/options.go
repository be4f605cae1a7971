package revstore

import (
	"time"

	"github.com/oneconcern/microkernel/pkg/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultCacheSize is the default number of nodes and commits kept in cache
	DefaultCacheSize = 10000

	// DefaultPollInterval is the default interval between two checks of the head when waiting for a commit
	DefaultPollInterval = 50 * time.Millisecond
)

// Option for the local revision store
type Option func(*DefaultStore)

// CacheSize sets the number of nodes and commits kept in cache
func CacheSize(size int) Option {
	return func(s *DefaultStore) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

// PollInterval sets the interval between two checks of the head when waiting for a commit
func PollInterval(interval time.Duration) Option {
	return func(s *DefaultStore) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// Ordered makes new nodes preserve the insertion order of their children
func Ordered(ordered bool) Option {
	return func(s *DefaultStore) {
		s.ordered = ordered
	}
}

// Logger for the store
func Logger(l *zap.Logger) Option {
	return func(s *DefaultStore) {
		if l != nil {
			s.l = l
		}
	}
}

// Metrics collectors for the store
func Metrics(m *metrics.Metrics) Option {
	return func(s *DefaultStore) {
		s.m = m
	}
}
