package bdgr

import "go.uber.org/zap"

// Option for the badger backend
type Option func(*Backend)

// InMemory keeps the database in memory, e.g. for tests
func InMemory(enabled bool) Option {
	return func(b *Backend) {
		b.inMemory = enabled
	}
}

// ValueLogFileSize sets the maximum size of badger value log files
func ValueLogFileSize(size int64) Option {
	return func(b *Backend) {
		if size > 0 {
			b.valueLogFileSize = size
		}
	}
}

// Logger for the backend. Badger internal logs are redirected to it at warning level and above.
func Logger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.l = l
		}
	}
}
