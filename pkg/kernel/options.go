package kernel

import (
	"io"

	"github.com/oneconcern/microkernel/pkg/blob"
	"go.uber.org/zap"
)

// Option for the kernel
type Option func(*MicroKernel)

// Logger for the kernel
func Logger(l *zap.Logger) Option {
	return func(k *MicroKernel) {
		if l != nil {
			k.l = l
		}
	}
}

// Blobs sets the blob store
func Blobs(b *blob.Store) Option {
	return func(k *MicroKernel) {
		k.blobs = b
	}
}

// CloseWith registers resources closed along with the kernel, after the revision store
func CloseWith(closers ...io.Closer) Option {
	return func(k *MicroKernel) {
		k.closers = append(k.closers, closers...)
	}
}
