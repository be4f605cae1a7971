package kernel

import (
	"context"
	"io"

	"github.com/oneconcern/microkernel/pkg/status"
)

func (k *MicroKernel) verifyBlobs() error {
	if k.blobs == nil {
		return status.ErrIllegalState.WrapMessage("no blob store configured")
	}
	return nil
}

// GetLength yields the size of a blob
func (k *MicroKernel) GetLength(ctx context.Context, blobID string) (int64, error) {
	if err := k.verifyBlobs(); err != nil {
		return 0, err
	}
	return k.blobs.GetLength(ctx, blobID)
}

// Read reads up to length bytes of a blob starting at pos into buf[off:].
// It yields io.EOF when pos is at or past the end of the blob.
func (k *MicroKernel) Read(ctx context.Context, blobID string, pos int64, buf []byte, off, length int) (int, error) {
	if err := k.verifyBlobs(); err != nil {
		return 0, err
	}
	return k.blobs.Read(ctx, blobID, pos, buf, off, length)
}

// Write stores a blob and yields its content id. Writing the same content twice stores it once.
func (k *MicroKernel) Write(ctx context.Context, r io.Reader) (string, error) {
	if err := k.verifyBlobs(); err != nil {
		return "", err
	}
	return k.blobs.Write(ctx, r)
}
