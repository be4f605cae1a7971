package backend_test

import (
	"testing"

	"github.com/oneconcern/microkernel/pkg/backend"
	"github.com/oneconcern/microkernel/pkg/backend/backendtest"
	"github.com/oneconcern/microkernel/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	backendtest.TestBackend(t, backend.NewMemory())
}

func TestMemoryShared(t *testing.T) {
	backendtest.TestShared(t, backend.NewMemory())
}

func TestStorage(t *testing.T) {
	fs, err := localfs.New(afero.NewMemMapFs())
	require.NoError(t, err)
	b := backend.NewStorage(fs)
	assert.Equal(t, "storage@localfs", b.String())
	backendtest.TestBackend(t, b)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "nodes/ab/abcdef", backend.NodeKey("abcdef"))
	assert.Equal(t, "commits/000000000000001f", backend.CommitKey(0x1f))
}
