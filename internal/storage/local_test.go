package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), "http://localhost:3001")
	require.NoError(t, err)
	return s
}

func TestLocalStore_PutAndURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestLocalStore(t)

	obj, err := s.Put(ctx, "blood report.pdf", strings.NewReader("pdf-bytes"), 9, "application/pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, obj.Key)
	assert.NotContains(t, obj.Key, " ", "keys must be filesystem-safe")
	assert.Equal(t, "http://localhost:3001/uploads/"+obj.Key, obj.URL)

	data, err := os.ReadFile(filepath.Join(s.Dir(), obj.Key))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	dl, err := s.URL(ctx, obj.Key, true)
	require.NoError(t, err)
	assert.Equal(t, obj.URL+"?download=1", dl)
}

func TestLocalStore_DeleteIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestLocalStore(t)

	obj, err := s.Put(ctx, "scan.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, obj.Key))
	_, statErr := os.Stat(filepath.Join(s.Dir(), obj.Key))
	assert.True(t, os.IsNotExist(statErr))

	// Deleting an already absent blob is success.
	assert.NoError(t, s.Delete(ctx, obj.Key))
	assert.NoError(t, s.Delete(ctx, "never-existed"))
}

func TestLocalStore_PutCanceledContext(t *testing.T) {
	t.Parallel()
	s := newTestLocalStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "scan.png", strings.NewReader("png"), 3, "image/png")
	assert.Error(t, err)

	// A canceled upload must not leave a partial file behind.
	entries, readErr := os.ReadDir(s.Dir())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestLocalStore_DeleteIgnoresPathTraversal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestLocalStore(t)

	outside := filepath.Join(filepath.Dir(s.Dir()), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	require.NoError(t, s.Delete(ctx, "../outside.txt"))
	_, err := os.Stat(outside)
	assert.NoError(t, err, "delete must never escape the upload dir")
}
