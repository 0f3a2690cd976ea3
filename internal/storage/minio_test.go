package storage

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMinioStore(t *testing.T) *MinioStore {
	t.Helper()
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("test-access", "test-secret", ""),
		Secure: false,
	})
	require.NoError(t, err)
	return &MinioStore{client: client, bucket: "medilog-records"}
}

func TestMinioStore_ObjectURLIsDurable(t *testing.T) {
	s := newTestMinioStore(t)

	u := s.objectURL("1700000000000-report.pdf")
	assert.Equal(t, "http://localhost:9000/medilog-records/1700000000000-report.pdf", u)
	assert.NotContains(t, u, "X-Amz", "the persisted address must not carry a signature that expires")
}

func TestMinioStore_URLPresignsPerRequest(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	s := newTestMinioStore(t)
	ctx := context.Background()

	view, err := s.URL(ctx, "1700000000000-report.pdf", false)
	require.NoError(t, err)
	assert.Contains(t, view, "/medilog-records/1700000000000-report.pdf")
	assert.Contains(t, view, "X-Amz-Signature")
	assert.NotContains(t, view, "response-content-disposition")

	dl, err := s.URL(ctx, "1700000000000-report.pdf", true)
	require.NoError(t, err)
	assert.Contains(t, dl, "response-content-disposition")
}
