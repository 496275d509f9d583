package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ============================================================================
// Unit Tests (no external dependencies)
// ============================================================================

func TestNewS3Archive_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3Archive(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3Archive(ctx, &config.StorageConfig{AccessKeyID: "k", SecretAccessKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		_, err := NewS3Archive(ctx, &config.StorageConfig{Bucket: "b", SecretAccessKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		_, err := NewS3Archive(ctx, &config.StorageConfig{Bucket: "b", AccessKeyID: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})
}

func TestS3Archive_Key(t *testing.T) {
	archive, err := NewS3Archive(context.Background(), &config.StorageConfig{
		Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s", Prefix: "/invoices/",
	})
	require.NoError(t, err)

	owner := uuid.MustParse("7f1d6c3e-9a52-4f7b-8a1e-2c4d5e6f7a8b")
	assert.Equal(t, "invoices/"+owner.String()+"/Invoice-20240115001.pdf", archive.Key(owner, "Invoice-20240115001.pdf"))
	assert.Equal(t, "invoices/"+owner.String()+"/evil.pdf", archive.Key(owner, "../../evil.pdf"))
}

func TestS3Archive_DownloadURL(t *testing.T) {
	archive, err := NewS3Archive(context.Background(), &config.StorageConfig{
		Bucket: "docs", AccessKeyID: "k", SecretAccessKey: "s",
		Endpoint: "http://localhost:9000", UsePathStyle: true,
	}, WithPresignExpiration(5*time.Minute))
	require.NoError(t, err)

	u, expiresAt, err := archive.DownloadURL(context.Background(), "invoices/a/Invoice-1.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:9000/docs/invoices/a/Invoice-1.pdf?"))
	assert.Contains(t, u, "X-Amz-Expires=300")
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	_, _, err = archive.DownloadURL(context.Background(), "")
	assert.Error(t, err)
}

// fakeS3 answers the handful of path-style calls the archive makes
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.buckets[bucket] = true
	case len(parts) == 2 && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newFakeArchive(t *testing.T) (*S3Archive, *fakeS3) {
	t.Helper()
	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	archive, err := NewS3Archive(context.Background(), &config.StorageConfig{
		Bucket: "invoices", AccessKeyID: "k", SecretAccessKey: "s",
		Endpoint: srv.URL, UsePathStyle: true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return archive, fake
}

func TestS3Archive_EnsureBucket_CreatesOnce(t *testing.T) {
	archive, fake := newFakeArchive(t)

	require.NoError(t, archive.EnsureBucket(context.Background()))
	assert.True(t, fake.buckets["invoices"])
	require.NoError(t, archive.EnsureBucket(context.Background()))
}

func TestS3Archive_Archive(t *testing.T) {
	archive, fake := newFakeArchive(t)
	pdf := []byte("%PDF-1.4 archived")

	require.NoError(t, archive.Archive(context.Background(), "owner/Invoice-1.pdf", pdf))

	assert.Equal(t, pdf, fake.objects["/invoices/owner/Invoice-1.pdf"])
	assert.Equal(t, "application/pdf", fake.types["/invoices/owner/Invoice-1.pdf"])
	assert.Equal(t, "invoices", archive.Bucket())

	assert.Error(t, archive.Archive(context.Background(), "", pdf))
}
