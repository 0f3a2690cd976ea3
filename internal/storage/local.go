package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// LocalStore keeps blobs as files under a single directory. The HTTP layer
// serves the directory at /uploads, so the retrievable URL is just
// baseURL + /uploads/ + key.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the directory blobs are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put writes the blob to disk under a fresh key.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}

	key := objectKey(name)
	path := filepath.Join(s.dir, key)

	f, err := os.Create(path)
	if err != nil {
		return StoredObject{}, fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(f, &contextReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		os.Remove(path)
		return StoredObject{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return StoredObject{}, fmt.Errorf("close %s: %w", path, err)
	}

	obj := StoredObject{Key: key}
	obj.URL, err = s.URL(ctx, key, false)
	if err != nil {
		os.Remove(path)
		return StoredObject{}, err
	}
	return obj, nil
}

// Delete removes the file. A missing file counts as already deleted.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the static-serving location for the blob.
func (s *LocalStore) URL(_ context.Context, key string, download bool) (string, error) {
	u := s.baseURL + "/uploads/" + url.PathEscape(key)
	if download {
		u += "?download=1"
	}
	return u, nil
}

// contextReader aborts an in-flight copy when the request context is done,
// so a disconnected uploader never leaves the handler blocked.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
