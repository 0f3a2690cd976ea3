// Package storage abstracts where uploaded files live. A record row only
// keeps the retrievable URL and a deletable key; the bytes go through one of
// the Store implementations here.
package storage

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// StoredObject is the handle a Store returns for an uploaded blob.
type StoredObject struct {
	// Key deletes the blob later.
	Key string
	// URL retrieves the blob.
	URL string
}

// Store is the blob store collaborator. Implementations must treat deletion
// of an absent key as success, and must honor context cancellation.
type Store interface {
	// Put uploads size bytes from r under a fresh key derived from name.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (StoredObject, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a retrievable location for the blob. When download is true
	// the location carries a forced-download hint.
	URL(ctx context.Context, key string, download bool) (string, error)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// objectKey builds a collision-resistant key from an original file name.
func objectKey(name string) string {
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if name == "" {
		name = "file"
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + name
}
