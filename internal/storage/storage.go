// Package storage exposes the object store used for attachment and avatar bytes.
package storage

import (
	"context"
	"errors"
)

// ErrObjectExists is returned by Put when the key is already taken.
var ErrObjectExists = errors.New("object already exists")

// BlobStore stores objects by bucket and key and exposes their public URLs.
// Put refuses keys that already exist; it is not atomic against concurrent writers
// of the same key, so keys must be unique per upload.
type BlobStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
}
