package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrObjectNotFound is returned by MemoryStore.Delete for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// Object is a stored blob with its declared content type.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore is an in-process BlobStore used when no object storage is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

// NewMemoryStore returns an empty store serving URLs under baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]Object)}
}

func (s *MemoryStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := bucket + "/" + key
	if _, ok := s.objects[path]; ok {
		return "", ErrObjectExists
	}
	s.objects[path] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return s.PublicURL(bucket, key), nil
}

func (s *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := bucket + "/" + key
	if _, ok := s.objects[path]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, path)
	return nil
}

func (s *MemoryStore) PublicURL(bucket, key string) string {
	return publicURL(s.baseURL, bucket, key)
}

// Get returns the stored object, if any.
func (s *MemoryStore) Get(bucket, key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[bucket+"/"+key]
	return obj, ok
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
