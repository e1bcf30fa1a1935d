package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemoryStore keeps objects in process memory. Used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	baseURL string

	// FailPut, when set, is consulted before every Put.
	FailPut func(key string) error
}

type memObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryStore{objects: make(map[string]memObject), baseURL: baseURL}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.FailPut != nil {
		if err := s.FailPut(key); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if size >= 0 && n != size {
		return "", fmt.Errorf("object %s: short write %d of %d bytes", key, n, size)
	}

	s.mu.Lock()
	s.objects[key] = memObject{data: buf.Bytes(), contentType: contentType}
	s.mu.Unlock()
	return joinURL(s.baseURL, key), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) KeyFromURL(url string) (string, bool) {
	return trimURL(s.baseURL, url)
}

// Keys lists stored keys in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a copy of the stored bytes and content type.
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.contentType, true
}
