package objstore

import (
	"context"
	"sync"

	"sback-go/internal/engine"
)

// MemoryStore is an in-memory implementation of the ObjectStore interface,
// useful for testing. It is safe for concurrent use.
type MemoryStore struct {
	name        string
	maxFileSize int64
	baseURL     string
	objects     map[string][]byte // key -> content
	types       map[string]string // key -> content type
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory object store with the given name.
func NewMemoryStore(name string, maxFileSize int64) *MemoryStore {
	return &MemoryStore{
		name:        name,
		maxFileSize: maxFileSize,
		baseURL:     "https://objects.test",
		objects:     make(map[string][]byte),
		types:       make(map[string]string),
	}
}

func (m *MemoryStore) ProviderID() string   { return "memory" }
func (m *MemoryStore) ProviderName() string { return m.name }

func (m *MemoryStore) MaxFileSize() int64 { return m.maxFileSize }

// Put stores the content and returns a synthetic URL for it.
func (m *MemoryStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(content))
	copy(buf, content)
	m.objects[key] = buf
	m.types[key] = contentType
	return m.baseURL + "/" + escapeKey(key), nil
}

// InitClientUpload mimics a presigning provider so delivery paths can be
// exercised without network access.
func (m *MemoryStore) InitClientUpload(ctx context.Context, key string, size int64, contentType string) (*engine.ClientUpload, error) {
	return &engine.ClientUpload{
		Strategy:     engine.UploadClientS3,
		UploadURL:    m.baseURL + "/upload/" + escapeKey(key),
		UploadMethod: "PUT",
		UploadHeaders: map[string]string{
			"Content-Type": contentType,
		},
		SourceURL: m.baseURL + "/" + escapeKey(key),
	}, nil
}

// Object returns the stored content for a key, for test assertions.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	return data, ok
}

// Keys returns all stored keys, for test assertions.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// Compile-time check that MemoryStore implements the ObjectStore interface
var _ engine.ObjectStore = (*MemoryStore)(nil)
