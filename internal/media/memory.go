package media

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/orgball2608/storycam/internal/domain"
)

const memoryScheme = "mem://"

type object struct {
	mimeType string
	data     []byte
}

// MemoryStore keeps media in process memory. Locations are only good for the
// lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]object)}
}

func (m *MemoryStore) Put(_ context.Context, file domain.MediaFile) (string, error) {
	loc := memoryScheme + uuid.NewString() + extension(file.MIMEType)
	data := make([]byte, len(file.Data))
	copy(data, file.Data)

	m.mu.Lock()
	m.objects[loc] = object{mimeType: file.MIMEType, data: data}
	m.mu.Unlock()
	return loc, nil
}

func (m *MemoryStore) Delete(_ context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[location]; !ok {
		return ErrNotFound
	}
	delete(m.objects, location)
	return nil
}

func (m *MemoryStore) Resolve(location string) (string, error) {
	if !strings.HasPrefix(location, memoryScheme) {
		return "", ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[location]; !ok {
		return "", ErrNotFound
	}
	return "/media/" + strings.TrimPrefix(location, memoryScheme), nil
}

// Get returns the stored bytes and MIME type.
func (m *MemoryStore) Get(location string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[location]
	return o.data, o.mimeType, ok
}

// Lookup finds an object by the name Resolve put in its URL.
func (m *MemoryStore) Lookup(name string) ([]byte, string, bool) {
	return m.Get(memoryScheme + name)
}

// Len is the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Store = (*MemoryStore)(nil)
