// Package mock provides an in-memory implementation of the identity store for testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/faceauth/internal/identity"
)

// MockStore keeps records in insertion order and records every Load call.
type MockStore struct {
	mu          sync.Mutex
	initialized bool
	refs        []identity.Ref
	embeddings  map[string][]float32
	loaded      []string

	// Error injection
	InitError   error
	ListError   error
	AppendError error
	LoadErrors  map[string]error // keyed by Ref.Filename
}

// NewMockStore creates an empty store. Set initialized to false to simulate
// a store directory that does not exist yet.
func NewMockStore(initialized bool) *MockStore {
	return &MockStore{
		initialized: initialized,
		embeddings:  make(map[string][]float32),
		LoadErrors:  make(map[string]error),
	}
}

// Add inserts a record with a deterministic id derived from its position.
func (m *MockStore) Add(displayName string, embedding []float32) identity.Ref {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id identity.ID
	n := len(m.refs) + 1
	id[14], id[15] = byte(n>>8), byte(n)
	return m.addLocked(id, displayName, embedding)
}

func (m *MockStore) addLocked(id identity.ID, displayName string, embedding []float32) identity.Ref {
	ref := identity.Ref{
		ID:          id,
		DisplayName: displayName,
		Filename:    fmt.Sprintf("%s_%s", id, displayName),
	}
	m.initialized = true
	m.refs = append(m.refs, ref)
	m.embeddings[ref.Filename] = embedding
	return ref
}

// Loaded returns the filenames passed to Load, in call order.
func (m *MockStore) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loaded...)
}

// EnsureInitialized marks the store as existing.
func (m *MockStore) EnsureInitialized(ctx context.Context) (bool, error) {
	if m.InitError != nil {
		return false, m.InitError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	created := !m.initialized
	m.initialized = true
	return created, nil
}

// List returns the records in insertion order.
func (m *MockStore) List(ctx context.Context) ([]identity.Ref, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]identity.Ref(nil), m.refs...), nil
}

// Load returns the stored embedding or the injected error for ref. A stored
// embedding whose length differs from a positive dim is a corrupt record.
func (m *MockStore) Load(ctx context.Context, ref identity.Ref, dim int) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, ref.Filename)

	if err := m.LoadErrors[ref.Filename]; err != nil {
		return nil, err
	}
	emb, ok := m.embeddings[ref.Filename]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref.Filename, identity.ErrNotFound)
	}
	if dim > 0 && len(emb) != dim {
		return nil, fmt.Errorf("%s: %w: dimension %d, want %d", ref.Filename, identity.ErrCorruptRecord, len(emb), dim)
	}
	return emb, nil
}

// Append stores embedding under a fresh random id.
func (m *MockStore) Append(ctx context.Context, embedding []float32, displayName string) (identity.Ref, error) {
	if m.AppendError != nil {
		return identity.Ref{}, m.AppendError
	}
	id, err := identity.NewID()
	if err != nil {
		return identity.Ref{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(id, displayName, embedding), nil
}
