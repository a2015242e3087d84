package backend

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Adapter. It is the default backend for local
// runs and the reference implementation used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Collection][]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Collection][]Record)}
}

// NewMemoryStoreFromSnapshot creates a store seeded with the given contents.
func NewMemoryStoreFromSnapshot(s Snapshot) *MemoryStore {
	m := NewMemoryStore()
	for _, c := range AllCollections {
		m.records[c] = s.Records(c)
	}
	return m
}

func (m *MemoryStore) ReadAll(ctx context.Context, c Collection) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := ParseCollection(string(c)); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record{}, m.records[c]...), nil
}

func (m *MemoryStore) ReplaceAll(ctx context.Context, c Collection, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := ParseCollection(string(c)); err != nil {
		return err
	}
	if err := CheckRecords(c, records); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[c] = append([]Record{}, records...)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, c Collection, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records[c] {
		if r.Key() == key {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", c, key, ErrNotFound)
}

func (m *MemoryStore) Put(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("cannot put nil record")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c := r.Collection()
	for i, existing := range m.records[c] {
		if existing.Key() == r.Key() {
			m.records[c][i] = r
			return nil
		}
	}
	m.records[c] = append(m.records[c], r)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, c Collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.records[c] {
		if existing.Key() == key {
			m.records[c] = append(m.records[c][:i:i], m.records[c][i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s/%s: %w", c, key, ErrNotFound)
}

// Snapshot returns a typed copy of the current contents.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Snapshot
	for _, c := range AllCollections {
		// records are type checked on the way in
		_ = s.Set(c, m.records[c])
	}
	return s
}
