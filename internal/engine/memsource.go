package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pronym/relay/internal/store"
)

// MemSource is an in-memory RecordSource, safe for concurrent use. It backs
// tests and models that do not need durable storage. Identifiers are
// assigned sequentially from 1.
type MemSource struct {
	mu      sync.RWMutex
	records map[int64]Record
	nextID  int64
}

// NewMemSource creates an empty in-memory source.
func NewMemSource() *MemSource {
	return &MemSource{records: make(map[int64]Record)}
}

// Get implements RecordSource.
func (m *MemSource) Get(ctx context.Context, id int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %d: %w", id, store.ErrNotFound)
	}
	return rec, nil
}

// List implements RecordSource. Records are returned in identifier order.
func (m *MemSource) List(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PrimaryKey() < out[j].PrimaryKey()
	})
	return out, nil
}

// Insert implements RecordSource.
func (m *MemSource) Insert(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.PrimaryKey() == 0 {
		m.nextID++
		rec.SetPrimaryKey(m.nextID)
	} else if rec.PrimaryKey() > m.nextID {
		m.nextID = rec.PrimaryKey()
	}
	m.records[rec.PrimaryKey()] = rec
	return nil
}

// Update implements RecordSource.
func (m *MemSource) Update(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.PrimaryKey()]; !ok {
		return fmt.Errorf("record %d: %w", rec.PrimaryKey(), store.ErrNotFound)
	}
	m.records[rec.PrimaryKey()] = rec
	return nil
}

// Delete implements RecordSource.
func (m *MemSource) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("record %d: %w", id, store.ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

// ReplaceSet implements RecordSource. The stored parent's slice field is set
// to exactly the given members.
func (m *MemSource) ReplaceSet(ctx context.Context, parent Record, goField string, members []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[parent.PrimaryKey()]
	if !ok {
		return fmt.Errorf("record %d: %w", parent.PrimaryKey(), store.ErrNotFound)
	}
	return replaceSliceField(stored, goField, members)
}
