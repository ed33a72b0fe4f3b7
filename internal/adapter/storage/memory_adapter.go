package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

// MemoryAdapter is an in-process mirror for development and tests.
// Like the SQL backends it appends duplicates and returns the earliest row.
type MemoryAdapter struct {
	mu    sync.RWMutex
	rows  []domain.ProductRecord
	clock Clock
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{clock: time.Now}
}

func (m *MemoryAdapter) Store(ctx context.Context, record *domain.ProductRecord) error {
	record.AddedAt = m.clock().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *record)
	return nil
}

func (m *MemoryAdapter) Fetch(ctx context.Context, identifier uint64) (*domain.ProductRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.rows {
		if r.Identifier == identifier {
			rec := r
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Count returns the number of rows stored for identifier.
func (m *MemoryAdapter) Count(identifier uint64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.rows {
		if r.Identifier == identifier {
			n++
		}
	}
	return n
}
