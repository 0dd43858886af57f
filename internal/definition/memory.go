package definition

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps definitions in process memory. It backs local runs and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Definition
	now   func() time.Time
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]Definition), now: time.Now}
}

func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID) (Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.items[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return clone(def), nil
}

// List orders by creation time, newest first.
func (m *MemoryRepository) List(_ context.Context, limit, offset int) ([]Definition, int, error) {
	m.mu.RLock()
	all := make([]Definition, 0, len(m.items))
	for _, def := range m.items {
		all = append(all, clone(def))
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b Definition) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	total := len(all)
	if offset >= total {
		return []Definition{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (m *MemoryRepository) Create(_ context.Context, def Definition) (Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	now := m.now().UTC()
	def.CreatedAt, def.UpdatedAt = now, now
	m.items[def.ID] = clone(def)
	return def, nil
}

func (m *MemoryRepository) Update(_ context.Context, def Definition) (Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[def.ID]
	if !ok {
		return Definition{}, ErrNotFound
	}
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = m.now().UTC()
	m.items[def.ID] = clone(def)
	return def, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func clone(def Definition) Definition {
	def.Config = append([]byte(nil), def.Config...)
	return def
}
