package shift

import (
	"context"
	"sort"
	"sync"
)

// Store persists shift records keyed by id. Writes are last-writer-wins on the id,
// except that a CLOSED record is never rewritten.
type Store interface {
	List(ctx context.Context) ([]Shift, error)
	Get(ctx context.Context, id string) (Shift, error)
	Put(ctx context.Context, s Shift) error
	// CurrentOpen returns the open shift, or nil when the till is closed.
	CurrentOpen(ctx context.Context) (*Shift, error)
}

// MemoryStore keeps shifts in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	shifts map[string]Shift
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shifts: make(map[string]Shift)}
}

// List returns every shift, newest first.
func (m *MemoryStore) List(_ context.Context) ([]Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Shift, 0, len(m.shifts))
	for _, s := range m.shifts {
		out = append(out, s)
	}
	sortNewestFirst(out)
	return out, nil
}

// Get loads a shift by id.
func (m *MemoryStore) Get(_ context.Context, id string) (Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shifts[id]
	if !ok {
		return Shift{}, ErrShiftNotFound
	}
	return s, nil
}

// Put stores s.
func (m *MemoryStore) Put(_ context.Context, s Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.shifts[s.ID]; ok && !existing.IsOpen() {
		return ErrAlreadyClosed
	}
	if s.IsOpen() {
		for id, other := range m.shifts {
			if id != s.ID && other.IsOpen() {
				return ErrShiftAlreadyOpen
			}
		}
	}
	m.shifts[s.ID] = s
	return nil
}

// CurrentOpen returns the open shift if any.
func (m *MemoryStore) CurrentOpen(_ context.Context) (*Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shifts {
		if s.IsOpen() {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func sortNewestFirst(shifts []Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		return shifts[i].OpenedAt.After(shifts[j].OpenedAt)
	})
}
