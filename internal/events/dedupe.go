package events

import (
	"context"
	"sync"
)

// Deduper remembers which deliveries were already handled.
type Deduper interface {
	// Mark records key and reports whether it was already present.
	Mark(ctx context.Context, key string) (seen bool, err error)
	// Forget removes key so that a failed delivery can be retried.
	Forget(ctx context.Context, key string) error
}

// Idempotent wraps h so that each event id is handled at most once per subscriber name.
func Idempotent(name string, d Deduper, h Handler) Handler {
	return func(ctx context.Context, e Event) error {
		key := name + ":" + e.ID
		seen, err := d.Mark(ctx, key)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		if err := h(ctx, e); err != nil {
			_ = d.Forget(ctx, key)
			return err
		}
		return nil
	}
}

// MemoryDeduper keeps the most recent keys in a bounded FIFO set.
type MemoryDeduper struct {
	mu    sync.Mutex
	limit int
	set   map[string]struct{}
	order []string
}

// NewMemoryDeduper creates a MemoryDeduper remembering up to limit keys.
func NewMemoryDeduper(limit int) *MemoryDeduper {
	if limit <= 0 {
		limit = 10000
	}
	return &MemoryDeduper{limit: limit, set: make(map[string]struct{}, limit)}
}

// Mark implements Deduper.
func (m *MemoryDeduper) Mark(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.set[key]; ok {
		return true, nil
	}
	if len(m.order) >= m.limit {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.set, oldest)
	}
	m.set[key] = struct{}{}
	m.order = append(m.order, key)
	return false, nil
}

// Forget implements Deduper.
func (m *MemoryDeduper) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.set[key]; !ok {
		return nil
	}
	delete(m.set, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
