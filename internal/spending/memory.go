package spending

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"savemate/internal/core"
)

// MemoryStore is an in-memory Store used for local runs and tests.
// It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	records []core.SpendingRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add stores a record, assigning an id when none is set.
func (m *MemoryStore) Add(r core.SpendingRecord) core.SpendingRecord {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return r
}

func (m *MemoryStore) ListSpending(ctx context.Context, userID string, q Query) ([]core.SpendingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.SpendingRecord
	for _, r := range m.records {
		if r.UserID != userID {
			continue
		}
		if !q.From.IsZero() && r.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !r.Date.Before(q.To) {
			continue
		}
		if q.Category != "" && r.Category != q.Category {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
