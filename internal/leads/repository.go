package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository records submission attempts for later review. It is an audit
// trail only; Airtable stays the system of record.
type Repository interface {
	Record(ctx context.Context, sub *Submission) error
	ListRecent(ctx context.Context, limit int) ([]*Submission, error)
}

// InMemoryRepository keeps submissions in process memory.
type InMemoryRepository struct {
	mu          sync.RWMutex
	submissions []*Submission
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Record stores a copy of sub, filling ID and CreatedAt when empty.
func (r *InMemoryRepository) Record(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return nil
	}
	cp := *sub
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	sub.ID, sub.CreatedAt = cp.ID, cp.CreatedAt

	r.mu.Lock()
	r.submissions = append(r.submissions, &cp)
	r.mu.Unlock()
	return nil
}

// ListRecent returns up to limit submissions, newest first.
func (r *InMemoryRepository) ListRecent(ctx context.Context, limit int) ([]*Submission, error) {
	r.mu.RLock()
	out := make([]*Submission, 0, len(r.submissions))
	for _, s := range r.submissions {
		cp := *s
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
