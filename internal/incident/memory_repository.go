package incident

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/safewalk/safewalk/internal/geo"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

// NewInMemoryRepository creates a new in-memory report repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		reports: make(map[string]*Report),
	}
}

// Create stores a new report.
func (r *InMemoryRepository) Create(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *report
	r.reports[report.ID] = &cpy
	return nil
}

// Get retrieves a report by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}

	cpy := *report
	return &cpy, nil
}

// FindRecent returns reports inside box created at or after since.
func (r *InMemoryRepository) FindRecent(_ context.Context, since time.Time, box geo.BoundingBox) ([]Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Report
	for _, report := range r.reports {
		if report.CreatedAt.Before(since) || !box.Contains(report.Location) {
			continue
		}
		out = append(out, *report)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ Repository = (*InMemoryRepository)(nil)
