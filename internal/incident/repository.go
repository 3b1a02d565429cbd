package incident

import (
	"context"
	"time"

	"github.com/safewalk/safewalk/internal/geo"
)

// Repository defines the interface for report persistence.
type Repository interface {
	// Create stores a new report.
	Create(ctx context.Context, report *Report) error

	// Get retrieves a report by ID.
	Get(ctx context.Context, id string) (*Report, error)

	// FindRecent returns reports created at or after since whose location
	// falls inside box, newest first.
	FindRecent(ctx context.Context, since time.Time, box geo.BoundingBox) ([]Report, error)
}

// HotWindow is a short-retention store of recent reports kept next to the
// durable repository so the safety calculator avoids hitting Postgres on
// every sampled segment.
type HotWindow interface {
	Add(ctx context.Context, report *Report) error
	FindRecent(ctx context.Context, since time.Time, box geo.BoundingBox) ([]Report, error)
	// Covers reports whether the window still holds everything since t.
	Covers(t time.Time) bool
}
