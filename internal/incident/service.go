package incident

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/geo"
)

// Validation constants.
const (
	MaxDescriptionLength = 1000
	MaxURLLength         = 2048
)

// CreateInput is a new report as submitted by a user.
type CreateInput struct {
	Type        Type
	Description string
	Location    geo.Coordinate
	PhotoURL    string
	AudioURL    string
}

// ServiceConfig holds configuration for the report service.
type ServiceConfig struct {
	Repository Repository

	// Window mirrors new reports for fast recent lookups (optional).
	Window HotWindow

	Logger zerolog.Logger
}

// Service provides incident report operations.
type Service struct {
	repo   Repository
	window HotWindow
	logger zerolog.Logger
	now    func() time.Time

	// missedAt is the UnixNano creation time of the newest report the
	// window failed to receive. Queries reaching back to it skip the window.
	missedAt atomic.Int64
}

// NewService creates a new report service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:   cfg.Repository,
		window: cfg.Window,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// Create validates and stores a report. userID may be empty for anonymous reports.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*Report, error) {
	if input.Type == "" {
		input.Type = TypeIncident
	}
	if fieldErrors := validateCreateInput(&input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	report := &Report{
		ID:          "rpt_" + uuid.New().String()[:22],
		UserID:      userID,
		Type:        input.Type,
		Description: input.Description,
		Location:    input.Location,
		PhotoURL:    input.PhotoURL,
		AudioURL:    input.AudioURL,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, err
	}

	if s.window != nil {
		if err := s.window.Add(ctx, report); err != nil {
			s.markMissed(report.CreatedAt)
			s.logger.Warn().
				Err(err).
				Str("report_id", report.ID).
				Msg("failed to mirror report into hot window")
		}
	}

	s.logger.Info().
		Str("report_id", report.ID).
		Str("type", string(report.Type)).
		Float64("lat", report.Location.Lat).
		Float64("lon", report.Location.Lon).
		Msg("incident report created")

	return report, nil
}

// Get retrieves a report by ID.
func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	return s.repo.Get(ctx, id)
}

// ListNear returns reports within radiusDeg (flat degree distance) of
// center created at or after since, newest first.
func (s *Service) ListNear(ctx context.Context, center geo.Coordinate, radiusDeg float64, since time.Time) ([]Report, error) {
	reports, err := s.RecentReports(ctx, since, geo.Around(center, radiusDeg))
	if err != nil {
		return nil, err
	}

	out := reports[:0]
	for _, r := range reports {
		if geo.FlatDistance(center, r.Location) <= radiusDeg {
			out = append(out, r)
		}
	}
	return out, nil
}

// RecentReports returns reports in box created at or after since. The hot
// window answers when it covers since and has not missed a report created
// since then; otherwise, or when it fails, the repository does.
func (s *Service) RecentReports(ctx context.Context, since time.Time, box geo.BoundingBox) ([]Report, error) {
	if s.window != nil && s.window.Covers(since) && !s.missedSince(since) {
		reports, err := s.window.FindRecent(ctx, since, box)
		if err == nil {
			return reports, nil
		}
		s.logger.Warn().Err(err).Msg("hot window lookup failed, falling back to repository")
	}
	return s.repo.FindRecent(ctx, since, box)
}

func (s *Service) markMissed(createdAt time.Time) {
	at := createdAt.UnixNano()
	for {
		prev := s.missedAt.Load()
		if at <= prev || s.missedAt.CompareAndSwap(prev, at) {
			return
		}
	}
}

func (s *Service) missedSince(since time.Time) bool {
	at := s.missedAt.Load()
	return at != 0 && !since.After(time.Unix(0, at))
}

func validateCreateInput(input *CreateInput) []models.FieldError {
	var errs []models.FieldError

	if !input.Type.Valid() {
		errs = append(errs, models.FieldError{Field: "type", Message: "is not a known report type"})
	}

	if utf8.RuneCountInString(input.Description) > MaxDescriptionLength {
		errs = append(errs, models.FieldError{Field: "description", Message: "must be at most 1000 characters"})
	}

	if input.Location.Lat < -90 || input.Location.Lat > 90 {
		errs = append(errs, models.FieldError{Field: "location.lat", Message: "must be between -90 and 90"})
	}
	if input.Location.Lon < -180 || input.Location.Lon > 180 {
		errs = append(errs, models.FieldError{Field: "location.lon", Message: "must be between -180 and 180"})
	}

	if input.PhotoURL != "" && !validMediaURL(input.PhotoURL) {
		errs = append(errs, models.FieldError{Field: "photoUrl", Message: "must be an http or https URL"})
	}
	if input.AudioURL != "" && !validMediaURL(input.AudioURL) {
		errs = append(errs, models.FieldError{Field: "audioUrl", Message: "must be an http or https URL"})
	}

	return errs
}

func validMediaURL(raw string) bool {
	if len(raw) > MaxURLLength {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidationError contains field-level validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
