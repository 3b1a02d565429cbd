package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/middleware"
	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/api/response"
	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/incident"
)

// Report listing defaults and bounds. Radius is in degrees.
const (
	defaultReportRadius = 0.01
	maxReportRadius     = 0.5
	defaultReportSince  = 24 * time.Hour
	maxReportSince      = 7 * 24 * time.Hour
)

// ReportHandler handles incident report endpoints.
type ReportHandler struct {
	reports *incident.Service
	logger  zerolog.Logger
	now     func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports *incident.Service, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger, now: time.Now}
}

// CreateReport handles POST /v1/reports. Authentication is optional; the
// report is attributed to the caller when a token is present.
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var input models.ReportCreateRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	report, err := h.reports.Create(r.Context(), middleware.GetUserID(r.Context()), incident.CreateInput{
		Type:        incident.Type(input.Type),
		Description: input.Description,
		Location:    input.Location.Coordinate(),
		PhotoURL:    input.PhotoURL,
		AudioURL:    input.AudioURL,
	})
	if err != nil {
		var ve *incident.ValidationError
		if errors.As(err, &ve) {
			response.BadRequest(w, r, "validation failed", ve.Errors)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create report")
		response.InternalError(w, r, "internal server error")
		return
	}

	response.Created(w, r, "/v1/reports/"+report.ID, newReport(report))
}

// GetReport handles GET /v1/reports/{reportId}.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "reportId"))
	if err != nil {
		if errors.Is(err, incident.ErrReportNotFound) {
			response.NotFound(w, r, "report not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load report")
		response.InternalError(w, r, "internal server error")
		return
	}
	response.JSON(w, r, http.StatusOK, newReport(report))
}

// ListReports handles GET /v1/reports?lat=&lon=&radius=&since= - reports
// near a point. since is RFC 3339 or a Go duration back from now.
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	center, radius, since, fieldErrors := h.parseListQuery(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	reports, err := h.reports.ListNear(r.Context(), center, radius, since)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list reports")
		response.InternalError(w, r, "internal server error")
		return
	}

	items := make([]models.Report, 0, len(reports))
	for i := range reports {
		items = append(items, newReport(&reports[i]))
	}
	response.JSON(w, r, http.StatusOK, models.ReportList{
		Items:  items,
		Center: models.PointFrom(center),
		Radius: radius,
		Since:  models.Timestamp(since),
	})
}

func (h *ReportHandler) parseListQuery(r *http.Request) (geo.Coordinate, float64, time.Time, []models.FieldError) {
	q := r.URL.Query()
	var errs []models.FieldError

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "lat", Message: "must be a number", Code: "required"})
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "lon", Message: "must be a number", Code: "required"})
	}
	center := geo.Coordinate{Lat: lat, Lon: lon}
	if len(errs) == 0 {
		if err := center.Validate(); err != nil {
			errs = append(errs, models.FieldError{Field: "lat,lon", Message: err.Error()})
		}
	}

	radius := defaultReportRadius
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > maxReportRadius {
			errs = append(errs, models.FieldError{Field: "radius", Message: "must be a number in (0, 0.5]"})
		} else {
			radius = v
		}
	}

	now := h.now()
	since := now.Add(-defaultReportSince)
	if raw := q.Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		} else if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			since = now.Add(-d)
		} else {
			errs = append(errs, models.FieldError{Field: "since", Message: "must be an RFC 3339 time or a positive duration"})
		}
	}
	if oldest := now.Add(-maxReportSince); since.Before(oldest) {
		since = oldest
	}

	return center, radius, since, errs
}

func newReport(r *incident.Report) models.Report {
	return models.Report{
		ID:          r.ID,
		Type:        string(r.Type),
		Description: r.Description,
		Location:    models.PointFrom(r.Location),
		PhotoURL:    r.PhotoURL,
		AudioURL:    r.AudioURL,
		CreatedAt:   models.Timestamp(r.CreatedAt),
	}
}
