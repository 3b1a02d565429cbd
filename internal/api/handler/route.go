package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/api/response"
	"github.com/safewalk/safewalk/internal/planner"
	"github.com/safewalk/safewalk/internal/routing"
	"github.com/safewalk/safewalk/internal/safety"
)

// safestRouteRequest is the body of POST /v1/routes:safest.
type safestRouteRequest struct {
	Origin      *models.Point   `json:"origin" validate:"required"`
	Destination *models.Point   `json:"destination" validate:"required"`
	Alpha       *float64        `json:"alpha,omitempty"`
	Filters     *safety.Filters `json:"filters,omitempty"`
}

// RouteHandler handles routing endpoints.
type RouteHandler struct {
	planner *planner.Planner
	logger  zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(p *planner.Planner, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{planner: p, logger: logger}
}

// SafestRoute handles POST /v1/routes:safest - score alternatives and
// return the shortest, safest and balanced routes.
func (h *RouteHandler) SafestRoute(w http.ResponseWriter, r *http.Request) {
	var input safestRouteRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	plan, err := h.planner.Plan(r.Context(), planner.Request{
		Origin:      input.Origin.Coordinate(),
		Destination: input.Destination.Coordinate(),
		Alpha:       input.Alpha,
		Filters:     input.Filters,
	})
	if err != nil {
		h.writePlanError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	response.JSON(w, r, http.StatusOK, newSafestRouteResponse(plan))
}

func (h *RouteHandler) writePlanError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, planner.ErrInvalidInput):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, routing.ErrProviderUnavailable), errors.Is(err, routing.ErrRateLimitExceeded):
		h.logger.Warn().Err(err).Msg("routing provider unavailable")
		response.ServiceUnavailable(w, r, "routing provider unavailable")
	case errors.Is(err, planner.ErrNoRouteFound):
		response.NotFound(w, r, "no route found between the given points")
	case errors.Is(err, planner.ErrNoProcessableRoutes):
		h.logger.Error().Err(err).Msg("no processable routes")
		response.InternalError(w, r, "no processable routes")
	case r.Context().Err() != nil:
		response.ServiceUnavailable(w, r, "request cancelled")
	default:
		h.logger.Error().Err(err).Msg("route planning failed")
		response.InternalError(w, r, "internal server error")
	}
}

func newSafestRouteResponse(plan *planner.Plan) models.SafestRouteResponse {
	sel := plan.Selection
	balanced := newRouteView(sel.Balanced, models.RouteNameBalanced, models.RouteTypeBalanced)
	return models.SafestRouteResponse{
		Success: true,
		Routes: models.RouteSet{
			RouteA: newRouteView(sel.Shortest, models.RouteNameShortest, models.RouteTypeShortest),
			RouteB: newRouteView(sel.Safest, models.RouteNameSafest, models.RouteTypeSafest),
			RouteC: balanced,
		},
		Route: balanced,
		Summary: models.RouteSummary{
			Shortest: newSummaryItem(sel.Shortest),
			Safest:   newSummaryItem(sel.Safest),
			Balanced: newSummaryItem(sel.Balanced),
		},
		Alpha:       plan.Alpha,
		Hour:        plan.Hour,
		GeneratedAt: models.Timestamp(plan.GeneratedAt),
	}
}

func newRouteView(route *planner.ProcessedRoute, name, typ string) models.RouteView {
	view := models.RouteView{
		Name:           name,
		Type:           typ,
		Polyline:       [][2]float64{},
		UnsafeSegments: []models.UnsafeSegmentView{},
		Segments:       []models.SegmentView{},
	}
	if route == nil {
		return view
	}

	view.RouteIndex = route.Index
	view.Distance = route.DistanceMeters
	view.DistanceKm = formatKm(route.DistanceMeters)
	view.Duration = route.TravelTimeSeconds
	view.ETA = int(math.Round(route.TravelTimeSeconds / 60))
	view.ISC = route.AvgISC
	view.SafetyScore = formatSafetyScore(route.AvgISC)
	view.OptimalCost = route.Cost
	view.ExcludedSegments = route.ExcludedSegments

	view.Polyline = make([][2]float64, len(route.Points))
	for i, p := range route.Points {
		view.Polyline[i] = [2]float64{p.Lat, p.Lon}
	}
	for _, u := range route.UnsafeSegments {
		view.UnsafeSegments = append(view.UnsafeSegments, models.UnsafeSegmentView{
			Segment:  u.SegmentIndex,
			ISC:      u.ISC,
			Location: models.PointFrom(u.Location),
		})
	}
	for _, s := range route.Segments {
		view.Segments = append(view.Segments, models.SegmentView{
			Index:    s.Index,
			Start:    models.PointFrom(s.Start),
			End:      models.PointFrom(s.End),
			Center:   models.PointFrom(s.Center),
			ISC:      s.ISC,
			BaseISC:  s.BaseISC,
			Excluded: s.Excluded,
			Breakdown: models.FactorBreakdown{
				Lighting: s.Breakdown.Lighting,
				Weather:  s.Breakdown.Weather,
				Crowd:    s.Breakdown.Crowd,
				Reports:  s.Breakdown.Reports,
				Traffic:  s.Breakdown.Traffic,
			},
		})
	}
	return view
}

func newSummaryItem(route *planner.ProcessedRoute) models.RouteSummaryItem {
	if route == nil {
		return models.RouteSummaryItem{}
	}
	return models.RouteSummaryItem{
		DistanceKm:  formatKm(route.DistanceMeters),
		SafetyScore: formatSafetyScore(route.AvgISC),
	}
}

func formatKm(meters float64) string {
	return fmt.Sprintf("%.2f", meters/1000)
}

func formatSafetyScore(isc float64) string {
	return fmt.Sprintf("%.1f", isc*100)
}
