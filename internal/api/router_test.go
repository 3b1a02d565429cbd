package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safewalk/safewalk/internal/api"
	"github.com/safewalk/safewalk/internal/api/handler"
	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/auth"
	"github.com/safewalk/safewalk/internal/emergency"
	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/incident"
	"github.com/safewalk/safewalk/internal/planner"
	"github.com/safewalk/safewalk/internal/provider/resilience"
	"github.com/safewalk/safewalk/internal/routing"
	"github.com/safewalk/safewalk/internal/safety"
)

const testSigningKey = "test-signing-key-for-router-tests"

type fakeRoutes struct {
	routes []routing.Route
	err    error
}

func (f *fakeRoutes) Alternatives(_ context.Context, _, _ geo.Coordinate, _ int) ([]routing.Route, error) {
	return f.routes, f.err
}

type constScorer float64

func (s constScorer) Calculate(_ context.Context, _ geo.Coordinate, _ int) (safety.Score, error) {
	return safety.Score{ISC: float64(s), Breakdown: safety.DefaultBreakdown}, nil
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	router   http.Handler
	verifier *auth.Verifier
	routes   *fakeRoutes
}

// walk returns a straight route of n points heading south from the origin.
func walk(n int, meters float64) routing.Route {
	points := make([]geo.Coordinate, n)
	for i := range points {
		points[i] = geo.Coordinate{Lat: 52.3702 - float64(i)*0.0005, Lon: 4.8952}
	}
	return routing.Route{
		Legs:    []routing.Leg{{Points: points}},
		Summary: &routing.Summary{LengthInMeters: meters, TravelTimeInSeconds: meters / 1.4},
	}
}

func newTestEnv(t *testing.T, readiness map[string]handler.Pinger) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	routes := &fakeRoutes{routes: []routing.Route{walk(10, 1200), walk(12, 1500), walk(14, 2100)}}
	p := planner.New(planner.Config{
		Routes:    routes,
		Processor: planner.NewProcessor(planner.ProcessorConfig{Scorer: constScorer(0.8), Logger: logger}),
		Logger:    logger,
	})

	verifier := auth.NewVerifier(auth.Config{SigningKey: testSigningKey})
	registry := resilience.NewRegistry()
	registry.Register("tomtom-routing", resilience.NewClient(resilience.DefaultClientConfig("tomtom-routing")))

	router := api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "now",
		Logger:    logger,
		Verifier:  verifier,
		Planner:   p,
		Reports: incident.NewService(incident.ServiceConfig{
			Repository: incident.NewInMemoryRepository(),
			Logger:     logger,
		}),
		Emergency: emergency.NewService(emergency.ServiceConfig{
			Repository: emergency.NewInMemoryRepository(),
			Logger:     logger,
		}),
		Registry:  registry,
		Readiness: readiness,
	})

	return &testEnv{router: router, verifier: verifier, routes: routes}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.verifier.Sign(userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.10:40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var routeBody = map[string]any{
	"origin":      map[string]float64{"lat": 52.3702, "lon": 4.8952},
	"destination": map[string]float64{"lat": 52.3600, "lon": 4.8852},
}

func TestOps_Health(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/ops/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestOps_Ready(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := newTestEnv(t, map[string]handler.Pinger{"postgres": ok}).do(t, http.MethodGet, "/v1/ops/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = newTestEnv(t, map[string]handler.Pinger{"postgres": ok, "redis": down}).do(t, http.MethodGet, "/v1/ops/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusFail, health.Status)
	assert.Equal(t, string(models.HealthStatusFail), health.Details["redis"])
}

func TestOps_StatusRequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/ops/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/ops/status", env.token(t, "usr_ops"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[models.SystemStatus](t, rec)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "tomtom-routing", status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].Circuit)
	assert.Equal(t, models.HealthStatusOK, status.Status)
}

func TestSafestRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/routes:safest", "", routeBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[models.SafestRouteResponse](t, rec)
	assert.True(t, resp.Success)

	assert.Equal(t, models.RouteNameShortest, resp.Routes.RouteA.Name)
	assert.Equal(t, models.RouteNameSafest, resp.Routes.RouteB.Name)
	assert.Equal(t, models.RouteNameBalanced, resp.Routes.RouteC.Name)
	assert.Equal(t, resp.Routes.RouteC, resp.Route)

	shortest := resp.Routes.RouteA
	assert.Equal(t, 0, shortest.RouteIndex)
	assert.Equal(t, "1.20", shortest.DistanceKm)
	assert.Equal(t, "80.0", shortest.SafetyScore)
	assert.Equal(t, 14, shortest.ETA)
	assert.Len(t, shortest.Polyline, 10)
	assert.Len(t, shortest.Segments, 9)
	assert.Empty(t, shortest.UnsafeSegments)

	indices := map[int]bool{
		resp.Routes.RouteA.RouteIndex: true,
		resp.Routes.RouteB.RouteIndex: true,
		resp.Routes.RouteC.RouteIndex: true,
	}
	assert.Len(t, indices, 3)
	assert.Equal(t, "1.20", resp.Summary.Shortest.DistanceKm)
	assert.Equal(t, planner.DefaultAlpha, resp.Alpha)
}

func TestSafestRoute_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing origin", map[string]any{"destination": map[string]float64{"lat": 1, "lon": 1}}, "origin"},
		{"latitude out of range", map[string]any{
			"origin":      map[string]float64{"lat": 91, "lon": 4.9},
			"destination": map[string]float64{"lat": 52.36, "lon": 4.88},
		}, "origin.lat"},
		{"threshold out of range", map[string]any{
			"origin":      map[string]float64{"lat": 52.37, "lon": 4.9},
			"destination": map[string]float64{"lat": 52.36, "lon": 4.88},
			"filters":     map[string]any{"min_lighting_score": 1.5},
		}, "filters.min_lighting_score"},
		{"unknown time of travel", map[string]any{
			"origin":      map[string]float64{"lat": 52.37, "lon": 4.9},
			"destination": map[string]float64{"lat": 52.36, "lon": 4.88},
			"filters":     map[string]any{"time_of_travel": "dusk"},
		}, "filters.time_of_travel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/routes:safest", "", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			problem := decode[models.Problem](t, rec)
			require.NotEmpty(t, problem.Errors)
			assert.Equal(t, tt.field, problem.Errors[0].Field)
		})
	}
}

func TestSafestRoute_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		routes []routing.Route
		err    error
		status int
		detail string
	}{
		{"provider unavailable", nil, &routing.Error{Provider: "tomtom", Message: "circuit open", Err: routing.ErrProviderUnavailable}, http.StatusServiceUnavailable, "routing provider unavailable"},
		{"no alternatives", []routing.Route{}, nil, http.StatusNotFound, "no route found between the given points"},
		{"provider found nothing", nil, routing.ErrNoRouteFound, http.StatusNotFound, "no route found between the given points"},
		{"all routes unusable", []routing.Route{{}, {EncodedPolyline: ""}}, nil, http.StatusInternalServerError, "no processable routes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.routes.routes = tt.routes
			env.routes.err = tt.err

			rec := env.do(t, http.MethodPost, "/v1/routes:safest", "", routeBody)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.detail, decode[models.Problem](t, rec).Detail)
		})
	}
}

func TestRequireJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:safest", bytes.NewBufferString("origin=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestReports_CreateAndList(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/reports", "", map[string]any{
		"type":        "broken_lighting",
		"description": "street lamps out along the canal",
		"location":    map[string]float64{"lat": 52.3702, "lon": 4.8952},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Report](t, rec)
	assert.Contains(t, created.ID, "rpt_")
	assert.Equal(t, "/v1/reports/"+created.ID, rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/v1/reports?lat=52.3702&lon=4.8952&radius=0.01&since=1h", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[models.ReportList](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)

	rec = env.do(t, http.MethodGet, "/v1/reports?lat=48.8566&lon=2.3522", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.ReportList](t, rec).Items)

	rec = env.do(t, http.MethodGet, "/v1/reports/"+created.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/reports/rpt_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/reports", "", map[string]any{
		"type":     "alien_sighting",
		"location": map[string]float64{"lat": 52.37, "lon": 4.89},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "type", decode[models.Problem](t, rec).Errors[0].Field)

	rec = env.do(t, http.MethodPost, "/v1/reports", "not-a-token", map[string]any{
		"location": map[string]float64{"lat": 52.37, "lon": 4.89},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/reports?lat=abc&lon=4.89", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/reports?lat=52.37&lon=4.89&radius=5", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContacts(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t, "usr_walker")

	rec := env.do(t, http.MethodGet, "/v1/me/contacts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/me/contacts", token, map[string]any{
		"contacts": []map[string]string{{"type": "email", "value": " friend@example.com "}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/me/contacts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.ContactList](t, rec)
	require.Len(t, list.Contacts, 1)
	assert.Equal(t, "friend@example.com", list.Contacts[0].Value)

	rec = env.do(t, http.MethodGet, "/v1/me/contacts", env.token(t, "usr_other"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.ContactList](t, rec).Contacts)

	rec = env.do(t, http.MethodPut, "/v1/me/contacts", token, map[string]any{
		"contacts": []map[string]string{{"type": "pigeon", "value": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPanic(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t, "usr_walker")

	rec := env.do(t, http.MethodPost, "/v1/panic", "", map[string]any{
		"location": map[string]float64{"lat": 52.37, "lon": 4.89},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/me/contacts", token, map[string]any{
		"contacts": []map[string]string{{"type": "email", "value": "friend@example.com"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/panic", token, map[string]any{
		"location": map[string]float64{"lat": 52.37, "lon": 4.89},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	alert := decode[models.PanicAlert](t, rec)
	assert.Equal(t, emergency.DefaultMessage, alert.Message)
	require.Len(t, alert.Contacts, 1)
	assert.Equal(t, "/v1/panic/"+alert.ID, rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/v1/panic/"+alert.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/panic/"+alert.ID, env.token(t, "usr_other"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/panic", token, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "location", decode[models.Problem](t, rec).Errors[0].Field)
}
