package tomtom

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/routing"
)

var testRequest = routing.AlternativesRequest{
	Origin:          geo.Coordinate{Lat: 40.7128, Lon: -74.0060},
	Destination:     geo.Coordinate{Lat: 40.7150, Lon: -74.0039},
	MaxAlternatives: 3,
}

func newTestClient(serverURL string) *Client {
	return NewClient(ClientConfig{
		APIKey:     "test-key",
		BaseURL:    serverURL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})
}

func TestClient_GetAlternatives_Success(t *testing.T) {
	respBody, err := os.ReadFile("testdata/calculate_route_response.json")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectedPath := "/routing/1/calculateRoute/40.712800,-74.006000:40.715000,-74.003900/json"
		if r.URL.Path != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("travelMode") != "pedestrian" {
			t.Errorf("expected pedestrian travel mode, got %q", q.Get("travelMode"))
		}
		if q.Get("maxAlternatives") != "2" {
			t.Errorf("expected maxAlternatives=2, got %q", q.Get("maxAlternatives"))
		}
		if q.Get("key") != "test-key" {
			t.Errorf("expected key test-key, got %q", q.Get("key"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(respBody)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).GetAlternatives(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Provider != ProviderName {
		t.Errorf("expected provider %s, got %s", ProviderName, resp.Provider)
	}
	if len(resp.Routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(resp.Routes))
	}

	first := resp.Routes[0]
	if first.Summary == nil || first.Summary.LengthInMeters != 1250 || first.Summary.TravelTimeInSeconds != 900 {
		t.Errorf("unexpected summary %+v", first.Summary)
	}
	if len(first.Legs) != 1 || len(first.Legs[0].Points) != 4 {
		t.Fatalf("expected one leg with 4 points, got %+v", first.Legs)
	}
	if first.Legs[0].Points[0] != (geo.Coordinate{Lat: 40.7128, Lon: -74.0060}) {
		t.Errorf("unexpected first point %+v", first.Legs[0].Points[0])
	}
	if len(first.Sections) != 0 {
		t.Errorf("index-only sections should be skipped, got %d", len(first.Sections))
	}

	second := resp.Routes[1]
	if len(second.Sections) != 1 || second.Sections[0].Type != "PEDESTRIAN" || len(second.Sections[0].Points) != 2 {
		t.Errorf("expected one pedestrian section with points, got %+v", second.Sections)
	}
}

func TestClient_GetAlternatives_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
		wantCode   string
	}{
		{
			name:       "no route",
			statusCode: http.StatusBadRequest,
			body:       `{"detailedError":{"code":"NO_ROUTE_FOUND","message":"Unable to find a route"}}`,
			wantErr:    routing.ErrNoRouteFound,
			wantCode:   "NO_ROUTE",
		},
		{
			name:       "map matching failure",
			statusCode: http.StatusBadRequest,
			body:       `{"detailedError":{"code":"MAP_MATCHING_FAILURE","message":"Point in the sea"}}`,
			wantErr:    routing.ErrNoRouteFound,
			wantCode:   "NO_ROUTE",
		},
		{
			name:       "bad request",
			statusCode: http.StatusBadRequest,
			body:       `{"detailedError":{"code":"INVALID_REQUEST","message":"Invalid value for travelMode"}}`,
			wantErr:    routing.ErrInvalidCoordinates,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "rate limited",
			statusCode: http.StatusTooManyRequests,
			body:       `{}`,
			wantErr:    routing.ErrRateLimitExceeded,
			wantCode:   "RATE_LIMIT",
		},
		{
			name:       "forbidden",
			statusCode: http.StatusForbidden,
			body:       `<h1>Developer Inactive</h1>`,
			wantErr:    routing.ErrProviderUnavailable,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "server error",
			statusCode: http.StatusServiceUnavailable,
			body:       ``,
			wantErr:    routing.ErrProviderUnavailable,
			wantCode:   "SERVER_503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).GetAlternatives(context.Background(), testRequest)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var routingErr *routing.Error
			if !errors.As(err, &routingErr) {
				t.Fatalf("expected *routing.Error, got %T", err)
			}
			if routingErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, routingErr.Code)
			}
		})
	}
}

func TestClient_GetAlternatives_InvalidCoordinates(t *testing.T) {
	client := newTestClient("http://unused")

	req := testRequest
	req.Origin = geo.Coordinate{Lat: 100}
	_, err := client.GetAlternatives(context.Background(), req)
	if !errors.Is(err, routing.ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestClient_GetAlternatives_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).GetAlternatives(context.Background(), testRequest)
	if !errors.Is(err, routing.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}
