package routing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/geo"
)

type mockProvider struct {
	response  *AlternativesResponse
	err       error
	callCount atomic.Int32
	lastReq   AlternativesRequest
}

func (m *mockProvider) GetAlternatives(_ context.Context, req AlternativesRequest) (*AlternativesResponse, error) {
	m.callCount.Add(1)
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockProvider) Name() string {
	return "mock"
}

var (
	origin      = geo.Coordinate{Lat: 40.7128, Lon: -74.0060}
	destination = geo.Coordinate{Lat: 40.7589, Lon: -73.9851}
)

func twoRoutes() *AlternativesResponse {
	return &AlternativesResponse{
		Routes: []Route{
			{EncodedPolyline: "_p~iF~ps|U_ulLnnqC", Summary: &Summary{LengthInMeters: 5400, TravelTimeInSeconds: 3900}},
			{EncodedPolyline: "_p~iF~ps|U_ulLnnqC_mqNvxq`@", Summary: &Summary{LengthInMeters: 6100, TravelTimeInSeconds: 4400}},
		},
		Provider:  "mock",
		FetchedAt: time.Now(),
	}
}

func TestService_Alternatives_CachesByEndpoints(t *testing.T) {
	provider := &mockProvider{response: twoRoutes()}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	ctx := context.Background()
	routes, err := svc.Alternatives(ctx, origin, destination, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if provider.lastReq.MaxAlternatives != 3 {
		t.Errorf("expected max alternatives 3, got %d", provider.lastReq.MaxAlternatives)
	}

	// A few meters away lands in the same cell.
	nearby := geo.Coordinate{Lat: origin.Lat + 0.00001, Lon: origin.Lon}
	if _, err := svc.Alternatives(ctx, nearby, destination, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := provider.callCount.Load(); got != 1 {
		t.Errorf("expected 1 provider call, got %d", got)
	}

	if _, err := svc.Alternatives(ctx, origin, destination, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := provider.callCount.Load(); got != 2 {
		t.Errorf("different alternative count must miss the cache, got %d calls", got)
	}
}

func TestService_Alternatives_DefaultsMax(t *testing.T) {
	provider := &mockProvider{response: twoRoutes()}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	if _, err := svc.Alternatives(context.Background(), origin, destination, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.lastReq.MaxAlternatives != 3 {
		t.Errorf("expected default of 3, got %d", provider.lastReq.MaxAlternatives)
	}
}

func TestService_Alternatives_InvalidCoordinates(t *testing.T) {
	provider := &mockProvider{response: twoRoutes()}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	tests := []struct {
		name     string
		origin   geo.Coordinate
		dest     geo.Coordinate
		wantCode string
	}{
		{"bad origin", geo.Coordinate{Lat: 91}, destination, "INVALID_ORIGIN"},
		{"bad destination", origin, geo.Coordinate{Lon: -181}, "INVALID_DESTINATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Alternatives(context.Background(), tt.origin, tt.dest, 3)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
			}
			var routingErr *Error
			if !errors.As(err, &routingErr) || routingErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %v", tt.wantCode, err)
			}
		})
	}
	if provider.callCount.Load() != 0 {
		t.Error("provider must not be called for invalid input")
	}
}

func TestService_Alternatives_EmptyResponse(t *testing.T) {
	provider := &mockProvider{response: &AlternativesResponse{}}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	_, err := svc.Alternatives(context.Background(), origin, destination, 3)
	if !errors.Is(err, ErrNoRouteFound) {
		t.Fatalf("expected ErrNoRouteFound, got %v", err)
	}
}

func TestService_Alternatives_StaleIfError(t *testing.T) {
	provider := &mockProvider{response: twoRoutes()}
	svc := NewService(ServiceConfig{
		Provider:        provider,
		Logger:          zerolog.Nop(),
		CacheTTL:        time.Millisecond,
		StaleIfErrorTTL: time.Hour,
	})

	ctx := context.Background()
	if _, err := svc.Alternatives(ctx, origin, destination, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	provider.err = &Error{Provider: "mock", Code: "SERVER_503", Message: "down", Err: ErrProviderUnavailable}
	routes, err := svc.Alternatives(ctx, origin, destination, 3)
	if err != nil {
		t.Fatalf("expected stale routes, got error: %v", err)
	}
	if len(routes) != 2 {
		t.Errorf("expected 2 stale routes, got %d", len(routes))
	}

	stats := svc.CacheStats()
	if stats.StaleEntries != 1 {
		t.Errorf("expected 1 stale entry, got %d", stats.StaleEntries)
	}
}

func TestService_Alternatives_ProviderError(t *testing.T) {
	provider := &mockProvider{err: &Error{Provider: "mock", Code: "RATE_LIMIT", Message: "slow down", Err: ErrRateLimitExceeded}}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	_, err := svc.Alternatives(context.Background(), origin, destination, 3)
	var routingErr *Error
	if !errors.As(err, &routingErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !routingErr.IsRetryable() {
		t.Error("rate limit errors should be retryable")
	}
	if svc.ProviderName() != "mock" {
		t.Errorf("unexpected provider name %q", svc.ProviderName())
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Message: "no route", Err: ErrNoRouteFound}
	if err.Error() != "no route: no route found between the given points" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if (&Error{Message: "plain"}).Error() != "plain" {
		t.Error("expected bare message without cause")
	}
	if err.IsRetryable() {
		t.Error("no route is not retryable")
	}
}
