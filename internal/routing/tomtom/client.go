// Package tomtom implements routing.Provider on the TomTom Routing API.
package tomtom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/provider/resilience"
	"github.com/safewalk/safewalk/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "tomtom-routing"

	// DefaultBaseURL is the TomTom API base URL.
	DefaultBaseURL = "https://api.tomtom.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the TomTom routing client.
type ClientConfig struct {
	// APIKey is the TomTom API key (required).
	APIKey string

	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// HTTPClient overrides the resilient client.
	HTTPClient HTTPDoer

	// Timeout is the request timeout for the default client (default: 10s).
	Timeout time.Duration

	// Registry receives provider health when the default client is built.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a TomTom calculateRoute client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new TomTom routing client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetAlternatives requests pedestrian routes. TomTom counts alternatives
// beyond the primary route, so MaxAlternatives-1 is sent upstream.
func (c *Client) GetAlternatives(ctx context.Context, req routing.AlternativesRequest) (*routing.AlternativesResponse, error) {
	if !req.Origin.Valid() {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}
	if !req.Destination.Valid() {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      routing.ErrInvalidCoordinates,
		}
	}

	total := req.MaxAlternatives
	if total <= 0 {
		total = 3
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("travelMode", "pedestrian")
	params.Set("routeType", "fastest")
	params.Set("traffic", "true")
	params.Set("maxAlternatives", strconv.Itoa(total-1))

	locations := fmt.Sprintf("%.6f,%.6f:%.6f,%.6f",
		req.Origin.Lat, req.Origin.Lon, req.Destination.Lat, req.Destination.Lon)
	endpoint := fmt.Sprintf("%s/routing/1/calculateRoute/%s/json?%s", c.baseURL, locations, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Int("max_alternatives", total-1).
		Msg("requesting routes from TomTom")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := toAlternativesResponse(&rr)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received routes from TomTom")

	return result, nil
}

// handleErrorResponse maps TomTom error responses to routing errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	_ = json.Unmarshal(body, &errResp) //nolint:errcheck // detail is optional

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "API access denied - check API key configuration",
			Err:      routing.ErrProviderUnavailable,
		}
	case statusCode == http.StatusBadRequest:
		if errResp.DetailedError.Code == codeNoRouteFound || errResp.DetailedError.Code == codeMapMatchingFailure {
			return &routing.Error{
				Provider: ProviderName,
				Code:     "NO_ROUTE",
				Message:  errResp.DetailedError.Message,
				Err:      routing.ErrNoRouteFound,
			}
		}
		return &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  errResp.DetailedError.Message,
			Err:      routing.ErrInvalidCoordinates,
		}
	case statusCode >= http.StatusInternalServerError:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("routing provider returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

func toAlternativesResponse(rr *routeResponse) *routing.AlternativesResponse {
	routes := make([]routing.Route, 0, len(rr.Routes))
	for i := range rr.Routes {
		tr := &rr.Routes[i]

		route := routing.Route{
			Legs:    make([]routing.Leg, 0, len(tr.Legs)),
			Summary: tr.Summary.toSummary(),
		}
		for j := range tr.Legs {
			route.Legs = append(route.Legs, routing.Leg{
				Points:  toCoordinates(tr.Legs[j].Points),
				Summary: tr.Legs[j].Summary.toSummary(),
			})
		}
		for j := range tr.Sections {
			if len(tr.Sections[j].Points) == 0 {
				continue
			}
			route.Sections = append(route.Sections, routing.Section{
				Type:   tr.Sections[j].SectionType,
				Points: toCoordinates(tr.Sections[j].Points),
			})
		}

		routes = append(routes, route)
	}

	return &routing.AlternativesResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
}

func toCoordinates(points []point) []geo.Coordinate {
	out := make([]geo.Coordinate, len(points))
	for i, p := range points {
		out[i] = geo.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
	}
	return out
}
