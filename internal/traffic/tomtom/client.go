// Package tomtom implements traffic.Provider on the TomTom Traffic Flow API.
package tomtom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/geo"
	"github.com/safewalk/safewalk/internal/provider/resilience"
	"github.com/safewalk/safewalk/internal/traffic"
)

const (
	// ProviderName identifies this traffic provider.
	ProviderName = "tomtom-traffic"

	// DefaultBaseURL is the TomTom API base URL.
	DefaultBaseURL = "https://api.tomtom.com"

	// DefaultZoom selects the road detail level of flow segments.
	DefaultZoom = 10
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the TomTom traffic client.
type ClientConfig struct {
	// APIKey is the TomTom API key (required).
	APIKey string

	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// Zoom overrides DefaultZoom.
	Zoom int

	// HTTPClient overrides the resilient client.
	HTTPClient HTTPDoer

	// Registry receives provider health when the default client is built.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a TomTom Traffic Flow client.
type Client struct {
	apiKey     string
	baseURL    string
	zoom       int
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new TomTom traffic client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	zoom := cfg.Zoom
	if zoom == 0 {
		zoom = DefaultZoom
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		zoom:       zoom,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FlowAt returns flow on the road segment closest to point.
func (c *Client) FlowAt(ctx context.Context, point geo.Coordinate) (*traffic.Flow, error) {
	params := url.Values{}
	params.Set("point", fmt.Sprintf("%.6f,%.6f", point.Lat, point.Lon))
	params.Set("unit", "KMPH")
	params.Set("key", c.apiKey)

	endpoint := fmt.Sprintf("%s/traffic/services/4/flowSegmentData/absolute/%d/json?%s",
		c.baseURL, c.zoom, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &traffic.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach traffic provider",
			Err:      traffic.ErrProviderUnavailable,
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

	var flowResp flowResponse
	if err := json.Unmarshal(body, &flowResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	data := flowResp.FlowSegmentData
	c.logger.Debug().
		Float64("lat", point.Lat).
		Float64("lon", point.Lon).
		Float64("current_speed", data.CurrentSpeed).
		Float64("free_flow_speed", data.FreeFlowSpeed).
		Msg("received traffic flow from TomTom")

	return &traffic.Flow{
		CurrentSpeed:  data.CurrentSpeed,
		FreeFlowSpeed: data.FreeFlowSpeed,
		Confidence:    data.Confidence,
		RoadClosure:   data.RoadClosure,
		FetchedAt:     time.Now(),
	}, nil
}

// handleErrorResponse maps TomTom error responses to traffic errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	_ = json.Unmarshal(body, &errResp) //nolint:errcheck // detail is optional
	detail := errResp.DetailedError.Message
	if detail == "" {
		detail = errResp.ErrorText
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &traffic.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "traffic API rate limit exceeded",
			Err:      traffic.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized:
		return &traffic.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "traffic API access denied - check API key configuration",
			Err:      traffic.ErrProviderUnavailable,
		}
	case statusCode == http.StatusBadRequest:
		// TomTom answers 400 when the point is too far from any road segment.
		return &traffic.Error{
			Provider: ProviderName,
			Code:     "NO_DATA",
			Message:  "no flow segment near point: " + detail,
			Err:      traffic.ErrNoFlowData,
		}
	default:
		return &traffic.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("traffic provider returned status %d", statusCode),
			Err:      traffic.ErrProviderUnavailable,
		}
	}
}

type flowResponse struct {
	FlowSegmentData struct {
		FRC                string  `json:"frc"`
		CurrentSpeed       float64 `json:"currentSpeed"`
		FreeFlowSpeed      float64 `json:"freeFlowSpeed"`
		CurrentTravelTime  float64 `json:"currentTravelTime"`
		FreeFlowTravelTime float64 `json:"freeFlowTravelTime"`
		Confidence         float64 `json:"confidence"`
		RoadClosure        bool    `json:"roadClosure"`
	} `json:"flowSegmentData"`
}

type errorResponse struct {
	ErrorText     string `json:"error"`
	DetailedError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"detailedError"`
}
