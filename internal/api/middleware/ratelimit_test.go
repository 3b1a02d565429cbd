package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/safewalk/safewalk/internal/api/middleware"
)

func limited(limiter func(http.Handler) http.Handler) http.Handler {
	return limiter(okHandler())
}

func hit(h http.Handler, remoteAddr, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/panic", http.NoBody)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	h := limited(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute}))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:12345", "").Code, "request %d", i+1)
	}

	rec := hit(h, "10.0.0.1:12345", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	assert.Contains(t, rec.Body.String(), "/v1/panic")
}

func TestRateLimitByIP_SeparateBudgetsPerIP(t *testing.T) {
	h := limited(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}))

	assert.Equal(t, http.StatusOK, hit(h, "172.16.0.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "172.16.0.1:1", "").Code)
	assert.Equal(t, http.StatusOK, hit(h, "172.16.0.2:1", "").Code)
}

func TestRateLimitByUser_KeysOnUserAcrossIPs(t *testing.T) {
	h := limited(middleware.RateLimitByUser(middleware.RateLimitConfig{RequestLimit: 2, WindowLength: 30 * time.Second}))

	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:1", "usr_a").Code)
	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.2:1", "usr_a").Code)

	rec := hit(h, "192.168.1.3:1", "usr_a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:1", "usr_b").Code)
}

func TestRateLimitByUser_FallsBackToIP(t *testing.T) {
	h := limited(middleware.RateLimitByUser(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}))

	assert.Equal(t, http.StatusOK, hit(h, "203.0.113.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "203.0.113.1:1", "").Code)
	assert.Equal(t, http.StatusOK, hit(h, "203.0.113.2:1", "").Code)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 30, middleware.RouteRateLimit.RequestLimit)
	assert.Equal(t, 20, middleware.ReportRateLimit.RequestLimit)
	assert.Equal(t, 5, middleware.PanicRateLimit.RequestLimit)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.PanicRateLimit.WindowLength)
}
