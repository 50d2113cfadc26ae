package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Liveness(t *testing.T) {
	router := NewRouter(RouterConfig{}, HandlerSet{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestRouter_ReadinessHealthy(t *testing.T) {
	router := NewRouter(RouterConfig{
		ReadyChecks: map[string]func() bool{
			"redis": func() bool { return true },
			"nats":  nil, // not configured
		},
	}, HandlerSet{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"nats":"not configured"`)
}

func TestRouter_ReadinessDegraded(t *testing.T) {
	router := NewRouter(RouterConfig{
		ReadyChecks: map[string]func() bool{
			"redis": func() bool { return false },
		},
	}, HandlerSet{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestRouter_Metrics(t *testing.T) {
	router := NewRouter(RouterConfig{}, HandlerSet{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
