package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveHealth(t *testing.T, h *HealthHandler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.HandleMethodNotAllowed = true
	h.RegisterRoutes(router)

	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	t.Run("healthy", func(t *testing.T) {
		rr := serveHealth(t, NewHealthHandler("test-service", "1.0.0", up, up), http.MethodGet, "/health")
		require.Equal(t, http.StatusOK, rr.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "test-service", response.Service)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "up", response.DB)
		assert.Equal(t, "up", response.Cache)
	})

	t.Run("cache down still healthy", func(t *testing.T) {
		rr := serveHealth(t, NewHealthHandler("svc", "1", up, down), http.MethodGet, "/healthz")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"cache":"down"`)
	})

	t.Run("db down is degraded", func(t *testing.T) {
		rr := serveHealth(t, NewHealthHandler("svc", "1", down, nil), http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"degraded"`)
		assert.Contains(t, rr.Body.String(), `"cache":"disabled"`)
	})

	t.Run("method not allowed", func(t *testing.T) {
		rr := serveHealth(t, NewHealthHandler("svc", "1", nil, nil), http.MethodPost, "/health")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}
