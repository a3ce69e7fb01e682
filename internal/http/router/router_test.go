package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "lead_routing_backend/internal/http"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHealth struct{ err error }

func (s stubHealth) Ping(context.Context) error { return s.err }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	ctx.Public.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "public pong") })
}

func newTestApp(health apphttp.HealthChecker) *apphttp.App {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	return &apphttp.App{
		Logger:   logger.Discard(),
		Health:   health,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Modules:  []apphttp.Module{pingModule{}},
	}
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(New(newTestApp(stubHealth{})), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	rec := serve(New(newTestApp(stubHealth{err: errors.New("down")})), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestModulesAreMounted(t *testing.T) {
	engine := New(newTestApp(nil))

	rec := serve(engine, http.MethodGet, "/api/v1/ping")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	rec = serve(engine, http.MethodGet, "/api/v1/public/ping")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	engine := New(newTestApp(nil))
	serve(engine, http.MethodGet, "/api/v1/ping")

	rec := serve(engine, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/ping",status="200"} 1`)
}
