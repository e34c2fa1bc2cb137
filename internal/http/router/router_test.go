package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "stego_gateway/internal/http"
	"stego_gateway/platform/config"
	"stego_gateway/platform/logger"
	"stego_gateway/platform/metrics"
)

type stubModule struct{}

func (stubModule) Name() string { return "stub" }

func (stubModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.API.POST("/echo", ctx.UploadLimiter.Limit(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	ctx.API.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  &config.Config{HTTPAddr: ":0", CORSAllowAll: true, CORSOrigins: []string{"*"}},
		Logger:  logger.Discard(),
		Metrics: metrics.New(),
		Modules: []apphttp.Module{stubModule{}},
	})
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestOperationalEndpoints(t *testing.T) {
	engine := newTestRouter()

	rec := get(engine, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Steganography backend is running","endpoints":["/health","/test-python","/api/encode","/api/decode"]}`, rec.Body.String())

	rec = get(engine, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","message":"gateway is running"}`, rec.Body.String())

	rec = get(engine, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gateway_http_requests_total"))
}

func TestSharedMiddleware(t *testing.T) {
	engine := newTestRouter()

	rec := get(engine, "/health")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	preflight := httptest.NewRequest(http.MethodOptions, "/api/echo", nil)
	preflight.Header.Set("Origin", "http://localhost:3000")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, preflight)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(engine, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}

func TestModuleRoutesAndRecovery(t *testing.T) {
	engine := newTestRouter()

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/echo", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(engine, "/api/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRestrictedOriginsFromLoadedConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CORS_ORIGINS", "https://app.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.False(t, cfg.GetCORSAllowAll())

	engine := New(&apphttp.App{Config: cfg, Logger: logger.Discard()})

	preflight := httptest.NewRequest(http.MethodOptions, "/api/encode", nil)
	preflight.Header.Set("Origin", "https://app.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, preflight)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoadRefusesOriginsCORSCannotServe(t *testing.T) {
	for _, origins := range []string{"", "example.com"} {
		t.Setenv("CONFIG_FILE", "")
		t.Setenv("CORS_ORIGINS", origins)
		_, err := config.Load()
		assert.Error(t, err, "origins %q", origins)
	}
}
