package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"nexus-chat/pkg/config"
	"nexus-chat/pkg/di"
	"nexus-chat/pkg/logger"
)

func newBareRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.Platform.URL = "http://127.0.0.1:1"
	cfg.Platform.RequestTimeout = time.Second
	cfg.Security.AllowedOrigins = []string{"https://app.example"}
	cfg.Security.MaxBodySize = 1 << 10
	cfg.Reset.MinPasswordLength = 8
	cfg.Reset.MaxFailedAttempts = 5
	cfg.Reset.LockoutWindow = time.Minute

	container, err := di.New(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	return New(ctx, container)
}

func newTestRouter(t *testing.T) *Router {
	r := newBareRouter(t)
	r.SetupRoutes()
	return r
}

func TestHealthRoute(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["env"])
}

func TestPasswordResetRouteRequiresAuthorization(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/password-reset-self", strings.NewReader(`{}`))
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), "Authorization header required")
}

func TestPasswordResetPreflight(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/functions/v1/password-reset-self", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(corsMiddleware([]string{"https://app.example"}))
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLimits(t *testing.T) {
	assert.Equal(t, rate.Inf, rateLimit(0))
	assert.Equal(t, rate.Limit(2.5), rateLimit(2.5))

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(bodyLimit(4))
	engine.POST("/x", func(c *gin.Context) {
		var v map[string]any
		if err := c.ShouldBindJSON(&v); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":"long value"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestOpenAPIValidation(t *testing.T) {
	r := newBareRouter(t)
	require.NoError(t, r.AddOpenAPIValidation("../../api/openapi.yaml"))
	r.SetupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/password-reset-self", strings.NewReader(`{"current_password":5}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "password-reset-self")

	assert.Error(t, newBareRouter(t).AddOpenAPIValidation("missing.yaml"))
}
