package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriticalComponentDownIsUnhealthy(t *testing.T) {
	c := NewChecker(nil, time.Minute)
	c.RegisterPingCheck("database", true, func(context.Context) error { return errors.New("refused") })
	c.RegisterPingCheck("redis", false, func(context.Context) error { return nil })

	c.RunChecks(context.Background())

	assert.False(t, c.IsSystemHealthy())
	status := c.GetStatus()
	assert.Equal(t, StatusDown, status["database"].Status)
	assert.Equal(t, "refused", status["database"].Error)
	assert.Equal(t, StatusUp, status["redis"].Status)
}

func TestHandlerAndAPICheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	c := NewChecker(nil, time.Minute)
	c.RegisterAPICheck("identity", upstream.URL, map[string]string{"apikey": "anon"}, upstream.Client())
	c.RunChecks(context.Background())

	r := gin.New()
	r.GET("/health", c.Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status     string                `json:"status"`
		Components map[string]*Component `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, StatusUp, body.Components["api-identity"].Status)
}
