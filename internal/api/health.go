package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler handles health check endpoints
// providing a receiver for health route methods
type Handler struct {
	Env       string
	StartedAt time.Time
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Env       string    `json:"env"`
	Uptime    string    `json:"uptime"`
}

// HealthHandler reports liveness only; component checks live under
// /api/v1/health.
func (h *Handler) HealthHandler(c *gin.Context) {
	now := time.Now()
	response := HealthResponse{
		Status:    "ok",
		Timestamp: now,
		Env:       h.Env,
	}
	if !h.StartedAt.IsZero() {
		response.Uptime = now.Sub(h.StartedAt).Round(time.Second).String()
	}
	c.JSON(http.StatusOK, response)
}

// RegisterHealthRoutes registers health check related routes
func (h *Handler) RegisterHealthRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthHandler)
}
