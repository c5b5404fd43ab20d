package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/logger"
	"nexus-chat/pkg/middleware"
)

// PasswordResetPath is where the function is mounted.
const PasswordResetPath = "/functions/v1/password-reset-self"

// PasswordResetter is the service behind the handler.
type PasswordResetter interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
	ChangePassword(ctx context.Context, user *models.User, req models.PasswordResetRequest) error
}

// PasswordResetHandler serves password-reset-self.
type PasswordResetHandler struct {
	service PasswordResetter
	logger  *logger.Logger
}

// NewPasswordResetHandler creates a new password reset handler
func NewPasswordResetHandler(service PasswordResetter, logger *logger.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the function and its CORS preflight.
func (h *PasswordResetHandler) RegisterRoutes(router gin.IRoutes) {
	router.OPTIONS(PasswordResetPath, h.Preflight)
	router.POST(PasswordResetPath, allowAnyOrigin, middleware.RequireBearer(), h.Reset)
}

// allowAnyOrigin sets the origin header on every response, errors included.
func allowAnyOrigin(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Next()
}

// Preflight answers browser CORS checks.
func (h *PasswordResetHandler) Preflight(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
	c.Status(http.StatusOK)
}

// Reset changes the caller's password after checking the current one.
func (h *PasswordResetHandler) Reset(c *gin.Context) {
	ctx := c.Request.Context()

	user, err := h.service.Authenticate(ctx, c.GetString(middleware.AccessTokenKey))
	if err != nil {
		c.Error(err)
		return
	}
	c.Set("userId", user.ID)

	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for password reset", "error", err.Error())
		c.Error(errors.NewBadRequestError(errors.CodeValidation, "Invalid request body"))
		return
	}

	if err := h.service.ChangePassword(ctx, user, req); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.PasswordResetResponse{
		Success: true,
		Message: "Password updated successfully",
	})
}
