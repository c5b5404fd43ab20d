package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/logger"
)

type mockResetter struct {
	mock.Mock
}

func (m *mockResetter) Authenticate(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockResetter) ChangePassword(ctx context.Context, user *models.User, req models.PasswordResetRequest) error {
	return m.Called(ctx, user.ID, req).Error(0)
}

func newEngine(svc PasswordResetter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler())
	NewPasswordResetHandler(svc, logger.Discard()).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, PasswordResetPath, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPreflight(t *testing.T) {
	w := do(newEngine(&mockResetter{}), http.MethodOptions, "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization, Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestResetRequiresAuthorization(t *testing.T) {
	svc := &mockResetter{}
	r := newEngine(svc)

	w := do(r, http.MethodPost, "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Authorization header required"`)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodPost, "Bearer", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Authorization token missing"`)

	svc.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
}

func TestResetSuccess(t *testing.T) {
	svc := &mockResetter{}
	svc.On("Authenticate", mock.Anything, "tok").Return(&models.User{ID: "u1", Email: "a@b.c"}, nil)
	svc.On("ChangePassword", mock.Anything, "u1", models.PasswordResetRequest{CurrentPassword: "old-password", NewPassword: "new-password"}).Return(nil)

	w := do(newEngine(svc), http.MethodPost, "Bearer tok", `{"current_password":"old-password","new_password":"new-password"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Password updated successfully"}`, w.Body.String())
}

func TestResetChecksUserBeforeBody(t *testing.T) {
	svc := &mockResetter{}
	svc.On("Authenticate", mock.Anything, "tok").
		Return(nil, errors.NewBadRequestError(errors.CodeValidation, "User has no email; cannot reauthenticate"))

	w := do(newEngine(svc), http.MethodPost, "Bearer tok", `not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "User has no email; cannot reauthenticate")
}

func TestResetInvalidBody(t *testing.T) {
	svc := &mockResetter{}
	svc.On("Authenticate", mock.Anything, "tok").Return(&models.User{ID: "u1", Email: "a@b.c"}, nil)

	w := do(newEngine(svc), http.MethodPost, "Bearer tok", `{"current_password":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
	svc.AssertNotCalled(t, "ChangePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetServiceErrorStatus(t *testing.T) {
	svc := &mockResetter{}
	svc.On("Authenticate", mock.Anything, "tok").Return(&models.User{ID: "u1", Email: "a@b.c"}, nil)
	svc.On("ChangePassword", mock.Anything, "u1", mock.Anything).
		Return(errors.NewUnauthorizedError(errors.CodeBadCredentials, "Current password is incorrect"))

	w := do(newEngine(svc), http.MethodPost, "Bearer tok", `{"current_password":"x","new_password":"new-password"}`)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Current password is incorrect"`)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &Handler{Env: "test", StartedAt: time.Now().Add(-time.Minute)}
	h.RegisterHealthRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"env":"test"`)
}
