package service

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/cache"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/jwt"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type mockCredentials struct {
	mock.Mock
}

func (m *mockCredentials) Verify(ctx context.Context, user *models.User, password string) error {
	return m.Called(ctx, user.ID, password).Error(0)
}

func (m *mockCredentials) Update(ctx context.Context, userID, password string) error {
	return m.Called(ctx, userID, password).Error(0)
}

type outcomes struct {
	mu  sync.Mutex
	got []string
}

func (o *outcomes) RecordReset(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, outcome)
}

func (o *outcomes) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.got) == 0 {
		return ""
	}
	return o.got[len(o.got)-1]
}

var ada = &models.User{ID: "u1", Email: "ada@example.com"}

func newService(t *testing.T, users UserResolver, creds CredentialStore) (*PasswordResetService, *outcomes) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rec := &outcomes{}
	limiter := NewMemoryAttemptLimiter(cache.New(ctx, time.Minute, time.Minute, 100), 15*time.Minute)
	svc := NewPasswordResetService(users, creds, limiter, rec, ResetOptions{MinPasswordLength: 8, MaxFailedAttempts: 3}, nil)
	return svc, rec
}

func TestResetSuccess(t *testing.T) {
	users := &mockResolver{}
	users.On("ResolveUser", mock.Anything, "tok").Return(ada, nil)
	creds := &mockCredentials{}
	creds.On("Verify", mock.Anything, "u1", "old-password").Return(nil)
	creds.On("Update", mock.Anything, "u1", "new-password").Return(nil)

	svc, rec := newService(t, users, creds)
	err := svc.Reset(context.Background(), "tok", models.PasswordResetRequest{CurrentPassword: "old-password", NewPassword: "new-password"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, rec.last())
	creds.AssertExpectations(t)
}

func TestResetRejections(t *testing.T) {
	tests := []struct {
		name    string
		user    *models.User
		userErr error
		req     models.PasswordResetRequest
		status  int
		message string
	}{
		{
			name:    "unknown token",
			userErr: errors.NewUnauthorizedError(errors.CodeInvalidToken, "bad jwt"),
			status:  401,
			message: "Unauthorized or invalid token",
		},
		{
			name:    "user without email",
			user:    &models.User{ID: "u2"},
			status:  400,
			message: "User has no email; cannot reauthenticate",
		},
		{
			name:    "missing current password",
			user:    ada,
			req:     models.PasswordResetRequest{NewPassword: "long-enough"},
			status:  400,
			message: "Missing current_password",
		},
		{
			name:    "missing new password",
			user:    ada,
			req:     models.PasswordResetRequest{CurrentPassword: "old-password"},
			status:  400,
			message: "Missing new_password",
		},
		{
			name:    "short new password",
			user:    ada,
			req:     models.PasswordResetRequest{CurrentPassword: "old-password", NewPassword: "short"},
			status:  400,
			message: "Password must be at least 8 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &mockResolver{}
			users.On("ResolveUser", mock.Anything, "tok").Return(tt.user, tt.userErr)
			creds := &mockCredentials{}

			svc, _ := newService(t, users, creds)
			err := svc.Reset(context.Background(), "tok", tt.req)

			require.Error(t, err)
			assert.Equal(t, tt.status, errors.GetStatusCode(err))
			assert.Equal(t, tt.message, errors.GetErrorMessage(err))
			creds.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPasswordLengthCountsUTF16Units(t *testing.T) {
	assert.Equal(t, 8, passwordLength("\U0001F600\U0001F600\U0001F600\U0001F600"))
	assert.Equal(t, 7, passwordLength("ééééééé"))

	users := &mockResolver{}
	users.On("ResolveUser", mock.Anything, "tok").Return(ada, nil)
	creds := &mockCredentials{}
	creds.On("Verify", mock.Anything, "u1", "guess").Return(ErrWrongPassword)

	svc, _ := newService(t, users, creds)
	err := svc.Reset(context.Background(), "tok", models.PasswordResetRequest{CurrentPassword: "guess", NewPassword: "\U0001F600\U0001F600\U0001F600\U0001F600"})
	assert.Equal(t, 401, errors.GetStatusCode(err))
	creds.AssertNumberOfCalls(t, "Verify", 1)
}

func TestWrongPasswordLocksAfterMaxAttempts(t *testing.T) {
	users := &mockResolver{}
	users.On("ResolveUser", mock.Anything, "tok").Return(ada, nil)
	creds := &mockCredentials{}
	creds.On("Verify", mock.Anything, "u1", "guess").Return(ErrWrongPassword)

	svc, rec := newService(t, users, creds)
	req := models.PasswordResetRequest{CurrentPassword: "guess", NewPassword: "new-password"}

	for i := 0; i < 3; i++ {
		err := svc.Reset(context.Background(), "tok", req)
		assert.Equal(t, 401, errors.GetStatusCode(err))
		assert.Equal(t, "Current password is incorrect", errors.GetErrorMessage(err))
		assert.Equal(t, OutcomeWrongPassword, rec.last())
	}

	err := svc.Reset(context.Background(), "tok", req)
	assert.Equal(t, 429, errors.GetStatusCode(err))
	assert.Equal(t, OutcomeLocked, rec.last())
	creds.AssertNumberOfCalls(t, "Verify", 3)
}

func TestSuccessfulVerifyClearsFailures(t *testing.T) {
	users := &mockResolver{}
	users.On("ResolveUser", mock.Anything, "tok").Return(ada, nil)
	creds := &mockCredentials{}
	creds.On("Verify", mock.Anything, "u1", "guess").Return(ErrWrongPassword)
	creds.On("Verify", mock.Anything, "u1", "old-password").Return(nil)
	creds.On("Update", mock.Anything, "u1", "new-password").Return(nil)

	svc, _ := newService(t, users, creds)
	for i := 0; i < 2; i++ {
		svc.Reset(context.Background(), "tok", models.PasswordResetRequest{CurrentPassword: "guess", NewPassword: "new-password"})
	}
	require.NoError(t, svc.Reset(context.Background(), "tok", models.PasswordResetRequest{CurrentPassword: "old-password", NewPassword: "new-password"}))

	n, err := svc.attempts.Failures(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateFailureCarriesBackendMessage(t *testing.T) {
	users := &mockResolver{}
	users.On("ResolveUser", mock.Anything, "tok").Return(ada, nil)
	creds := &mockCredentials{}
	creds.On("Verify", mock.Anything, "u1", "old-password").Return(nil)
	creds.On("Update", mock.Anything, "u1", "new-password").Return(errors.HTTPStatus(422, "New password should be different from the old password."))

	svc, rec := newService(t, users, creds)
	err := svc.Reset(context.Background(), "tok", models.PasswordResetRequest{CurrentPassword: "old-password", NewPassword: "new-password"})

	assert.Equal(t, 400, errors.GetStatusCode(err))
	assert.Equal(t, "New password should be different from the old password.", errors.GetErrorMessage(err))
	assert.Equal(t, OutcomeUpdateFailed, rec.last())
}

func TestUnexpectedVerifyErrorPassesThrough(t *testing.T) {
	users := &mockResolver{}
	users.On("ResolveUser", mock.Anything, "tok").Return(ada, nil)
	creds := &mockCredentials{}
	creds.On("Verify", mock.Anything, "u1", "old-password").Return(errors.Transport(stderrors.New("dial tcp: refused")))

	svc, _ := newService(t, users, creds)
	err := svc.Reset(context.Background(), "tok", models.PasswordResetRequest{CurrentPassword: "old-password", NewPassword: "new-password"})
	assert.True(t, errors.HasCode(err, errors.CodeTransport))
}

func TestJWTResolver(t *testing.T) {
	svc := jwt.NewService("secret", time.Hour)
	tok, err := svc.GenerateToken("u1", "ada@example.com")
	require.NoError(t, err)

	u, err := NewJWTResolver(svc).ResolveUser(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "ada@example.com", u.Email)

	_, err = NewJWTResolver(jwt.NewService("other", time.Hour)).ResolveUser(context.Background(), tok)
	assert.Error(t, err)
}
