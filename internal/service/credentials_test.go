package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

func (m *mockIdentity) AdminUpdatePassword(ctx context.Context, userID, password string) error {
	return m.Called(ctx, userID, password).Error(0)
}

func TestAdminAPICredentialsVerify(t *testing.T) {
	id := &mockIdentity{}
	id.On("SignInWithPassword", mock.Anything, "ada@example.com", "right").Return(&models.Session{AccessToken: "x"}, nil)
	id.On("SignInWithPassword", mock.Anything, "ada@example.com", "wrong").Return(nil, errors.NewUnauthorizedError(errors.CodeBadCredentials, "Invalid login credentials"))
	id.On("SignInWithPassword", mock.Anything, "ada@example.com", "teapot").Return(nil, errors.HTTPStatus(418, "teapot"))
	id.On("SignInWithPassword", mock.Anything, "ada@example.com", "offline").Return(nil, errors.Transport(stderrors.New("no route")))

	creds := NewAdminAPICredentials(id, id)

	assert.NoError(t, creds.Verify(context.Background(), ada, "right"))
	assert.ErrorIs(t, creds.Verify(context.Background(), ada, "wrong"), ErrWrongPassword)
	assert.ErrorIs(t, creds.Verify(context.Background(), ada, "teapot"), ErrWrongPassword)
	assert.True(t, errors.HasCode(creds.Verify(context.Background(), ada, "offline"), errors.CodeTransport))
}

func TestAdminAPICredentialsUpdate(t *testing.T) {
	id := &mockIdentity{}
	id.On("AdminUpdatePassword", mock.Anything, "u1", "new-password").Return(nil)

	assert.NoError(t, NewAdminAPICredentials(id, id).Update(context.Background(), "u1", "new-password"))
	id.AssertExpectations(t)
}
