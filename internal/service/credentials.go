package service

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

// PasswordSignIn is the identity API's password grant, called with the
// anon key.
type PasswordSignIn interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
}

// PasswordAdmin is the identity admin API, called with the service-role key.
type PasswordAdmin interface {
	AdminUpdatePassword(ctx context.Context, userID, password string) error
}

// AdminAPICredentials verifies by signing in and updates through the
// identity admin API.
type AdminAPICredentials struct {
	signIn PasswordSignIn
	admin  PasswordAdmin
}

func NewAdminAPICredentials(signIn PasswordSignIn, admin PasswordAdmin) *AdminAPICredentials {
	return &AdminAPICredentials{signIn: signIn, admin: admin}
}

// Verify treats any refused sign-in as a wrong password. Only network
// failures are passed through.
func (c *AdminAPICredentials) Verify(ctx context.Context, user *models.User, password string) error {
	if _, err := c.signIn.SignInWithPassword(ctx, user.Email, password); err != nil {
		if errors.HasCode(err, errors.CodeTransport) {
			return err
		}
		return ErrWrongPassword
	}
	return nil
}

func (c *AdminAPICredentials) Update(ctx context.Context, userID, password string) error {
	return c.admin.AdminUpdatePassword(ctx, userID, password)
}

// PostgresCredentials works directly on the identity schema's users table.
type PostgresCredentials struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresCredentials(db *gorm.DB) *PostgresCredentials {
	return &PostgresCredentials{db: db, now: time.Now}
}

func (c *PostgresCredentials) Verify(ctx context.Context, user *models.User, password string) error {
	var row models.AuthUser
	result := c.db.WithContext(ctx).Where("id = ?", user.ID).First(&row)
	if result.Error != nil {
		if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrWrongPassword
		}
		return errors.NewInternalServerError(errors.CodeInternal, "Failed to load credentials").WithCause(result.Error)
	}
	if !models.CheckPasswordHash(password, row.EncryptedPassword) {
		return ErrWrongPassword
	}
	return nil
}

func (c *PostgresCredentials) Update(ctx context.Context, userID, password string) error {
	hash, err := models.HashPassword(password)
	if err != nil {
		return errors.NewInternalServerError(errors.CodeInternal, "Failed to hash password").WithCause(err)
	}
	result := c.db.WithContext(ctx).Model(&models.AuthUser{}).Where("id = ?", userID).Updates(map[string]any{
		"encrypted_password": hash,
		"updated_at":         c.now(),
	})
	if result.Error != nil {
		return errors.NewBadRequestError(errors.CodeApplication, "Failed to update password").WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewBadRequestError(errors.CodeNotFound, "User not found")
	}
	return nil
}
