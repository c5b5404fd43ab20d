package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is the identity record the platform returns alongside a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a signed-in identity with its tokens.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	ExpiresAt    int64     `json:"expires_at,omitempty"`
	User         User      `json:"user"`
	ReceivedAt   time.Time `json:"-"`
}

// Expiry returns when the access token stops being valid, or the zero time
// when the platform did not say.
func (s *Session) Expiry() time.Time {
	switch {
	case s.ExpiresAt > 0:
		return time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0 && !s.ReceivedAt.IsZero():
		return s.ReceivedAt.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// AuthUser maps the identity schema's users table for the direct-database
// credential backend.
type AuthUser struct {
	ID                string    `gorm:"column:id;primaryKey"`
	Email             *string   `gorm:"column:email"`
	EncryptedPassword string    `gorm:"column:encrypted_password"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (AuthUser) TableName() string {
	return "auth.users"
}

// PasswordResetRequest is the body of the password-reset-self function.
type PasswordResetRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PasswordResetResponse is its success body.
type PasswordResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HashPassword hashes a password for storage
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
