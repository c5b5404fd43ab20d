package secrets

import (
	"context"
	"errors"
)

// Well-known secret keys. Environment fallbacks use the upper-cased form.
const (
	KeyServiceRoleKey = "platform_service_role_key"
	KeyAnonKey        = "platform_anon_key"
	KeyJWTSecret      = "platform_jwt_secret"
	KeyDBPassword     = "db_password"
	KeyRedisPassword  = "redis_password"
)

// Manager provides access to secrets from various sources
type Manager interface {
	GetSecret(ctx context.Context, key string) (string, error)
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// Static is a fixed map of secrets, used in tests and for explicit overrides.
type Static map[string]string

func (s Static) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok && v != "" {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func (s Static) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if v, err := s.GetSecret(ctx, key); err == nil {
		return v
	}
	return defaultValue
}
