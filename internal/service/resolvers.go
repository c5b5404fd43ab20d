package service

import (
	"context"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/jwt"
)

// JWTResolver verifies tokens locally with the platform's signing secret.
type JWTResolver struct {
	jwt *jwt.Service
}

func NewJWTResolver(svc *jwt.Service) *JWTResolver {
	return &JWTResolver{jwt: svc}
}

func (r *JWTResolver) ResolveUser(_ context.Context, token string) (*models.User, error) {
	claims, err := r.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: claims.UserID(), Email: claims.Email}, nil
}

// UserLookup is the identity API call that resolves a token.
type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
}

// IdentityResolver asks the identity API who owns the token.
type IdentityResolver struct {
	identity UserLookup
}

func NewIdentityResolver(identity UserLookup) *IdentityResolver {
	return &IdentityResolver{identity: identity}
}

func (r *IdentityResolver) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	return r.identity.GetUser(ctx, token)
}
