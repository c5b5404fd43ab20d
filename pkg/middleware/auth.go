package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"nexus-chat/pkg/errors"
)

// AccessTokenKey is where RequireBearer stores the raw token.
const AccessTokenKey = "accessToken"

// RequireBearer rejects requests without a bearer token. Verification is
// left to the handler, which knows which identity backend to ask.
func RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}
		c.Set(AccessTokenKey, token)
		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value: the
// second space-separated field, whatever the scheme word is.
func BearerToken(header string) (string, *errors.AppError) {
	if header == "" {
		return "", errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authorization header required")
	}
	parts := strings.Split(header, " ")
	if len(parts) < 2 || parts[1] == "" {
		return "", errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authorization token missing")
	}
	return parts[1], nil
}
