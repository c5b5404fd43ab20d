package platform

import (
	"context"
	"net/http"

	"nexus-chat/internal/models"
)

// ResetPassword changes the signed-in user's password after the function
// re-verifies the current one.
func (c *Client) ResetPassword(ctx context.Context, current, next string) (string, error) {
	var out models.PasswordResetResponse
	body := models.PasswordResetRequest{CurrentPassword: current, NewPassword: next}
	if err := c.call(ctx, http.MethodPost, c.endpoints.PasswordReset, body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
