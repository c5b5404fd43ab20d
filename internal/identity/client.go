// Package identity talks to the platform's auth REST API.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/logger"
	"nexus-chat/pkg/middleware"
)

// Client is a thin auth API client. apiKey is sent as the apikey header on
// every request.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
	now     func() time.Time
}

// New creates a client for <baseURL>/auth/v1.
func New(baseURL, apiKey string, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/auth/v1",
		apiKey:  apiKey,
		http:    httpClient,
		log:     log,
		now:     time.Now,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var s models.Session
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", credentials{email, password}, &s); err != nil {
		return nil, err
	}
	s.ReceivedAt = c.now()
	return &s, nil
}

// SignUp registers a user. When the platform requires email confirmation
// the returned session has no access token.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", "", credentials{email, password}, &raw); err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.NoJSON(http.StatusOK)
	}
	if s.AccessToken == "" {
		var u models.User
		if err := json.Unmarshal(raw, &u); err == nil {
			s.User = u
		}
	}
	s.ReceivedAt = c.now()
	return &s, nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	var s models.Session
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &s); err != nil {
		return nil, err
	}
	s.ReceivedAt = c.now()
	return &s, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// GetUser resolves an access token to its user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.NewUnauthorizedError(errors.CodeInvalidToken, "Unauthorized or invalid token")
	}
	return &u, nil
}

// AdminUpdatePassword sets a user's password. The client must have been
// built with the service-role key.
func (c *Client) AdminUpdatePassword(ctx context.Context, userID, password string) error {
	body := map[string]string{"password": password}
	return c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(userID), c.apiKey, body, nil)
}

// apiError covers the error shapes the auth API has used over time.
type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e apiError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Transport(err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Transport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Transport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		msg := apiErr.text()
		if msg == "" {
			msg = fmt.Sprintf("auth request failed with status %d", resp.StatusCode)
		}
		c.log.Debug("Auth API error", "path", path, "status", resp.StatusCode, "message", msg)
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			code := errors.CodeBadCredentials
			if bearer != "" {
				code = errors.CodeInvalidToken
			}
			return errors.NewError(resp.StatusCode, code, msg)
		}
		return errors.HTTPStatus(resp.StatusCode, msg)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NoJSON(resp.StatusCode)
	}
	return nil
}
