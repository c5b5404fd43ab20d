// Package platform wraps the hosted backend's serverless functions. Every
// method attaches the caller's bearer token and maps failures onto the
// shared error codes.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nexus-chat/pkg/config"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/logger"
	"nexus-chat/pkg/resilience"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 8 << 20

// TokenSource yields the current access token or an AUTH_REQUIRED error.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures a Client.
type Options struct {
	Endpoints  config.Endpoints
	AnonKey    string
	Tokens     TokenSource
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	Logger     *logger.Logger
}

// Client calls the platform functions.
type Client struct {
	endpoints config.Endpoints
	anonKey   string
	tokens    TokenSource
	http      *http.Client
	breaker   *resilience.CircuitBreaker
	log       *logger.Logger
}

// New creates a Client. A nil breaker gets the default one.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Breaker == nil {
		cfg := resilience.DefaultConfig("platform")
		cfg.Trip = Retryable
		opts.Breaker = resilience.New(cfg, opts.Logger)
	}
	return &Client{
		endpoints: opts.Endpoints,
		anonKey:   opts.AnonKey,
		tokens:    opts.Tokens,
		http:      opts.HTTPClient,
		breaker:   opts.Breaker,
		log:       opts.Logger,
	}
}

// Retryable reports whether err says the platform itself is unhealthy, as
// opposed to the request being refused.
func Retryable(err error) bool {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return true
	}
	switch appErr.Code {
	case errors.CodeTransport:
		return true
	case errors.CodeHTTPStatus, errors.CodeNoJSON:
		return appErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// envelope captures the fields every function may use to report failure.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
	Message string `json:"message"`
}

func (e envelope) failure() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Details
}

// call performs one authenticated JSON request and decodes the body into out.
func (c *Client) call(ctx context.Context, method, url string, in, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var payload []byte
	if in != nil {
		if payload, err = json.Marshal(in); err != nil {
			return errors.NewBadRequestError(errors.CodeValidation, err.Error())
		}
	}

	var body []byte
	var status int
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return errors.Transport(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.anonKey != "" {
			req.Header.Set("apikey", c.anonKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errors.Transport(err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return errors.Transport(err)
		}
		return checkStatus(status, body)
	})
	if err != nil {
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			return errors.NewError(http.StatusServiceUnavailable, errors.CodeCircuitOpen, "Service temporarily unavailable").WithCause(err)
		}
		c.log.Debug("Platform call failed", "method", method, "url", url, "status", status, "error", err.Error())
		return err
	}

	return decode(status, body, out)
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", errors.NotAuthenticated()
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.HasCode(err, errors.CodeAuthRequired) {
			return "", err
		}
		return "", errors.NotAuthenticated().WithCause(err)
	}
	if token == "" {
		return "", errors.NotAuthenticated()
	}
	return token, nil
}

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.NoJSON(status)
	}
	return errors.HTTPStatus(status, env.failure())
}

func decode(status int, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		if out == nil {
			return nil
		}
		return errors.NoJSON(status)
	}
	if !json.Valid(body) {
		return errors.NoJSON(status)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Success != nil && !*env.Success {
		return errors.Application(env.failure())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewError(status, errors.CodeNoJSON, fmt.Sprintf("unexpected response: %v", err))
	}
	return nil
}
