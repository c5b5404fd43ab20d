package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf16"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
	"nexus-chat/pkg/logger"
)

// Reset outcomes, as counted by the metrics recorder.
const (
	OutcomeSuccess       = "success"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeInvalid       = "invalid"
	OutcomeLocked        = "locked"
	OutcomeWrongPassword = "wrong_password"
	OutcomeUpdateFailed  = "update_failed"
	OutcomeError         = "error"
)

var (
	ErrUnauthorized    = errors.NewUnauthorizedError(errors.CodeInvalidToken, "Unauthorized or invalid token")
	ErrNoEmail         = errors.NewBadRequestError(errors.CodeValidation, "User has no email; cannot reauthenticate")
	ErrMissingCurrent  = errors.NewBadRequestError(errors.CodeValidation, "Missing current_password")
	ErrMissingNew      = errors.NewBadRequestError(errors.CodeValidation, "Missing new_password")
	ErrWrongPassword   = errors.NewUnauthorizedError(errors.CodeBadCredentials, "Current password is incorrect")
	ErrTooManyAttempts = errors.NewTooManyRequestsError(errors.CodeRateLimited, "Too many failed attempts; try again later")
)

// UserResolver turns an access token into the user it was issued to.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (*models.User, error)
}

// CredentialStore verifies and replaces a user's password.
type CredentialStore interface {
	// Verify returns ErrWrongPassword when password does not match.
	Verify(ctx context.Context, user *models.User, password string) error
	Update(ctx context.Context, userID, password string) error
}

// AttemptLimiter counts failed verifications per user within a window.
type AttemptLimiter interface {
	Failures(ctx context.Context, userID string) (int, error)
	RecordFailure(ctx context.Context, userID string) (int, error)
	Clear(ctx context.Context, userID string) error
}

// Recorder counts reset outcomes.
type Recorder interface {
	RecordReset(outcome string)
}

type ResetOptions struct {
	MinPasswordLength int
	MaxFailedAttempts int
}

// PasswordResetService changes the password of the caller, who proves
// knowledge of the current one.
type PasswordResetService struct {
	users    UserResolver
	creds    CredentialStore
	attempts AttemptLimiter
	metrics  Recorder
	opts     ResetOptions
	tracer   trace.Tracer
	log      *logger.Logger
}

func NewPasswordResetService(users UserResolver, creds CredentialStore, attempts AttemptLimiter, metrics Recorder, opts ResetOptions, log *logger.Logger) *PasswordResetService {
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 8
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PasswordResetService{
		users:    users,
		creds:    creds,
		attempts: attempts,
		metrics:  metrics,
		opts:     opts,
		tracer:   otel.Tracer("nexus/password-reset"),
		log:      log,
	}
}

func (s *PasswordResetService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordReset(outcome)
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, errors.GetErrorMessage(err))
}

// Authenticate resolves the caller. Users without an email cannot
// reauthenticate and are rejected here, before the body is read.
func (s *PasswordResetService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "reset.authenticate")
	defer span.End()

	user, err := s.users.ResolveUser(ctx, token)
	if err != nil || user == nil || user.ID == "" {
		s.log.Warn("Failed to get user", "error", err)
		fail(span, ErrUnauthorized)
		s.record(OutcomeUnauthorized)
		return nil, ErrUnauthorized
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	if strings.TrimSpace(user.Email) == "" {
		fail(span, ErrNoEmail)
		s.record(OutcomeInvalid)
		return nil, ErrNoEmail
	}
	return user, nil
}

// ChangePassword validates the request, checks the current password and
// stores the new one.
func (s *PasswordResetService) ChangePassword(ctx context.Context, user *models.User, req models.PasswordResetRequest) error {
	if err := s.validate(req); err != nil {
		s.record(OutcomeInvalid)
		return err
	}

	if err := s.checkLock(ctx, user.ID); err != nil {
		return err
	}

	if err := s.verify(ctx, user, req.CurrentPassword); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "reset.update")
	defer span.End()
	if err := s.creds.Update(ctx, user.ID, req.NewPassword); err != nil {
		s.log.LogError(err, "Password update failed", "user_id", user.ID)
		fail(span, err)
		s.record(OutcomeUpdateFailed)
		if errors.HasCode(err, errors.CodeTransport) {
			return err
		}
		msg := errors.GetErrorMessage(err)
		if msg == "" {
			msg = "Failed to update password"
		}
		return errors.NewBadRequestError(errors.CodeApplication, msg).WithCause(err)
	}

	s.record(OutcomeSuccess)
	s.log.Info("Password updated", "user_id", user.ID)
	return nil
}

// Reset runs Authenticate and ChangePassword.
func (s *PasswordResetService) Reset(ctx context.Context, token string, req models.PasswordResetRequest) error {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	return s.ChangePassword(ctx, user, req)
}

func (s *PasswordResetService) validate(req models.PasswordResetRequest) error {
	if req.CurrentPassword == "" {
		return ErrMissingCurrent
	}
	if req.NewPassword == "" {
		return ErrMissingNew
	}
	if passwordLength(req.NewPassword) < s.opts.MinPasswordLength {
		return errors.NewBadRequestError(errors.CodeValidation, fmt.Sprintf("Password must be at least %d characters", s.opts.MinPasswordLength))
	}
	return nil
}

// passwordLength counts UTF-16 code units, the unit browser clients use
// for the same rule.
func passwordLength(password string) int {
	return len(utf16.Encode([]rune(password)))
}

func (s *PasswordResetService) checkLock(ctx context.Context, userID string) error {
	if s.attempts == nil || s.opts.MaxFailedAttempts <= 0 {
		return nil
	}
	n, err := s.attempts.Failures(ctx, userID)
	if err != nil {
		// the limiter is best effort; a broken store must not block resets
		s.log.Warn("Attempt limiter unavailable", "error", err)
		return nil
	}
	if n >= s.opts.MaxFailedAttempts {
		s.record(OutcomeLocked)
		return ErrTooManyAttempts
	}
	return nil
}

func (s *PasswordResetService) verify(ctx context.Context, user *models.User, password string) error {
	ctx, span := s.tracer.Start(ctx, "reset.verify")
	defer span.End()

	err := s.creds.Verify(ctx, user, password)
	if err == nil {
		if s.attempts != nil {
			if err := s.attempts.Clear(ctx, user.ID); err != nil {
				s.log.Warn("Failed to clear attempts", "error", err)
			}
		}
		return nil
	}

	fail(span, err)
	if !errors.Is(err, ErrWrongPassword) {
		s.log.LogError(err, "Reauthentication failed", "user_id", user.ID)
		s.record(OutcomeError)
		return err
	}

	s.record(OutcomeWrongPassword)
	if s.attempts != nil {
		n, lerr := s.attempts.RecordFailure(ctx, user.ID)
		if lerr != nil {
			s.log.Warn("Failed to record attempt", "error", lerr)
		}
		span.SetAttributes(attribute.Int("reset.failures", n))
	}
	return ErrWrongPassword
}
