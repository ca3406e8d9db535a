package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/config"
	"github.com/craftlab/canvas-gateway/internal/domain"
	"github.com/craftlab/canvas-gateway/internal/mailer"
	pw "github.com/craftlab/canvas-gateway/internal/password"
	"github.com/craftlab/canvas-gateway/internal/repository"
	"github.com/craftlab/canvas-gateway/internal/resolver"
	"github.com/craftlab/canvas-gateway/internal/token"
	"github.com/craftlab/canvas-gateway/internal/verifier"
)

const (
	purposeVerifyEmail   = "verify-email"
	purposeResetPassword = "reset-password"
)

// APIError carries an HTTP status alongside a user-facing message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

func newAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

// LoginResult bundles the issued token with the authenticated user.
type LoginResult struct {
	AccessToken string
	ExpiresIn   int
	User        domain.UserIdentity
}

// AuthService encapsulates the credential flows the gateway terminates
// itself: provider-profile upserts and the local email/password
// lifecycle.
type AuthService struct {
	users     repository.UserRepository
	codes     repository.CodeStore
	resolver  *resolver.Resolver
	tokens    *token.Generator
	mail      mailer.Mailer
	snowflake *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, codes repository.CodeStore, res *resolver.Resolver, tokens *token.Generator, mail mailer.Mailer, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		codes:     codes,
		resolver:  res,
		tokens:    tokens,
		mail:      mail,
		snowflake: node,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/craftlab/canvas-gateway/internal/service"),
	}
}

// GoogleLogin upserts a user from a provider profile payload. Existing
// users are refreshed and their login recorded; unknown identities are
// provisioned. Created reports which path was taken.
func (s *AuthService) GoogleLogin(ctx context.Context, externalID, email, name, image string) (domain.UserIdentity, bool, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GoogleLogin")
	defer span.End()

	if externalID == "" || email == "" {
		return domain.UserIdentity{}, false, newAPIError(http.StatusBadRequest, "externalId and email are required")
	}

	claim := &verifier.Claim{
		Scheme:      verifier.SchemeExternal,
		SubjectID:   externalID,
		Email:       normalizeEmail(email),
		DisplayName: name,
		AvatarURL:   image,
	}
	res, err := s.resolver.Resolve(ctx, claim)
	if err != nil {
		span.RecordError(err)
		return domain.UserIdentity{}, false, err
	}

	if res.Created {
		s.audit("google.login.created", "user_id", res.User.ID)
	} else {
		s.audit("google.login.success", "user_id", res.User.ID)
	}
	return res.User, res.Created, nil
}

// Signup provisions an unverified local account and mails a six-digit
// verification code.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (domain.UserIdentity, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Signup")
	defer span.End()

	normalized := normalizeEmail(email)
	if normalized == "" || password == "" {
		return domain.UserIdentity{}, newAPIError(http.StatusBadRequest, "email and password are required")
	}

	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return domain.UserIdentity{}, newAPIError(http.StatusConflict, "Email already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return domain.UserIdentity{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := pw.Hash(password)
	if err != nil {
		span.RecordError(err)
		return domain.UserIdentity{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.UserIdentity{
		ID:             uuid.NewString(),
		Email:          normalized,
		DisplayName:    name,
		CredentialHash: hash,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.UserIdentity{}, newAPIError(http.StatusConflict, "Email already registered")
		}
		span.RecordError(err)
		return domain.UserIdentity{}, err
	}

	if err := s.issueCode(ctx, purposeVerifyEmail, normalized, s.mail.SendVerificationCode); err != nil {
		span.RecordError(err)
		return domain.UserIdentity{}, err
	}

	s.audit("local.signup", "user_id", user.ID)
	return user, nil
}

// VerifyEmail consumes a verification code and marks the account
// verified.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyEmail")
	defer span.End()

	normalized := normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return newAPIError(http.StatusBadRequest, "Invalid verification code")
	}

	if err := s.codes.Consume(ctx, purposeVerifyEmail, normalized, code); err != nil {
		if errors.Is(err, domain.ErrCodeMismatch) {
			return newAPIError(http.StatusBadRequest, "Invalid verification code")
		}
		span.RecordError(err)
		return err
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		span.RecordError(err)
		return err
	}
	s.audit("local.verify.success", "user_id", user.ID)
	return nil
}

// Login authenticates an email/password pair and issues an access
// token. The login is recorded on the account like any other.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	normalized := normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return LoginResult{}, newAPIError(http.StatusUnauthorized, "Wrong email or password")
	}
	if user.CredentialHash == "" {
		return LoginResult{}, newAPIError(http.StatusUnauthorized, "Wrong email or password")
	}
	if err := pw.Verify(password, user.CredentialHash); err != nil {
		span.RecordError(fmt.Errorf("invalid password"))
		return LoginResult{}, newAPIError(http.StatusUnauthorized, "Wrong email or password")
	}
	if !user.Verified {
		return LoginResult{}, newAPIError(http.StatusForbidden, "Email not verified")
	}

	updated, err := s.users.RecordLogin(ctx, user.ID, domain.ProfileUpdate{}, "", domain.LoginEntry{
		ID:      s.snowflake.Generate().Int64(),
		At:      time.Now().UTC(),
		Message: domain.LoginMessageExisting,
	})
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, err
	}

	raw, err := s.tokens.Sign(updated.ID)
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}

	s.audit("local.login.success", "user_id", updated.ID)
	return LoginResult{
		AccessToken: raw,
		ExpiresIn:   int(s.cfg.AccessTokenTTL.Seconds()),
		User:        updated,
	}, nil
}

// ForgotPassword mails a reset code. Unknown addresses report success
// so the endpoint does not leak which emails are registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	normalized := normalizeEmail(email)
	if _, err := s.users.GetByEmail(ctx, normalized); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.audit("local.forgot.unknown_email", "email", normalized)
			return nil
		}
		span.RecordError(err)
		return err
	}

	if err := s.issueCode(ctx, purposeResetPassword, normalized, s.mail.SendPasswordResetCode); err != nil {
		span.RecordError(err)
		return err
	}
	s.audit("local.forgot.issued", "email", normalized)
	return nil
}

// ResetPassword consumes a reset code and installs a new credential.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	normalized := normalizeEmail(email)
	if newPassword == "" {
		return newAPIError(http.StatusBadRequest, "password is required")
	}
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return newAPIError(http.StatusBadRequest, "Invalid reset code")
	}

	if err := s.codes.Consume(ctx, purposeResetPassword, normalized, code); err != nil {
		if errors.Is(err, domain.ErrCodeMismatch) {
			return newAPIError(http.StatusBadRequest, "Invalid reset code")
		}
		span.RecordError(err)
		return err
	}

	hash, err := pw.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetCredentialHash(ctx, user.ID, hash); err != nil {
		span.RecordError(err)
		return err
	}
	s.audit("local.reset.success", "user_id", user.ID)
	return nil
}

func (s *AuthService) issueCode(ctx context.Context, purpose, email string, send func(context.Context, string, string) error) error {
	code, err := sixDigitCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := s.codes.Save(ctx, purpose, email, code, s.cfg.VerificationCodeTTL); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	if err := send(ctx, email, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sixDigitCode() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint64(buf[:]) % 1000000
	return fmt.Sprintf("%06d", n), nil
}
