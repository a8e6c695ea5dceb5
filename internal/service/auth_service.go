package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Gauravpathak1789/Bookly/internal/config"
	"github.com/Gauravpathak1789/Bookly/internal/domain"
	"github.com/Gauravpathak1789/Bookly/internal/jwt"
	"github.com/Gauravpathak1789/Bookly/internal/mail"
	pw "github.com/Gauravpathak1789/Bookly/internal/password"
	"github.com/Gauravpathak1789/Bookly/internal/repository"
)

// TokenPair is the login/refresh response body.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// RegisterInput carries validated registration fields.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

const oneTimeTokenBytes = 32

// AuthService encapsulates account lifecycle and credential flows.
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.RefreshTokenRepository
	snowflake *snowflake.Node
	issuer    *jwt.Issuer
	sender    mail.Sender
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, tokens repository.RefreshTokenRepository, snowflake *snowflake.Node, issuer *jwt.Issuer, sender mail.Sender, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		snowflake: snowflake,
		issuer:    issuer,
		sender:    sender,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/Gauravpathak1789/Bookly/internal/service"),
	}
}

// Register creates an unverified account and mails a verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.Account, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	hash, err := pw.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	token := randomString(oneTimeTokenBytes)
	expiry := time.Now().UTC().Add(s.cfg.VerificationTokenTTL)

	account := domain.Account{
		ID:                      uuid.New(),
		Username:                strings.TrimSpace(in.Username),
		Email:                   normalizeEmail(in.Email),
		PasswordHash:            hash,
		FirstName:               strings.TrimSpace(in.FirstName),
		LastName:                strings.TrimSpace(in.LastName),
		Role:                    domain.RoleUser,
		Active:                  true,
		Verified:                false,
		VerificationToken:       &token,
		VerificationTokenExpiry: &expiry,
	}

	created, err := s.users.Create(ctx, account)
	if err != nil {
		span.RecordError(err)
		return domain.Account{}, err
	}

	s.deliver(mail.VerificationEmail(created.Email, created.Username, token, s.cfg.FrontendURL, s.cfg.VerificationTokenTTL))
	s.audit("register.success", "user_id", created.ID, "email", created.Email)
	return created, nil
}

// Login authenticates with email and password under the lockout guardrail.
// Guardrail state is mutated inside a row lock so concurrent attempts for
// the same account serialize; failed-attempt counters persist even though
// the call returns an error.
func (s *AuthService) Login(ctx context.Context, email, password, deviceInfo string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	account, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Unknown accounts get the same generic failure as a wrong
			// password and never touch guardrail state.
			return nil, domain.ErrInvalidCredentials
		}
		span.RecordError(err)
		return nil, err
	}

	locked, err := s.users.WithLock(ctx, account.ID, func(a *domain.Account) error {
		now := time.Now().UTC()

		if a.LockedUntil != nil {
			if now.Before(*a.LockedUntil) {
				return &domain.RateLimitedError{RetryAfter: a.LockedUntil.Sub(now)}
			}
			a.LockedUntil = nil
			a.FailedLoginAttempts = 0
		}

		if a.LastFailedLogin != nil && now.Sub(*a.LastFailedLogin) > s.cfg.LoginAttemptWindow {
			a.FailedLoginAttempts = 0
		}

		if a.FailedLoginAttempts >= s.cfg.LoginMaxAttempts {
			until := now.Add(s.cfg.LockoutDuration)
			a.LockedUntil = &until
			return &domain.RateLimitedError{RetryAfter: s.cfg.LockoutDuration}
		}

		valid, verr := pw.Verify(password, a.PasswordHash)
		if verr != nil || !valid {
			a.FailedLoginAttempts++
			a.LastFailedLogin = &now
			if a.FailedLoginAttempts >= s.cfg.LoginMaxAttempts {
				until := now.Add(s.cfg.LockoutDuration)
				a.LockedUntil = &until
			}
			return domain.ErrInvalidCredentials
		}

		if !a.Active {
			return domain.ErrAccountInactive
		}

		a.FailedLoginAttempts = 0
		a.LastFailedLogin = nil
		a.LockedUntil = nil
		return nil
	})
	if err != nil {
		s.audit("login.failure", "user_id", account.ID, "reason", err.Error())
		return nil, err
	}

	pair, err := s.IssueTokens(ctx, locked, deviceInfo)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("login.success", "user_id", account.ID)
	return pair, nil
}

// IssueTokens mints an access token and persists a fresh refresh token.
// Shared by password login and the OAuth callback.
func (s *AuthService) IssueTokens(ctx context.Context, account domain.Account, deviceInfo string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.IssueTokens")
	defer span.End()

	access, err := s.issuer.Issue(account.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh := randomString(s.cfg.RefreshTokenBytes)
	record := domain.RefreshToken{
		ID:         s.snowflake.Generate().Int64(),
		Token:      refresh,
		AccountID:  account.ID,
		ExpiresAt:  time.Now().UTC().Add(s.cfg.RefreshTokenTTL),
		DeviceInfo: deviceInfo,
	}
	if _, err := s.tokens.Create(ctx, record); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token itself is not rotated; it stays valid until expiry or
// revocation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if refreshToken == "" {
		return nil, domain.ErrTokenInvalid
	}

	stored, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		span.RecordError(err)
		return nil, err
	}
	if stored.Revoked {
		return nil, domain.ErrTokenRevoked
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, domain.ErrTokenExpired
	}

	account, err := s.users.GetByID(ctx, stored.AccountID)
	if err != nil || !account.Active {
		return nil, domain.ErrTokenInvalid
	}

	access, err := s.issuer.Issue(account.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.audit("refresh.success", "user_id", account.ID)
	return &TokenPair{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the caller's refresh token. Unknown tokens and tokens
// owned by other accounts are ignored so the endpoint leaks nothing.
func (s *AuthService) Logout(ctx context.Context, accountID uuid.UUID, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	stored, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		span.RecordError(err)
		return err
	}
	if stored.AccountID != accountID {
		return nil
	}
	if err := s.tokens.Revoke(ctx, stored.ID); err != nil {
		span.RecordError(err)
		return err
	}
	s.audit("logout.success", "user_id", accountID)
	return nil
}

// VerifyEmail redeems a verification token. The token slot is cleared on
// success so it is single-use.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyEmail")
	defer span.End()

	account, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		span.RecordError(err)
		return err
	}
	if account.VerificationTokenExpiry == nil || time.Now().After(*account.VerificationTokenExpiry) {
		return domain.ErrTokenExpired
	}

	account.Verified = true
	account.VerificationToken = nil
	account.VerificationTokenExpiry = nil
	if _, err := s.users.Update(ctx, account); err != nil {
		span.RecordError(err)
		return err
	}
	s.audit("verify_email.success", "user_id", account.ID)
	return nil
}

// ResendVerification issues a fresh verification token. Unknown emails are
// silently accepted so the endpoint never reveals account existence; a new
// token overwrites any previous one, invalidating it.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ResendVerification")
	defer span.End()

	account, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		span.RecordError(err)
		return err
	}
	if account.Verified {
		// Same generic acknowledgement as a real send, so the response
		// never reveals verification status either.
		return nil
	}

	token := randomString(oneTimeTokenBytes)
	expiry := time.Now().UTC().Add(s.cfg.VerificationTokenTTL)
	account.VerificationToken = &token
	account.VerificationTokenExpiry = &expiry
	if _, err := s.users.Update(ctx, account); err != nil {
		span.RecordError(err)
		return err
	}

	s.deliver(mail.VerificationEmail(account.Email, account.Username, token, s.cfg.FrontendURL, s.cfg.VerificationTokenTTL))
	s.audit("resend_verification.success", "user_id", account.ID)
	return nil
}

// ForgotPassword issues a reset token and mails the link. Unknown emails
// return nil so callers can answer identically either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	account, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		span.RecordError(err)
		return err
	}

	token := randomString(oneTimeTokenBytes)
	expiry := time.Now().UTC().Add(s.cfg.ResetTokenTTL)
	account.ResetToken = &token
	account.ResetTokenExpiry = &expiry
	if _, err := s.users.Update(ctx, account); err != nil {
		span.RecordError(err)
		return err
	}

	s.deliver(mail.PasswordResetEmail(account.Email, account.Username, token, s.cfg.FrontendURL, s.cfg.ResetTokenTTL))
	s.audit("forgot_password.requested", "user_id", account.ID)
	return nil
}

// ResetPassword redeems a reset token, replaces the password, and clears
// guardrail counters so a locked-out owner regains access immediately.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	account, err := s.users.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		span.RecordError(err)
		return err
	}
	if account.ResetTokenExpiry == nil || time.Now().After(*account.ResetTokenExpiry) {
		return domain.ErrTokenExpired
	}

	hash, err := pw.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}

	account.PasswordHash = hash
	account.ResetToken = nil
	account.ResetTokenExpiry = nil
	account.FailedLoginAttempts = 0
	account.LastFailedLogin = nil
	account.LockedUntil = nil
	if _, err := s.users.Update(ctx, account); err != nil {
		span.RecordError(err)
		return err
	}

	s.deliver(mail.PasswordChangedEmail(account.Email, account.Username))
	s.audit("reset_password.success", "user_id", account.ID)
	return nil
}

// ChangePassword replaces the password for an authenticated account after
// re-verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, accountID uuid.UUID, oldPassword, newPassword string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	account, err := s.users.GetByID(ctx, accountID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	valid, err := pw.Verify(oldPassword, account.PasswordHash)
	if err != nil || !valid {
		return domain.ErrInvalidCredentials
	}

	hash, err := pw.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}
	account.PasswordHash = hash
	if _, err := s.users.Update(ctx, account); err != nil {
		span.RecordError(err)
		return err
	}

	s.deliver(mail.PasswordChangedEmail(account.Email, account.Username))
	s.audit("change_password.success", "user_id", account.ID)
	return nil
}

// Authenticate resolves a bearer token to a live account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Account, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return domain.Account{}, err
	}
	account, err := s.users.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, domain.ErrTokenInvalid
		}
		return domain.Account{}, err
	}
	return account, nil
}

// GetAccount loads an account by id.
func (s *AuthService) GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return s.users.GetByID(ctx, id)
}

// ListAccounts pages through accounts. Admin only.
func (s *AuthService) ListAccounts(ctx context.Context, actor domain.Account, offset, limit int) ([]domain.Account, error) {
	if !actor.Role.Meets(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, offset, limit)
}

// SetRole changes an account's role. Admin only.
func (s *AuthService) SetRole(ctx context.Context, actor domain.Account, id uuid.UUID, role domain.Role) (domain.Account, error) {
	ctx, span := s.startSpan(ctx, "AuthService.SetRole")
	defer span.End()

	if !actor.Role.Meets(domain.RoleAdmin) {
		return domain.Account{}, domain.ErrForbidden
	}
	account, err := s.users.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return domain.Account{}, err
	}
	account.Role = role
	updated, err := s.users.Update(ctx, account)
	if err != nil {
		span.RecordError(err)
		return domain.Account{}, err
	}
	s.audit("set_role.success", "actor_id", actor.ID, "user_id", id, "role", role)
	return updated, nil
}

// Deactivate disables an account. Moderator or admin; accounts cannot
// deactivate themselves.
func (s *AuthService) Deactivate(ctx context.Context, actor domain.Account, id uuid.UUID) error {
	ctx, span := s.startSpan(ctx, "AuthService.Deactivate")
	defer span.End()

	if !actor.Role.Meets(domain.RoleModerator) {
		return domain.ErrForbidden
	}
	if actor.ID == id {
		return domain.ErrSelfDeactivation
	}
	account, err := s.users.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	account.Active = false
	if _, err := s.users.Update(ctx, account); err != nil {
		span.RecordError(err)
		return err
	}
	s.audit("deactivate.success", "actor_id", actor.ID, "user_id", id)
	return nil
}

// deliver sends mail without blocking the request. Failures are logged;
// the triggering operation has already succeeded.
func (s *AuthService) deliver(msg mail.Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.sender.Send(ctx, msg); err != nil {
			s.log().Warn("email delivery failed", zap.String("to", msg.To), zap.Error(err))
		}
	}()
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

func randomString(n int) string {
	if n <= 0 {
		n = 64
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
