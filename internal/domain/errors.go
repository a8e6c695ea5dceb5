package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals a missing entity.
	ErrNotFound = errors.New("auth: not found")
	// ErrConflict signals a uniqueness violation on create/update.
	ErrConflict = errors.New("auth: already exists")
	// ErrInvalidCredentials is the generic login failure. The same error is
	// returned for unknown accounts and wrong passwords so the login path
	// never reveals account existence.
	ErrInvalidCredentials = errors.New("auth: incorrect email or password")
	// ErrTokenInvalid covers bad signatures, malformed payloads, and
	// unknown one-time or refresh tokens.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrTokenExpired signals a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenRevoked signals a refresh token whose revoked flag is set.
	ErrTokenRevoked = errors.New("auth: token revoked")
	// ErrForbidden signals a role gate failure.
	ErrForbidden = errors.New("auth: insufficient role")
	// ErrAccountInactive signals a deactivated account.
	ErrAccountInactive = errors.New("auth: account inactive")
	// ErrEmailUnverified signals a verification-gated action on an
	// unverified account.
	ErrEmailUnverified = errors.New("auth: email not verified")
	// ErrSelfDeactivation rejects an account deactivating itself.
	ErrSelfDeactivation = errors.New("auth: cannot deactivate own account")
)

// RateLimitedError is returned while an account is locked out. RetryAfter
// carries the remaining lockout duration for the client message.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("auth: account locked, try again in %d minutes", e.RetryAfterMinutes())
}

// RetryAfterMinutes rounds the remaining wait up to whole minutes, never
// below one.
func (e *RateLimitedError) RetryAfterMinutes() int {
	minutes := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
