package oauth

import "errors"

var (
	// ErrNotConfigured signals the provider client id/secret are missing.
	ErrNotConfigured = errors.New("oauth: provider not configured")
	// ErrInvalidState indicates the callback state token is unknown or
	// already consumed.
	ErrInvalidState = errors.New("oauth: invalid state")
	// ErrExchangeFailed indicates the authorization-code exchange with the
	// provider failed.
	ErrExchangeFailed = errors.New("oauth: code exchange failed")
	// ErrNoVerifiedEmail indicates the provider returned no usable primary
	// email for the identity.
	ErrNoVerifiedEmail = errors.New("oauth: no primary email from provider")
)
