// Package auth orchestrates the OAuth federation bridge.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	oauthadapter "github.com/Gauravpathak1789/Bookly/internal/adapter/oauth"
	"github.com/Gauravpathak1789/Bookly/internal/config"
	"github.com/Gauravpathak1789/Bookly/internal/domain"
	domainoauth "github.com/Gauravpathak1789/Bookly/internal/domain/oauth"
	"github.com/Gauravpathak1789/Bookly/internal/repository"
	"github.com/Gauravpathak1789/Bookly/internal/service"
	"github.com/google/uuid"
)

const stateTTL = 10 * time.Minute

// OAuthService drives a federation flow end to end: state minting, code
// exchange, account resolution, and token issuance.
type OAuthService struct {
	provider oauthadapter.Client
	states   repository.OAuthStateStore
	users    repository.UserRepository
	auth     *service.AuthService
	cfg      config.Config
	logger   *zap.Logger
}

// NewOAuthService wires the federation bridge.
func NewOAuthService(provider oauthadapter.Client, states repository.OAuthStateStore, users repository.UserRepository, authService *service.AuthService, cfg config.Config, logger *zap.Logger) *OAuthService {
	return &OAuthService{
		provider: provider,
		states:   states,
		users:    users,
		auth:     authService,
		cfg:      cfg,
		logger:   logger,
	}
}

// StartLogin mints a single-use state token and returns the provider
// redirect URL.
func (s *OAuthService) StartLogin(ctx context.Context) (string, error) {
	if s.cfg.GitHubClientID == "" || s.cfg.GitHubClientSecret == "" {
		return "", domainoauth.ErrNotConfigured
	}

	state, err := secureRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	if err := s.states.Save(ctx, state, stateTTL); err != nil {
		return "", fmt.Errorf("persist state: %w", err)
	}
	return s.provider.AuthorizeURL(state), nil
}

// HandleCallback completes the flow and returns the frontend redirect URL
// with the issued tokens embedded as query parameters. The state is
// consumed before anything else; a replayed or unknown state fails closed.
func (s *OAuthService) HandleCallback(ctx context.Context, code, state string) (string, error) {
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return "", fmt.Errorf("consume state: %w", err)
	}
	if !ok {
		return "", domainoauth.ErrInvalidState
	}

	providerToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", domainoauth.ErrExchangeFailed, err)
	}

	identity, err := s.provider.FetchIdentity(ctx, providerToken)
	if err != nil {
		if errors.Is(err, domainoauth.ErrNoVerifiedEmail) {
			return "", err
		}
		s.logger.Warn("oauth identity fetch failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", domainoauth.ErrExchangeFailed, err)
	}

	account, err := s.resolveAccount(ctx, identity)
	if err != nil {
		return "", err
	}

	pair, err := s.auth.IssueTokens(ctx, account, "OAuth GitHub")
	if err != nil {
		return "", err
	}

	s.logger.Info("audit",
		zap.String("event", "oauth.login.success"),
		zap.String("user_id", account.ID.String()),
		zap.String("provider_id", identity.ProviderID),
	)

	params := url.Values{}
	params.Set("access_token", pair.AccessToken)
	params.Set("refresh_token", pair.RefreshToken)
	return s.cfg.FrontendURL + "/auth/callback?" + params.Encode(), nil
}

// resolveAccount finds the account by the provider's primary email, or
// creates a verified passwordless one. A colliding preferred username gets
// a random suffix instead of failing the flow.
func (s *OAuthService) resolveAccount(ctx context.Context, identity domainoauth.Identity) (domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))

	account, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, err
	}

	username := identity.Login
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		suffix, serr := secureRandomString(4)
		if serr != nil {
			return domain.Account{}, fmt.Errorf("generate username suffix: %w", serr)
		}
		username = username + "_" + suffix
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, err
	}

	first, last := splitName(identity.Name)
	created, err := s.users.Create(ctx, domain.Account{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		FirstName: first,
		LastName:  last,
		Role:      domain.RoleUser,
		Active:    true,
		// The provider already verified the mailbox.
		Verified: true,
	})
	if err != nil {
		return domain.Account{}, err
	}
	s.logger.Info("audit",
		zap.String("event", "oauth.account.created"),
		zap.String("user_id", created.ID.String()),
		zap.String("username", created.Username),
	)
	return created, nil
}

func splitName(full string) (first, last string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func secureRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
