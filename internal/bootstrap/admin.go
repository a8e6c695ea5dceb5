// Package bootstrap runs one-time startup tasks.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Gauravpathak1789/Bookly/internal/config"
	"github.com/Gauravpathak1789/Bookly/internal/domain"
	"github.com/Gauravpathak1789/Bookly/internal/password"
	"github.com/Gauravpathak1789/Bookly/internal/repository"
)

// EnsureAdmin creates an admin account at startup when ADMIN_EMAIL and
// ADMIN_PASSWORD are set. A no-op when unset or when the account exists.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, logger *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	account, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		if account.Role == domain.RoleAdmin {
			return nil
		}
		account.Role = domain.RoleAdmin
		if _, err := users.Update(ctx, account); err != nil {
			return fmt.Errorf("bootstrap promote admin: %w", err)
		}
		logger.Info("admin bootstrap: promoted existing account", zap.String("user_id", account.ID.String()))
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup admin: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := users.Create(ctx, domain.Account{
		ID:           uuid.New(),
		Username:     "admin",
		Email:        cfg.AdminEmail,
		PasswordHash: hashed,
		Role:         domain.RoleAdmin,
		Active:       true,
		Verified:     true,
	})
	if err != nil {
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	logger.Info("admin bootstrap: created account", zap.String("user_id", created.ID.String()))
	return nil
}
