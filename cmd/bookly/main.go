package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/Gauravpathak1789/Bookly/internal/adapter/cache"
	oauthadapter "github.com/Gauravpathak1789/Bookly/internal/adapter/oauth"
	"github.com/Gauravpathak1789/Bookly/internal/bootstrap"
	"github.com/Gauravpathak1789/Bookly/internal/config"
	httptransport "github.com/Gauravpathak1789/Bookly/internal/http"
	"github.com/Gauravpathak1789/Bookly/internal/http/handler"
	httpmiddleware "github.com/Gauravpathak1789/Bookly/internal/http/middleware"
	"github.com/Gauravpathak1789/Bookly/internal/jwt"
	"github.com/Gauravpathak1789/Bookly/internal/mail"
	apimiddleware "github.com/Gauravpathak1789/Bookly/internal/middleware"
	"github.com/Gauravpathak1789/Bookly/internal/migrations"
	"github.com/Gauravpathak1789/Bookly/internal/repository"
	"github.com/Gauravpathak1789/Bookly/internal/server"
	"github.com/Gauravpathak1789/Bookly/internal/service"
	authservice "github.com/Gauravpathak1789/Bookly/internal/service/auth"
	"github.com/Gauravpathak1789/Bookly/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newRefreshTokenRepository,
			newBookRepository,
			newOAuthStateStore,
			newOAuthProviderClient,
			newRateLimiter,
			newIssuer,
			newMailSender,
			service.NewAuthService,
			service.NewBookService,
			authservice.NewOAuthService,
			handler.NewAuthHandler,
			handler.NewBookHandler,
			handler.NewOAuthHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

// runMigrations applies embedded goose migrations over a short-lived
// database/sql connection; the pgx pool stays query-only.
func runMigrations(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			db, err := sql.Open("pgx", cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open migration connection: %w", err)
			}
			defer db.Close()

			goose.SetBaseFS(migrations.Migrations)
			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("set goose dialect: %w", err)
			}
			if err := goose.UpContext(ctx, db, "."); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	})
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newRefreshTokenRepository(pool *pgxpool.Pool) repository.RefreshTokenRepository {
	return repository.NewPostgresRefreshTokenRepo(pool)
}

func newBookRepository(pool *pgxpool.Pool) repository.BookRepository {
	return repository.NewPostgresBookRepo(pool)
}

// newOAuthStateStore defaults to the process-local store; REDIS_ADDR
// switches to Redis for multi-instance deployments.
func newOAuthStateStore(lc fx.Lifecycle, cfg config.Config) (repository.OAuthStateStore, error) {
	if cfg.RedisAddr == "" {
		return cacheadapter.NewMemoryStateStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return cacheadapter.NewRedisStateStore(client), nil
}

func newOAuthProviderClient(cfg config.Config) oauthadapter.Client {
	return oauthadapter.NewGitHubClient(&http.Client{Timeout: 10 * time.Second}, cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURI)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newIssuer(cfg config.Config) *jwt.Issuer {
	return jwt.NewIssuer([]byte(cfg.TokenSecret), cfg.TokenAlgorithm, cfg.AccessTokenTTL)
}

func newMailSender(cfg config.Config, logger *zap.Logger) mail.Sender {
	if cfg.SMTPHost == "" {
		return mail.NewLogSender(logger)
	}
	return mail.NewSMTPSender(cfg)
}

func newAuthMiddleware(authService *service.AuthService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{AuthService: authService}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
