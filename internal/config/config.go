package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment     string
	HTTPPort        string
	ServiceName     string
	DatabaseURL     string
	ShutdownTimeout time.Duration

	// Access-token signing.
	TokenSecret    string
	TokenAlgorithm string
	AccessTokenTTL time.Duration

	// Refresh-token ledger.
	RefreshTokenTTL   time.Duration
	RefreshTokenBytes int

	// One-time token workflow.
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration

	// Login guardrail.
	LoginMaxAttempts   int
	LoginAttemptWindow time.Duration
	LockoutDuration    time.Duration

	// Outbound email. SMTP is optional; when Host is empty deliveries are
	// logged instead of sent.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailFromName string

	// GitHub federation.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURI  string

	// Base URL for links embedded in emails and for OAuth result redirects.
	FrontendURL string

	// Optional Redis-backed OAuth state store for multi-instance
	// deployments. Empty means the process-local in-memory store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Optional admin bootstrap. Skipped when either value is empty.
	AdminEmail    string
	AdminPassword string

	RateLimitRPM       int
	TelemetryEndpoint  string
	TelemetryInsecure  bool
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:     getEnv("APP_ENV", "development"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ServiceName:     getEnv("SERVICE_NAME", "bookly"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		TokenSecret:    os.Getenv("TOKEN_SECRET"),
		TokenAlgorithm: getEnv("TOKEN_ALGORITHM", "HS256"),
		AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", 30*time.Minute),

		RefreshTokenTTL:   getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		RefreshTokenBytes: getInt("REFRESH_TOKEN_BYTES", 64),

		VerificationTokenTTL: getDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		ResetTokenTTL:        getDuration("RESET_TOKEN_TTL", time.Hour),

		LoginMaxAttempts:   getInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginAttemptWindow: getDuration("LOGIN_ATTEMPT_WINDOW", 15*time.Minute),
		LockoutDuration:    getDuration("LOCKOUT_DURATION", 30*time.Minute),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "noreply@bookly.com"),
		MailFromName: getEnv("MAIL_FROM_NAME", "Bookly"),

		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubRedirectURI:  getEnv("GITHUB_REDIRECT_URI", "http://localhost:8080/oauth/github/callback"),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("TOKEN_SECRET is required")
	}
	if cfg.TokenAlgorithm != "HS256" && cfg.TokenAlgorithm != "HS384" && cfg.TokenAlgorithm != "HS512" {
		return Config{}, fmt.Errorf("TOKEN_ALGORITHM must be an HMAC algorithm")
	}
	if cfg.RefreshTokenBytes < 32 {
		cfg.RefreshTokenBytes = 32
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
