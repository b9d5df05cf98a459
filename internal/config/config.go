package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, parsed from the environment once at
// startup.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Session   SessionConfig
	Email     EmailConfig
	Google    OAuthProviderConfig    `envPrefix:"LEXORA_GOOGLE_"`
	Microsoft OAuthProviderConfig    `envPrefix:"LEXORA_MICROSOFT_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `env:"LEXORA_ADDR" envDefault:":8080"`
	BaseURL         string        `env:"LEXORA_BASE_URL" envDefault:"http://localhost:8080"`
	FrontendURL     string        `env:"LEXORA_FRONTEND_URL" envDefault:"http://localhost:3000"`
	ReadTimeout     time.Duration `env:"LEXORA_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"LEXORA_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"LEXORA_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"LEXORA_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimitPerSec int           `env:"LEXORA_RATE_LIMIT_PER_SEC" envDefault:"10"`
	RateLimitBurst  int           `env:"LEXORA_RATE_LIMIT_BURST" envDefault:"20"`
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	DSN             string        `env:"LEXORA_PG_DSN"`
	MaxOpenConns    int           `env:"LEXORA_PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"LEXORA_PG_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"LEXORA_PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// AuthConfig holds token lifetimes and the JWT signing secret.
type AuthConfig struct {
	JWTSecret    string        `env:"LEXORA_JWT_SECRET"`
	AccessTTL    time.Duration `env:"LEXORA_ACCESS_TTL" envDefault:"24h"`
	RefreshTTL   time.Duration `env:"LEXORA_REFRESH_TTL" envDefault:"168h"`
	MagicLinkTTL time.Duration `env:"LEXORA_MAGIC_LINK_TTL" envDefault:"15m"`
	DedupeWindow time.Duration `env:"LEXORA_MAGIC_LINK_DEDUPE_WINDOW" envDefault:"5m"`
	RedirectURL  string        `env:"LEXORA_POST_LOGIN_REDIRECT" envDefault:"/dashboard"`
}

// SessionConfig holds server-side session settings.
type SessionConfig struct {
	CookieName string        `env:"LEXORA_SESSION_COOKIE" envDefault:"lexora_sid"`
	TTL        time.Duration `env:"LEXORA_SESSION_TTL" envDefault:"24h"`
	Secure     bool          `env:"LEXORA_SESSION_SECURE" envDefault:"false"`
}

// EmailConfig holds SMTP delivery settings for magic link mail.
type EmailConfig struct {
	From     string `env:"LEXORA_EMAIL_FROM" envDefault:"noreply@lexora.io"`
	Host     string `env:"LEXORA_EMAIL_HOST"`
	Port     int    `env:"LEXORA_EMAIL_PORT" envDefault:"587"`
	Username string `env:"LEXORA_EMAIL_USER"`
	Password string `env:"LEXORA_EMAIL_PASS"`
}

// OAuthProviderConfig holds per-provider OAuth settings. A provider is active
// only when its required values are all present; absence omits the provider
// rather than failing startup.
type OAuthProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Tenant       string `env:"TENANT_ID"`
}

// Load parses configuration from environment variables and applies defensive
// defaults. Magic link and session lifetimes are security-sensitive, so they
// stay predictable even when the environment carries zero values.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if cfg.Auth.MagicLinkTTL <= 0 {
		cfg.Auth.MagicLinkTTL = 15 * time.Minute
	}
	if cfg.Auth.DedupeWindow <= 0 {
		cfg.Auth.DedupeWindow = 5 * time.Minute
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: LEXORA_JWT_SECRET is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: LEXORA_PG_DSN is required")
	}
	return nil
}
