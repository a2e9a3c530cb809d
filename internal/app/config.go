package app

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime configuration, loaded once at startup and
// passed by value into components. The secrets it carries (token keys,
// pepper, cookie key) are never mutated after load.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	Migrate     bool

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	PasswordPepper string
	CookieKeyHex   string
	CookieSecure   bool

	// SessionHashKey switches the session registry from plain SHA-256 token
	// digests to HMAC-SHA256 under this key. Optional.
	SessionHashKey string

	HashWorkers int
}

// LoadConfig loads Config from environment variables with defaults. A .env
// file is honored in dev.
func LoadConfig() Config {
	if EnvString("ENV", "") == "dev" {
		_ = godotenv.Load()
	}

	return Config{
		HTTPAddr: EnvString("NANOCHAT_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("NANOCHAT_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("NANOCHAT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("NANOCHAT_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("NANOCHAT_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("NANOCHAT_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("NANOCHAT_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("NANOCHAT_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("NANOCHAT_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("NANOCHAT_DB_MIN_CONNS", 0),
		Migrate:     EnvBool("NANOCHAT_DB_MIGRATE", true),

		AccessTokenSecret:  EnvString("NANOCHAT_ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: EnvString("NANOCHAT_REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     EnvDuration("NANOCHAT_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    EnvDuration("NANOCHAT_REFRESH_TOKEN_TTL", 30*24*time.Hour),

		PasswordPepper: EnvString("NANOCHAT_PASSWORD_PEPPER", ""),
		CookieKeyHex:   EnvString("NANOCHAT_COOKIE_KEY", ""),
		CookieSecure:   EnvBool("NANOCHAT_COOKIE_SECURE", true),
		SessionHashKey: EnvString("NANOCHAT_SESSION_HASH_KEY", ""),

		HashWorkers: EnvInt("NANOCHAT_HASH_WORKERS", 4),
	}
}

// Validate checks the parts of the config that must not fall back to
// defaults.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: NANOCHAT_DATABASE_URL is required")
	}
	if len(c.AccessTokenSecret) < 32 || len(c.RefreshTokenSecret) < 32 {
		return fmt.Errorf("config: token secrets must be at least 32 bytes")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("config: access and refresh token secrets must differ")
	}
	if c.PasswordPepper == "" {
		return fmt.Errorf("config: NANOCHAT_PASSWORD_PEPPER is required")
	}
	if _, err := c.CookieKey(); err != nil {
		return err
	}
	return nil
}

// CookieKey decodes the 32-byte cookie encryption key.
func (c Config) CookieKey() ([]byte, error) {
	key, err := hex.DecodeString(c.CookieKeyHex)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("config: NANOCHAT_COOKIE_KEY must be 32 bytes hex-encoded")
	}
	return key, nil
}
