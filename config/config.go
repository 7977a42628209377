// Package config loads runtime settings from the environment, reading an
// optional .env file first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalid signals a missing or malformed setting.
var ErrInvalid = errors.New("config: invalid configuration")

const minSecretLength = 32

type Config struct {
	Port          int
	DatabaseURL   string
	JWTSecret     string
	Env           string
	LogLevel      string
	TokenTTL      time.Duration
	BcryptCost    int
	MinPassword   int
	StoreTimeout  time.Duration
	ShutdownGrace time.Duration
	DBMaxConns    int

	RedisURL        string
	LoginRateLimit  int
	LoginRateWindow time.Duration

	AdminEmail    string
	AdminPassword string
	AdminName     string

	MigrateOnStart bool
}

// Production reports whether the service runs in production mode.
func (c Config) Production() bool {
	return c.Env == "production"
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		Port:          r.int("PORT", 5000),
		DatabaseURL:   r.string("DATABASE_URL", ""),
		JWTSecret:     r.raw("JWT_SECRET"),
		Env:           strings.ToLower(r.string("APP_ENV", r.string("NODE_ENV", "development"))),
		LogLevel:      r.string("LOG_LEVEL", "info"),
		TokenTTL:      r.duration("TOKEN_TTL", 24*time.Hour),
		BcryptCost:    r.int("BCRYPT_COST", 12),
		MinPassword:   r.int("MIN_PASSWORD_LENGTH", 6),
		StoreTimeout:  r.duration("STORE_TIMEOUT", 5*time.Second),
		ShutdownGrace: r.duration("SHUTDOWN_GRACE", 10*time.Second),
		DBMaxConns:    r.int("DB_MAX_CONNS", 0),

		RedisURL:        r.string("REDIS_URL", ""),
		LoginRateLimit:  r.int("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: r.duration("LOGIN_RATE_WINDOW", time.Minute),

		AdminEmail:    r.string("ADMIN_EMAIL", ""),
		AdminPassword: r.raw("ADMIN_PASSWORD"),
		AdminName:     r.string("ADMIN_NAME", "HomeLinka Admin"),

		MigrateOnStart: r.bool("MIGRATE_ON_START", false),
	}

	if cfg.DatabaseURL == "" {
		r.fail("DATABASE_URL is required")
	}
	if len(cfg.JWTSecret) < minSecretLength {
		r.fail(fmt.Sprintf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		r.fail(fmt.Sprintf("PORT %d out of range", cfg.Port))
	}
	if cfg.TokenTTL <= 0 || cfg.StoreTimeout <= 0 || cfg.LoginRateWindow <= 0 || cfg.ShutdownGrace < 0 {
		r.fail("durations must be positive")
	}
	if cfg.MinPassword < 1 {
		r.fail("MIN_PASSWORD_LENGTH must be at least 1")
	}
	if cfg.DBMaxConns < 0 {
		r.fail("DB_MAX_CONNS must not be negative")
	}
	if cfg.LoginRateLimit < 0 {
		r.fail("LOGIN_RATE_LIMIT must not be negative")
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		r.fail("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if len(r.problems) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(r.problems, "; "))
	}
	return cfg, nil
}

type reader struct {
	lookup   func(string) (string, bool)
	problems []string
}

func (r *reader) fail(msg string) {
	r.problems = append(r.problems, msg)
}

func (r *reader) raw(key string) string {
	v, _ := r.lookup(key)
	return v
}

func (r *reader) string(key, def string) string {
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func (r *reader) int(key string, def int) int {
	v := r.string(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(fmt.Sprintf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.string(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(fmt.Sprintf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (r *reader) bool(key string, def bool) bool {
	v := r.string(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(fmt.Sprintf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}
