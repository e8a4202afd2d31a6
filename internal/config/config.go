// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        // e.g. "8080"
	Env          string        // "development" | "production"
	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 10s
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// RedisConfig holds live bid store connection settings.
type RedisConfig struct {
	Addr     string // default "localhost:6379"
	Password string
	DB       int
}

// AuctionConfig holds lifecycle and bidding tunables.
type AuctionConfig struct {
	// Timezone is the single civil timezone every auction schedule lives in.
	Timezone string // default "Asia/Seoul"
	// SweepInterval is the cadence of the lifecycle sweep.
	SweepInterval time.Duration // default 1m
	// SweepLeaseTTL bounds how long a crashed sweeper blocks the next one.
	SweepLeaseTTL time.Duration // default 2m
	// BidMaxRetries bounds the read-check-write retry cycle when a
	// conditional bid write loses a race.
	BidMaxRetries int // default 3
	// SuggestedIncrement is the UI bidding step hint.  The protocol floor
	// stays "strictly greater than current price" regardless.
	SuggestedIncrement int64 // default 1000 (KRW)
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	Auction AuctionConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	if c.IsProd() && os.Getenv("DATABASE_DSN") == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}
	if _, err := time.LoadLocation(c.Auction.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("AUCTION_TIMEZONE %q is not a valid IANA zone: %w", c.Auction.Timezone, err))
	}
	if c.Auction.SweepInterval <= 0 {
		errs = append(errs, errors.New("AUCTION_SWEEP_INTERVAL must be positive"))
	}
	if c.Auction.SweepLeaseTTL < c.Auction.SweepInterval {
		errs = append(errs, fmt.Errorf(
			"AUCTION_SWEEP_LEASE_TTL (%s) must be at least the sweep interval (%s)",
			c.Auction.SweepLeaseTTL, c.Auction.SweepInterval))
	}
	if c.Auction.BidMaxRetries < 1 {
		errs = append(errs, errors.New("AUCTION_BID_MAX_RETRIES must be at least 1"))
	}
	if c.Auction.SuggestedIncrement < 1 {
		errs = append(errs, errors.New("AUCTION_SUGGESTED_INCREMENT must be at least 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:         getEnv("SERVER_PORT", "8080"),
		Env:          getEnv("ENVIRONMENT", "development"),
		ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "fish_in_water"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// ── Auction ───────────────────────────────────────────────────────────────
	bidRetries, err := getInt("AUCTION_BID_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("AUCTION_BID_MAX_RETRIES: %w", err)
	}
	increment, err := getInt("AUCTION_SUGGESTED_INCREMENT", 1000)
	if err != nil {
		return nil, fmt.Errorf("AUCTION_SUGGESTED_INCREMENT: %w", err)
	}
	cfg.Auction = AuctionConfig{
		Timezone:           getEnv("AUCTION_TIMEZONE", "Asia/Seoul"),
		SweepInterval:      getDuration("AUCTION_SWEEP_INTERVAL", time.Minute),
		SweepLeaseTTL:      getDuration("AUCTION_SWEEP_LEASE_TTL", 2*time.Minute),
		BidMaxRetries:      bidRetries,
		SuggestedIncrement: int64(increment),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// getDuration parses an env var as a Go duration string (e.g. "1m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
