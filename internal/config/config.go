// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"inakat/lifecycle-service/internal/lifecycle"
)

// Config holds all runtime configuration for the lifecycle service.
type Config struct {
	Port             string
	GRPCPort         string
	DatabaseURL      string
	RedisURL         string
	AssignmentPolicy lifecycle.AssignmentPolicy
	RetrySpec        string // cron spec for the dispatch retry sweep
	MaxAttempts      int
	DedupTTL         time.Duration
	InMemory         bool
}

// Load reads environment variables (after an optional .env file) and returns
// a validated Config. Postgres and Redis are only required when inMemory is
// false.
func Load(inMemory bool) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getenv("LIFECYCLE_PORT", "8083"),
		GRPCPort:    getenv("LIFECYCLE_GRPC_PORT", "9083"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		RetrySpec:   getenv("DISPATCH_RETRY_SPEC", "@every 1m"),
		InMemory:    inMemory,
	}

	if !inMemory {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required")
		}
	}

	policy, err := lifecycle.ParseAssignmentPolicy(getenv("ASSIGNMENT_POLICY", string(lifecycle.AssignmentWarn)))
	if err != nil {
		return nil, fmt.Errorf("ASSIGNMENT_POLICY: %w", err)
	}
	cfg.AssignmentPolicy = policy

	if cfg.MaxAttempts, err = positiveInt("DISPATCH_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	ttlHours, err := positiveInt("INTENT_DEDUP_TTL_HOURS", 72)
	if err != nil {
		return nil, err
	}
	cfg.DedupTTL = time.Duration(ttlHours) * time.Hour

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

// DatabaseURL returns DATABASE_URL for commands that only need Postgres.
func DatabaseURL() (string, error) {
	if err := loadDotEnv(); err != nil {
		return "", err
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return "", errors.New("DATABASE_URL is required")
	}
	return url, nil
}

// loadDotEnv reads .env from the working directory if there is one. Variables
// already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
