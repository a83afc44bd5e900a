package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.OutboxBatchSize != 100 {
		t.Fatalf("expected default outbox batch size 100, got %d", cfg.OutboxBatchSize)
	}

	if cfg.DriftTolerance != "0.01" {
		t.Fatalf("expected default drift tolerance 0.01, got %s", cfg.DriftTolerance)
	}

	if cfg.RateLimitRPS != 50 {
		t.Fatalf("expected default rate limit 50 rps, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("BALANCE_CACHE_TTL", "30s")
	t.Setenv("OUTBOX_POLL_INTERVAL", "1s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if cfg.BalanceCacheTTL != 30*time.Second {
		t.Fatalf("expected balance cache TTL override, got %s", cfg.BalanceCacheTTL)
	}

	if cfg.OutboxPollInterval != time.Second {
		t.Fatalf("expected outbox interval override, got %s", cfg.OutboxPollInterval)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	original := os.Getenv("HTTP_READ_TIMEOUT")
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")
	t.Cleanup(func() {
		t.Setenv("HTTP_READ_TIMEOUT", original)
	})

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
