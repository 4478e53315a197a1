package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			JWTSecret: strings.Repeat("s", 32),
			JWTIssuer: "trackfilter",
		},
		Database: DatabaseConfig{
			DSN:      "postgres://localhost/trackfilter",
			MaxConns: 25,
			MinConns: 5,
		},
		Query: QueryConfig{
			Timezone:         "UTC",
			RecomputeTimeout: 5 * time.Minute,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Auth.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short jwt secret")
	}
}

func TestValidate_BadTimezone(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Query.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestValidate_PoolBounds(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Database.MaxConns = 1
	cfg.Database.MinConns = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max_conns < min_conns")
	}
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	t.Parallel()

	q := QueryConfig{Timezone: "nope"}
	if loc := q.Location(); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", loc)
	}
}

func TestLocation_ParsesZone(t *testing.T) {
	t.Parallel()

	q := QueryConfig{Timezone: "Europe/Berlin"}
	if loc := q.Location(); loc.String() != "Europe/Berlin" {
		t.Fatalf("expected Europe/Berlin, got %v", loc)
	}
}
