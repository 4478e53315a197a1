package config

import (
	"fmt"
	"time"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("database.max_conns (%d) must be >= min_conns (%d)",
			c.Database.MaxConns, c.Database.MinConns)
	}

	if _, err := time.LoadLocation(c.Query.Timezone); err != nil {
		return fmt.Errorf("query.timezone %q: %w", c.Query.Timezone, err)
	}

	if c.Query.RecomputeTimeout <= 0 {
		return fmt.Errorf("query.recompute_timeout must be > 0 (got %v)", c.Query.RecomputeTimeout)
	}

	return nil
}

// Location returns the parsed evaluation timezone. Validate must have
// succeeded; an unparseable zone falls back to UTC.
func (c *QueryConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
