package db

import (
	"fmt"
	"time"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database connection configuration
type Config struct {
	Driver          string        `yaml:"driver" env:"BAZIRUN_DB_DRIVER"` // postgres or sqlite
	DSN             string        `yaml:"dsn" env:"PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PG_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"PG_CONN_MAX_IDLE_TIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PG_QUERY_TIMEOUT"`
	Enabled         bool          `yaml:"enabled" env:"PG_ENABLED"`
}

// DefaultConfig returns reasonable defaults for database connections
func DefaultConfig() Config {
	return Config{
		Driver:          DriverPostgres,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false, // requires explicit configuration
	}
}

// Validate returns every problem found; a disabled config is always valid
func (c Config) Validate() []string {
	if !c.Enabled {
		return nil
	}
	var problems []string
	if c.Driver != DriverPostgres && c.Driver != DriverSQLite {
		problems = append(problems, fmt.Sprintf("database driver %q is not one of %s, %s", c.Driver, DriverPostgres, DriverSQLite))
	}
	if c.DSN == "" {
		problems = append(problems, "database DSN is required when database is enabled")
	}
	if c.MaxOpenConns <= 0 {
		problems = append(problems, "max_open_conns must be positive")
	}
	if c.MaxIdleConns < 0 {
		problems = append(problems, "max_idle_conns cannot be negative")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		problems = append(problems, "max_idle_conns cannot exceed max_open_conns")
	}
	if c.QueryTimeout <= 0 {
		problems = append(problems, "query_timeout must be positive")
	}
	return problems
}
