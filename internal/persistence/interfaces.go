package persistence

import (
	"context"
	"time"

	"github.com/sawpanic/bazirun/internal/solarterm"
)

// YearRange is an inclusive span of Gregorian years
type YearRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether y falls inside the range; a zero range holds every year
func (r YearRange) Contains(y int) bool {
	if r.From == 0 && r.To == 0 {
		return true
	}
	return y >= r.From && y <= r.To
}

// TermRow is one stored solar-term instant
type TermRow struct {
	Year   int    `json:"year" db:"year"`
	Term   int    `json:"term" db:"term"`
	AtUnix int64  `json:"at_unix" db:"at_unix"` // seconds since the epoch
	Source string `json:"source" db:"source"`
}

// SolarTermRepo stores the solar-term reference table
type SolarTermRepo interface {
	// EnsureSchema creates the table when absent
	EnsureSchema(ctx context.Context) error

	// Upsert writes instants, replacing any row with the same year and term.
	// Returns the number of rows written.
	Upsert(ctx context.Context, instants []solarterm.Instant, source string) (int, error)

	// Load reads every instant in span into an immutable table
	Load(ctx context.Context, span YearRange) (*solarterm.Table, error)

	// Years lists the Gregorian years that have at least one row
	Years(ctx context.Context) ([]int, error)

	// Count returns the number of stored instants
	Count(ctx context.Context) (int64, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	SolarTerms SolarTermRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity
	Ping(ctx context.Context) error

	// Stats returns connection pool statistics
	Stats(ctx context.Context) map[string]interface{}
}
