package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver, registered as "sqlite"

	"github.com/sawpanic/bazirun/internal/persistence"
	"github.com/sawpanic/bazirun/internal/persistence/sqlstore"
)

// Manager owns the connection behind the stored solar-term table
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
	health *storeHealth
}

// NewManager opens and pings the configured store. A disabled config yields
// a Manager with no connection whose health check always passes.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config, health: &storeHealth{}}, nil
	}

	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}
	if config.Driver == "" {
		config.Driver = DriverPostgres
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultConfig().QueryTimeout
	}

	db, err := sqlx.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Str("driver", config.Driver).Int("max_open", config.MaxOpenConns).Msg("database connected")

	terms := sqlstore.NewSolarTermRepo(db, config.QueryTimeout)
	return &Manager{
		db:     db,
		config: config,
		repos:  &persistence.Repository{SolarTerms: terms},
		health: &storeHealth{db: db, terms: terms, timeout: config.QueryTimeout},
	}, nil
}

// Repository is nil when the store is disabled
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// Migrate creates missing tables
func (m *Manager) Migrate(ctx context.Context) error {
	if !m.IsEnabled() {
		return fmt.Errorf("database persistence disabled")
	}
	return m.repos.SolarTerms.EnsureSchema(ctx)
}

func (m *Manager) Health() persistence.RepositoryHealth {
	return m.health
}

func (m *Manager) DB() *sqlx.DB {
	return m.db
}

// IsEnabled reports whether a live connection is held
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled && m.db != nil
}

func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// storeHealth reports on the solar-term store: connectivity first, then
// how much of the table is actually present
type storeHealth struct {
	db      *sqlx.DB
	terms   persistence.SolarTermRepo
	timeout time.Duration
}

func (h *storeHealth) Health(ctx context.Context) persistence.HealthCheck {
	check := persistence.HealthCheck{Healthy: true, LastCheck: time.Now()}
	if h.db == nil {
		check.Errors = []string{"solar-term store disabled"}
		check.ConnectionPool = map[string]int{"status": 0}
		return check
	}

	start := time.Now()
	if err := h.Ping(ctx); err != nil {
		check.Healthy = false
		check.Errors = append(check.Errors, fmt.Sprintf("store unreachable: %v", err))
	}
	pool := h.db.Stats()
	check.ConnectionPool = map[string]int{
		"max_open": pool.MaxOpenConnections,
		"open":     pool.OpenConnections,
		"in_use":   pool.InUse,
		"idle":     pool.Idle,
		"waits":    int(pool.WaitCount),
	}
	if check.Healthy {
		if n, err := h.terms.Count(ctx); err != nil {
			// a missing table is reported but does not fail the check
			check.Errors = append(check.Errors, fmt.Sprintf("solar_terms unreadable: %v", err))
		} else {
			check.ConnectionPool["stored_instants"] = int(n)
		}
	}
	check.ResponseTimeMS = time.Since(start).Milliseconds()
	return check
}

func (h *storeHealth) Ping(ctx context.Context) error {
	if h.db == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.db.PingContext(pingCtx)
}

// Stats describes the stored coverage alongside the pool counters
func (h *storeHealth) Stats(ctx context.Context) map[string]interface{} {
	if h.db == nil {
		return map[string]interface{}{"enabled": false, "status": "disabled"}
	}
	pool := h.db.Stats()
	out := map[string]interface{}{
		"enabled":          true,
		"open_connections": pool.OpenConnections,
		"wait_ms":          pool.WaitDuration.Milliseconds(),
	}
	if years, err := h.terms.Years(ctx); err == nil && len(years) > 0 {
		out["first_year"] = years[0]
		out["last_year"] = years[len(years)-1]
		out["years"] = len(years)
	}
	return out
}
