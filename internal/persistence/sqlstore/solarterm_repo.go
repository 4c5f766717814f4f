package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/bazirun/internal/persistence"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

// Schema is portable between PostgreSQL and SQLite. Instants are stored as
// epoch seconds; year is the Gregorian year in China Standard Time.
const Schema = `
CREATE TABLE IF NOT EXISTS solar_terms (
	year    INTEGER  NOT NULL,
	term    SMALLINT NOT NULL,
	at_unix BIGINT   NOT NULL,
	source  TEXT     NOT NULL DEFAULT '',
	PRIMARY KEY (year, term)
)`

const upsertTerm = `
	INSERT INTO solar_terms (year, term, at_unix, source)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (year, term) DO UPDATE SET
		at_unix = EXCLUDED.at_unix,
		source = EXCLUDED.source`

// solarTermRepo implements SolarTermRepo on any sqlx driver
type solarTermRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSolarTermRepo creates a solar-term repository. Queries are written with
// '?' placeholders and rebound for the driver.
func NewSolarTermRepo(db *sqlx.DB, timeout time.Duration) persistence.SolarTermRepo {
	return &solarTermRepo{
		db:      db,
		timeout: timeout,
	}
}

func (r *solarTermRepo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create solar_terms table: %w", err)
	}
	return nil
}

// Upsert writes all instants in one transaction
func (r *solarTermRepo) Upsert(ctx context.Context, instants []solarterm.Instant, source string) (int, error) {
	if len(instants) == 0 {
		return 0, nil
	}
	for _, in := range instants {
		if !in.Term.Valid() {
			return 0, fmt.Errorf("invalid solar term %d", int(in.Term))
		}
		if in.At.IsZero() {
			return 0, fmt.Errorf("solar term %s has no timestamp", in.Term)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, r.db.Rebind(upsertTerm))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare solar term upsert: %w", err)
	}
	defer stmt.Close()

	for _, in := range instants {
		at := in.At.In(solarterm.ChinaStandardTime)
		if _, err := stmt.ExecContext(ctx, at.Year(), int(in.Term), at.Unix(), source); err != nil {
			return 0, fmt.Errorf("failed to upsert %d %s: %w", at.Year(), in.Term, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit solar terms: %w", err)
	}
	return len(instants), nil
}

// Load returns solarterm.ErrNoData when no row falls in span
func (r *solarTermRepo) Load(ctx context.Context, span persistence.YearRange) (*solarterm.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT year, term, at_unix, source FROM solar_terms`
	var args []interface{}
	if span != (persistence.YearRange{}) {
		query += ` WHERE year BETWEEN ? AND ?`
		args = append(args, span.From, span.To)
	}
	query += ` ORDER BY year, term`

	var rows []persistence.TermRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query solar terms: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("solar_terms %d-%d: %w", span.From, span.To, solarterm.ErrNoData)
	}

	instants := make([]solarterm.Instant, 0, len(rows))
	for _, row := range rows {
		instants = append(instants, solarterm.Instant{
			Term: solarterm.Term(row.Term),
			At:   time.Unix(row.AtUnix, 0).In(solarterm.ChinaStandardTime),
		})
	}
	t, err := solarterm.NewTable(instants)
	if err != nil {
		return nil, fmt.Errorf("invalid solar term rows: %w", err)
	}
	return t, nil
}

func (r *solarTermRepo) Years(ctx context.Context) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var years []int
	if err := r.db.SelectContext(ctx, &years, `SELECT DISTINCT year FROM solar_terms ORDER BY year`); err != nil {
		return nil, fmt.Errorf("failed to list solar term years: %w", err)
	}
	return years, nil
}

func (r *solarTermRepo) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM solar_terms`); err != nil {
		return 0, fmt.Errorf("failed to count solar terms: %w", err)
	}
	return n, nil
}
