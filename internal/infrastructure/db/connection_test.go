package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/bazirun/internal/persistence"
	"github.com/sawpanic/bazirun/internal/solarterm"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, DriverPostgres, config.Driver)
	assert.Equal(t, 10, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, 30*time.Second, config.QueryTimeout)
	assert.False(t, config.Enabled)
	assert.Empty(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.Driver = "mysql"
	config.MaxIdleConns = 20

	problems := config.Validate()
	assert.Len(t, problems, 3)
}

func TestNewManagerDisabled(t *testing.T) {
	manager, err := NewManager(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, manager.IsEnabled())
	assert.Nil(t, manager.Repository())
	assert.Nil(t, manager.DB())
	assert.Error(t, manager.Migrate(context.Background()))
	assert.NoError(t, manager.Close())

	check := manager.Health().Health(context.Background())
	assert.True(t, check.Healthy)
	assert.Contains(t, check.Errors[0], "disabled")
	assert.NoError(t, manager.Health().Ping(context.Background()))
	assert.Equal(t, false, manager.Health().Stats(context.Background())["enabled"])
}

func TestNewManagerMissingDSN(t *testing.T) {
	_, err := NewManager(Config{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestSQLiteRoundTrip(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.Driver = DriverSQLite
	config.DSN = filepath.Join(t.TempDir(), "terms.db")
	config.MaxOpenConns = 1
	config.MaxIdleConns = 1

	manager, err := NewManager(config)
	require.NoError(t, err)
	defer manager.Close()
	require.True(t, manager.IsEnabled())

	ctx := context.Background()
	require.NoError(t, manager.Migrate(ctx))
	require.NoError(t, manager.Migrate(ctx), "schema creation is idempotent")

	table, err := solarterm.Generate(1984, 1985, solarterm.ChinaStandardTime)
	require.NoError(t, err)

	repo := manager.Repository().SolarTerms
	n, err := repo.Upsert(ctx, table.Instants(), "ephemeris")
	require.NoError(t, err)
	assert.Equal(t, table.Len(), n)

	// a second write replaces rather than duplicates
	_, err = repo.Upsert(ctx, table.Instants(), "ephemeris")
	require.NoError(t, err)
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(table.Len()), count)

	loaded, err := repo.Load(ctx, persistence.YearRange{From: 1984, To: 1984})
	require.NoError(t, err)
	want, ok := table.Lookup(1984, solarterm.Lichun)
	require.True(t, ok)
	got, ok := loaded.Lookup(1984, solarterm.Lichun)
	require.True(t, ok)
	assert.True(t, want.Truncate(time.Second).Equal(got))

	_, err = repo.Load(ctx, persistence.YearRange{From: 2500, To: 2501})
	assert.ErrorIs(t, err, solarterm.ErrNoData)

	check := manager.Health().Health(ctx)
	assert.True(t, check.Healthy)
	assert.Equal(t, 1, check.ConnectionPool["max_open"])
	assert.Equal(t, table.Len(), check.ConnectionPool["stored_instants"])

	stats := manager.Health().Stats(ctx)
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 1984, stats["first_year"])
}
