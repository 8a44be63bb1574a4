package db

import (
	"testing"

	"ourdates/internal/dates"
	"ourdates/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPostgres(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@localhost:5432/ourdates": true,
		"postgresql://localhost/ourdates":        true,
		"host=localhost user=u dbname=ourdates":  true,
		":memory:":                               false,
		"file:ourdates.db?cache=shared":          false,
		"sqlite://ourdates.db":                   false,
	}
	for dsn, want := range cases {
		assert.Equal(t, want, IsPostgres(dsn), dsn)
	}
}

func TestAutoMigrate_SQLite(t *testing.T) {
	gdb, err := Connect(":memory:")
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrateAndIndexes(gdb))
	// idempotent on restart
	require.NoError(t, AutoMigrateAndIndexes(gdb))

	for _, table := range []string{"users", "couples", "date_entries", "jobs"} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}
	assert.True(t, gdb.Migrator().HasIndex(&dates.Entry{}, "idx_dates_couple_scheduled"))
	assert.True(t, gdb.Migrator().HasIndex(&jobs.Job{}, "idx_jobs_due"))
}
