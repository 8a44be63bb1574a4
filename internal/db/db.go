package db

import (
	"fmt"
	"strings"

	"ourdates/internal/auth"
	"ourdates/internal/couple"
	"ourdates/internal/dates"
	"ourdates/internal/jobs"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// IsPostgres reports whether dsn names a postgres database rather than a
// sqlite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func Connect(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	if IsPostgres(dsn) {
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	gdb, err := gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), cfg)
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serializes anyway and ":memory:" is per connection
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&auth.User{},
		&couple.Couple{},
		&dates.Entry{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_dates_couple_scheduled on date_entries(couple_id, scheduled_at);`,
		`create index if not exists idx_dates_couple_completed on date_entries(couple_id, is_completed, scheduled_at);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	if gdb.Dialector.Name() == "postgres" {
		return installChangeTrigger(gdb)
	}
	return nil
}

// installChangeTrigger makes every row change on date_entries emit a
// NOTIFY on date_changes carrying the whole row.
func installChangeTrigger(gdb *gorm.DB) error {
	stmts := []string{
		`
create or replace function notify_date_change() returns trigger as $$
declare
  rec record;
begin
  if tg_op = 'DELETE' then rec := old; else rec := new; end if;
  perform pg_notify('date_changes', json_build_object(
    'type', tg_op,
    'couple_id', rec.couple_id,
    'record', row_to_json(rec)
  )::text);
  return null;
end;
$$ language plpgsql;`,
		`drop trigger if exists date_entries_notify on date_entries;`,
		`
create trigger date_entries_notify
after insert or update or delete on date_entries
for each row execute function notify_date_change();`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("trigger exec failed: %w", err)
		}
	}
	return nil
}
