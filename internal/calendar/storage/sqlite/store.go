package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/calendar/domain"
	"github.com/slotwise/slotwise/internal/calendar/storage/sqlite/migrations"
	sqlitemigrate "github.com/slotwise/slotwise/internal/platform/storage/sqlitemigrate"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store provides SQLite-backed persistence for calendar events and their
// version history.
type Store struct {
	sqlDB *sql.DB

	// clock stamps version rows. Overridable in tests so as-of lookups
	// can exercise deterministic timelines.
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a calendar SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB, clock: time.Now}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS)
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite db is required")
	}
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

const eventColumns = `id, title, description, start_at, end_at, recurrence_rule, recurrence_end, owner_id, version_number, created_at, updated_at`

func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var (
		ev            domain.Event
		description   sql.NullString
		startAt       int64
		endAt         int64
		recurrenceEnd sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)
	if err := scan(&ev.ID, &ev.Title, &description, &startAt, &endAt, &ev.RecurrenceRule, &recurrenceEnd, &ev.OwnerID, &ev.VersionNumber, &createdAt, &updatedAt); err != nil {
		return domain.Event{}, err
	}
	if description.Valid {
		value := description.String
		ev.Description = &value
	}
	ev.Start = fromMillis(startAt)
	ev.End = fromMillis(endAt)
	if recurrenceEnd.Valid {
		value := fromMillis(recurrenceEnd.Int64)
		ev.RecurrenceEnd = &value
	}
	ev.CreatedAt = fromMillis(createdAt)
	ev.UpdatedAt = fromMillis(updatedAt)
	return ev, nil
}

func eventArgs(ev domain.Event) []any {
	var description sql.NullString
	if ev.Description != nil {
		description = sql.NullString{String: *ev.Description, Valid: true}
	}
	var recurrenceEnd sql.NullInt64
	if ev.RecurrenceEnd != nil {
		recurrenceEnd = sql.NullInt64{Int64: toMillis(*ev.RecurrenceEnd), Valid: true}
	}
	return []any{
		ev.ID,
		ev.Title,
		description,
		toMillis(ev.Start),
		toMillis(ev.End),
		ev.RecurrenceRule,
		recurrenceEnd,
		ev.OwnerID,
		ev.VersionNumber,
		toMillis(ev.CreatedAt),
		toMillis(ev.UpdatedAt),
	}
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// querier abstracts *sql.DB and *sql.Tx for shared read helpers.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
