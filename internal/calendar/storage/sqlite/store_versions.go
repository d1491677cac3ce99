package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/calendar/domain"
	"github.com/slotwise/slotwise/internal/calendar/storage"
	apperrors "github.com/slotwise/slotwise/internal/platform/errors"
)

// recordVersionTx appends the next version for the event and writes one
// change row per field that differs from the previous snapshot. It also keeps
// the live events.version_number in step, so the optimistic check never needs
// a second query.
func (s *Store) recordVersionTx(ctx context.Context, tx *sql.Tx, ev domain.Event, actorID string, at time.Time) (domain.EventVersion, error) {
	var (
		prevNumber uint64
		prevRaw    string
		previous   *domain.Snapshot
	)
	row := tx.QueryRowContext(ctx, `
SELECT version_number, snapshot_json
FROM event_versions
WHERE event_id = ?
ORDER BY version_number DESC
LIMIT 1
`, ev.ID)
	if err := row.Scan(&prevNumber, &prevRaw); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.EventVersion{}, fmt.Errorf("load latest version: %w", err)
		}
	} else {
		var snap domain.Snapshot
		if err := json.Unmarshal([]byte(prevRaw), &snap); err != nil {
			return domain.EventVersion{}, apperrors.Wrap(apperrors.CodeVersionCorrupt, "decode previous snapshot", err)
		}
		previous = &snap
	}

	next := prevNumber + 1
	snapshot := domain.NewSnapshot(ev, at)
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return domain.EventVersion{}, fmt.Errorf("encode snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO event_versions (event_id, version_number, snapshot_json, created_by, created_at)
VALUES (?, ?, ?, ?, ?)
`, ev.ID, next, string(raw), actorID, toMillis(at)); err != nil {
		if isConstraintError(err) {
			return domain.EventVersion{}, storage.ErrVersionConflict
		}
		return domain.EventVersion{}, fmt.Errorf("insert event version: %w", err)
	}

	for _, change := range domain.DiffSnapshots(previous, snapshot) {
		var oldValue, newValue sql.NullString
		if change.Old != nil {
			oldValue = sql.NullString{String: *change.Old, Valid: true}
		}
		if change.New != nil {
			newValue = sql.NullString{String: *change.New, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO event_changes (event_id, version_number, field_name, old_value, new_value, changed_at)
VALUES (?, ?, ?, ?, ?, ?)
`, ev.ID, next, change.Field, oldValue, newValue, toMillis(at)); err != nil {
			return domain.EventVersion{}, fmt.Errorf("insert change row: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE events SET version_number = ?, updated_at = ? WHERE id = ?
`, next, toMillis(at), ev.ID); err != nil {
		return domain.EventVersion{}, fmt.Errorf("advance live version number: %w", err)
	}

	return domain.EventVersion{
		EventID:       ev.ID,
		VersionNumber: next,
		Snapshot:      snapshot,
		CreatedBy:     actorID,
		CreatedAt:     at,
	}, nil
}

// ListVersions returns the event's version summaries in ascending order.
func (s *Store) ListVersions(ctx context.Context, eventID string) ([]domain.VersionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(eventID) == "" {
		return nil, storage.ErrNotFound
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT version_number, created_by, created_at
FROM event_versions
WHERE event_id = ?
ORDER BY version_number
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []domain.VersionSummary
	for rows.Next() {
		var (
			summary   domain.VersionSummary
			createdAt int64
		)
		if err := rows.Scan(&summary.VersionNumber, &summary.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan version summary: %w", err)
		}
		summary.CreatedAt = fromMillis(createdAt)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	// A live event always has at least version 1, so an empty lineage
	// means the event does not exist.
	if len(summaries) == 0 {
		return nil, storage.ErrNotFound
	}
	return summaries, nil
}

// GetVersion loads one full version by number.
func (s *Store) GetVersion(ctx context.Context, eventID string, versionNumber uint64) (domain.EventVersion, error) {
	if err := ctx.Err(); err != nil {
		return domain.EventVersion{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.EventVersion{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT event_id, version_number, snapshot_json, created_by, created_at
FROM event_versions
WHERE event_id = ? AND version_number = ?
`, eventID, versionNumber)
	return scanVersion(row.Scan)
}

// VersionAt returns the version that was current at the given instant: the
// one with the greatest creation timestamp at or before it.
func (s *Store) VersionAt(ctx context.Context, eventID string, at time.Time) (domain.EventVersion, error) {
	if err := ctx.Err(); err != nil {
		return domain.EventVersion{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.EventVersion{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT event_id, version_number, snapshot_json, created_by, created_at
FROM event_versions
WHERE event_id = ? AND created_at <= ?
ORDER BY created_at DESC, version_number DESC
LIMIT 1
`, eventID, toMillis(at))
	return scanVersion(row.Scan)
}

func scanVersion(scan func(dest ...any) error) (domain.EventVersion, error) {
	var (
		version   domain.EventVersion
		raw       string
		createdAt int64
	)
	if err := scan(&version.EventID, &version.VersionNumber, &raw, &version.CreatedBy, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EventVersion{}, storage.ErrNotFound
		}
		return domain.EventVersion{}, fmt.Errorf("scan event version: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &version.Snapshot); err != nil {
		return domain.EventVersion{}, apperrors.Wrap(apperrors.CodeVersionCorrupt, "decode snapshot", err)
	}
	version.CreatedAt = fromMillis(createdAt)
	return version, nil
}

// ListChangelog returns the recorded field changes grouped by version, in
// ascending version order. Version 1 has no entry.
func (s *Store) ListChangelog(ctx context.Context, eventID string) ([]domain.ChangelogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(eventID) == "" {
		return nil, storage.ErrNotFound
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT version_number, field_name, old_value, new_value, changed_at
FROM event_changes
WHERE event_id = ?
ORDER BY version_number, id
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query changelog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.ChangelogEntry
	for rows.Next() {
		var (
			versionNumber uint64
			change        domain.FieldChange
			oldValue      sql.NullString
			newValue      sql.NullString
			changedAt     int64
		)
		if err := rows.Scan(&versionNumber, &change.Field, &oldValue, &newValue, &changedAt); err != nil {
			return nil, fmt.Errorf("scan change row: %w", err)
		}
		if oldValue.Valid {
			value := oldValue.String
			change.Old = &value
		}
		if newValue.Valid {
			value := newValue.String
			change.New = &value
		}
		if len(entries) == 0 || entries[len(entries)-1].VersionNumber != versionNumber {
			entries = append(entries, domain.ChangelogEntry{
				VersionNumber: versionNumber,
				ChangedAt:     fromMillis(changedAt),
			})
		}
		last := &entries[len(entries)-1]
		last.Changes = append(last.Changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changelog: %w", err)
	}
	return entries, nil
}

// RollbackEvent restores the mutable fields recorded at targetVersion and
// appends the result as a new version. History is never rewritten: rolling
// back version 5 to version 2 produces version 6 whose fields match 2.
func (s *Store) RollbackEvent(ctx context.Context, eventID string, targetVersion uint64, actorID string) (domain.EventVersion, error) {
	if err := ctx.Err(); err != nil {
		return domain.EventVersion{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.EventVersion{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.EventVersion{}, fmt.Errorf("begin event rollback: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback event rollback: %v", cause, rollbackErr)
		}
		return cause
	}

	current, err := getEventQuery(ctx, tx, eventID)
	if err != nil {
		return domain.EventVersion{}, rollbackWith(err)
	}

	row := tx.QueryRowContext(ctx, `
SELECT event_id, version_number, snapshot_json, created_by, created_at
FROM event_versions
WHERE event_id = ? AND version_number = ?
`, eventID, targetVersion)
	target, err := scanVersion(row.Scan)
	if err != nil {
		return domain.EventVersion{}, rollbackWith(err)
	}

	restored, err := target.Snapshot.Restore()
	if err != nil {
		return domain.EventVersion{}, rollbackWith(apperrors.Wrap(apperrors.CodeVersionCorrupt, "restore snapshot", err))
	}

	merged := current
	merged.Title = restored.Title
	merged.Description = restored.Description
	merged.Start = restored.Start
	merged.End = restored.End
	if err := merged.Validate(); err != nil {
		return domain.EventVersion{}, rollbackWith(err)
	}

	now := s.now()
	merged.UpdatedAt = now
	if err := writeEventFieldsTx(ctx, tx, merged); err != nil {
		return domain.EventVersion{}, rollbackWith(err)
	}
	version, err := s.recordVersionTx(ctx, tx, merged, actorID, now)
	if err != nil {
		return domain.EventVersion{}, rollbackWith(err)
	}

	if err := tx.Commit(); err != nil {
		return domain.EventVersion{}, fmt.Errorf("commit event rollback: %w", err)
	}
	return version, nil
}
