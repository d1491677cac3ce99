package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/slotwise/slotwise/internal/calendar/domain"
	"github.com/slotwise/slotwise/internal/calendar/storage"
	"github.com/slotwise/slotwise/internal/calendar/storage/cursor"
)

// CreateEvent inserts one event after scanning the owner's existing bookings
// for overlaps, and records version 1 in the same transaction.
func (s *Store) CreateEvent(ctx context.Context, ev domain.Event, actorID string) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Event{}, fmt.Errorf("storage is not configured")
	}
	if err := ev.Validate(); err != nil {
		return domain.Event{}, err
	}
	if strings.TrimSpace(ev.ID) == "" {
		return domain.Event{}, fmt.Errorf("event id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("begin event create: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback event create: %v", cause, rollbackErr)
		}
		return cause
	}

	created, err := s.createEventTx(ctx, tx, ev, actorID)
	if err != nil {
		return domain.Event{}, rollbackWith(err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("commit event create: %w", err)
	}
	return created, nil
}

// CreateEvents inserts a batch atomically. A conflict or validation failure
// on any event rolls back the whole batch; earlier batch entries count as
// existing bookings for later ones because the scan runs inside the
// transaction.
func (s *Store) CreateEvents(ctx context.Context, evs []domain.Event, actorID string) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(evs) == 0 {
		return nil, nil
	}
	for _, ev := range evs {
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(ev.ID) == "" {
			return nil, fmt.Errorf("event id is required")
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin event batch create: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback event batch create: %v", cause, rollbackErr)
		}
		return cause
	}

	created := make([]domain.Event, 0, len(evs))
	for _, ev := range evs {
		stored, err := s.createEventTx(ctx, tx, ev, actorID)
		if err != nil {
			return nil, rollbackWith(err)
		}
		created = append(created, stored)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit event batch create: %w", err)
	}
	return created, nil
}

func (s *Store) createEventTx(ctx context.Context, tx *sql.Tx, ev domain.Event, actorID string) (domain.Event, error) {
	candidates, err := listOwnerEventsQuery(ctx, tx, ev.OwnerID)
	if err != nil {
		return domain.Event{}, err
	}
	if conflicts := domain.FindConflicts(ev.Start, ev.End, "", candidates); len(conflicts) > 0 {
		return domain.Event{}, &domain.ConflictError{Conflicts: conflicts}
	}

	now := s.now()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	ev.UpdatedAt = now
	ev.VersionNumber = 1

	if _, err := tx.ExecContext(ctx, `
INSERT INTO events (`+eventColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, eventArgs(ev)...); err != nil {
		if isConstraintError(err) {
			return domain.Event{}, fmt.Errorf("event %s already exists: %w", ev.ID, err)
		}
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}

	version, err := s.recordVersionTx(ctx, tx, ev, actorID, now)
	if err != nil {
		return domain.Event{}, err
	}
	ev.VersionNumber = version.VersionNumber
	return ev, nil
}

// GetEvent loads one live event by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Event{}, fmt.Errorf("storage is not configured")
	}
	return getEventQuery(ctx, s.sqlDB, eventID)
}

func getEventQuery(ctx context.Context, q querier, eventID string) (domain.Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return domain.Event{}, storage.ErrNotFound
	}
	row := q.QueryRowContext(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE id = ?
`, eventID)
	ev, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, storage.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("scan event: %w", err)
	}
	return ev, nil
}

// ListOwnerEvents returns every event owned by ownerID ordered by start time.
func (s *Store) ListOwnerEvents(ctx context.Context, ownerID string) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	return listOwnerEventsQuery(ctx, s.sqlDB, ownerID)
}

func listOwnerEventsQuery(ctx context.Context, q querier, ownerID string) ([]domain.Event, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	rows, err := q.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE owner_id = ?
ORDER BY start_at, id
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query owner events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan owner event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner events: %w", err)
	}
	return events, nil
}

// ListEventsByOwner returns one page of the owner's events ordered by start
// time then id, with an opaque continuation token.
func (s *Store) ListEventsByOwner(ctx context.Context, ownerID string, pageSize int, pageToken string) (storage.EventPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EventPage{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(ownerID) == "" {
		return storage.EventPage{}, fmt.Errorf("owner id is required")
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	query := `
SELECT ` + eventColumns + `
FROM events
WHERE owner_id = ?
`
	args := []any{ownerID}
	if pageToken != "" {
		c, err := cursor.Decode(pageToken, ownerID)
		if err != nil {
			return storage.EventPage{}, err
		}
		query += `AND (start_at > ? OR (start_at = ? AND id > ?))
`
		args = append(args, c.StartMillis, c.StartMillis, c.EventID)
	}
	query += `ORDER BY start_at, id
LIMIT ?
`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.EventPage{}, fmt.Errorf("query event page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("scan event page row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return storage.EventPage{}, fmt.Errorf("iterate event page: %w", err)
	}

	page := storage.EventPage{Events: events}
	if len(events) > pageSize {
		page.Events = events[:pageSize]
		last := page.Events[pageSize-1]
		page.NextPageToken = cursor.Encode(toMillis(last.Start), last.ID, ownerID)
	}
	return page, nil
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// UpdateEvent applies a partial update guarded by optimistic concurrency.
// The caller's expectedVersion must match the live version number; on
// mismatch a *domain.StaleVersionError carries the authoritative number.
func (s *Store) UpdateEvent(ctx context.Context, eventID string, patch domain.Patch, expectedVersion uint64, actorID string) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Event{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("begin event update: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback event update: %v", cause, rollbackErr)
		}
		return cause
	}

	current, err := getEventQuery(ctx, tx, eventID)
	if err != nil {
		return domain.Event{}, rollbackWith(err)
	}
	if current.VersionNumber != expectedVersion {
		return domain.Event{}, rollbackWith(&domain.StaleVersionError{
			Expected: expectedVersion,
			Current:  current.VersionNumber,
		})
	}

	merged := current.Apply(patch)
	if err := merged.Validate(); err != nil {
		return domain.Event{}, rollbackWith(err)
	}

	candidates, err := listOwnerEventsQuery(ctx, tx, merged.OwnerID)
	if err != nil {
		return domain.Event{}, rollbackWith(err)
	}
	if conflicts := domain.FindConflicts(merged.Start, merged.End, merged.ID, candidates); len(conflicts) > 0 {
		return domain.Event{}, rollbackWith(&domain.ConflictError{Conflicts: conflicts})
	}

	now := s.now()
	merged.UpdatedAt = now
	if err := writeEventFieldsTx(ctx, tx, merged); err != nil {
		return domain.Event{}, rollbackWith(err)
	}
	version, err := s.recordVersionTx(ctx, tx, merged, actorID, now)
	if err != nil {
		return domain.Event{}, rollbackWith(err)
	}
	merged.VersionNumber = version.VersionNumber

	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("commit event update: %w", err)
	}
	return merged, nil
}

func writeEventFieldsTx(ctx context.Context, tx *sql.Tx, ev domain.Event) error {
	var description sql.NullString
	if ev.Description != nil {
		description = sql.NullString{String: *ev.Description, Valid: true}
	}
	var recurrenceEnd sql.NullInt64
	if ev.RecurrenceEnd != nil {
		recurrenceEnd = sql.NullInt64{Int64: toMillis(*ev.RecurrenceEnd), Valid: true}
	}
	result, err := tx.ExecContext(ctx, `
UPDATE events
SET title = ?, description = ?, start_at = ?, end_at = ?, recurrence_rule = ?, recurrence_end = ?, updated_at = ?
WHERE id = ?
`, ev.Title, description, toMillis(ev.Start), toMillis(ev.End), ev.RecurrenceRule, recurrenceEnd, toMillis(ev.UpdatedAt), ev.ID)
	if err != nil {
		return fmt.Errorf("update event fields: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("count updated event rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteEvent removes the live event. Version and change rows cascade.
func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(eventID) == "" {
		return storage.ErrNotFound
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("count deleted event rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListEventIDs returns every stored event id in insertion-stable order.
func (s *Store) ListEventIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM events ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query event ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event ids: %w", err)
	}
	return ids, nil
}
