// Package storage defines the persistence contracts for the calendar
// version and conflict engine.
package storage

import (
	"context"
	"time"

	"github.com/slotwise/slotwise/internal/calendar/domain"
	apperrors "github.com/slotwise/slotwise/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing. Callers
// use this to differentiate between legitimate "no such entity" states and
// transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrVersionConflict indicates two writers raced to record the same version
// number for one event. The losing caller should retry its whole mutation.
var ErrVersionConflict = apperrors.New(apperrors.CodeVersionConflict, "event version already recorded")

// EventPage is one page of an owner's events ordered by start time.
type EventPage struct {
	Events        []domain.Event
	NextPageToken string
}

// EventStore persists live events. Mutations run their conflict scan, field
// write, and version append inside one transaction, so a failed write leaves
// no partial state.
type EventStore interface {
	CreateEvent(ctx context.Context, ev domain.Event, actorID string) (domain.Event, error)
	// CreateEvents inserts a batch atomically: one rejected event rolls
	// back the whole batch. Events earlier in the batch count as existing
	// bookings for the ones after them.
	CreateEvents(ctx context.Context, evs []domain.Event, actorID string) ([]domain.Event, error)
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	ListEventsByOwner(ctx context.Context, ownerID string, pageSize int, pageToken string) (EventPage, error)
	// ListOwnerEvents returns every event owned by ownerID, unpaged. Used
	// for occurrence expansion over a window.
	ListOwnerEvents(ctx context.Context, ownerID string) ([]domain.Event, error)
	// UpdateEvent applies the patch when expectedVersion matches the live
	// version number, returning domain.StaleVersionError otherwise.
	UpdateEvent(ctx context.Context, eventID string, patch domain.Patch, expectedVersion uint64, actorID string) (domain.Event, error)
	// DeleteEvent removes the event and cascades its versions and changes.
	DeleteEvent(ctx context.Context, eventID string) error
	// RollbackEvent restores the mutable fields recorded at targetVersion
	// and appends the result as a brand-new version.
	RollbackEvent(ctx context.Context, eventID string, targetVersion uint64, actorID string) (domain.EventVersion, error)
	// ListEventIDs returns every stored event id, for maintenance sweeps.
	ListEventIDs(ctx context.Context) ([]string, error)
}

// VersionStore reads the append-only version history.
type VersionStore interface {
	ListVersions(ctx context.Context, eventID string) ([]domain.VersionSummary, error)
	GetVersion(ctx context.Context, eventID string, versionNumber uint64) (domain.EventVersion, error)
	// VersionAt returns the version with the greatest creation timestamp
	// at or before the given instant.
	VersionAt(ctx context.Context, eventID string, at time.Time) (domain.EventVersion, error)
	ListChangelog(ctx context.Context, eventID string) ([]domain.ChangelogEntry, error)
}

// Store is the full persistence surface of the engine.
type Store interface {
	EventStore
	VersionStore
}
