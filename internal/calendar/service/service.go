// Package service exposes the calendar version and conflict engine as an
// application API over the storage layer.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/calendar/domain"
	"github.com/slotwise/slotwise/internal/calendar/storage"
	"github.com/slotwise/slotwise/internal/platform/id"
)

// Service coordinates validation, identity, and persistence for calendar
// events. All mutation atomicity lives in the store; the service shapes
// inputs and scopes reads.
type Service struct {
	store storage.Store

	clock func() time.Time
	newID func() (string, error)
}

// New creates a calendar service over the provided store.
func New(store storage.Store) *Service {
	return &Service{
		store: store,
		clock: time.Now,
		newID: id.NewID,
	}
}

// CreateEventInput carries the caller-supplied fields for a new event. The
// owner is also recorded as the creating actor of version 1.
type CreateEventInput struct {
	Title          string
	Description    *string
	Start          time.Time
	End            time.Time
	RecurrenceRule string
	RecurrenceEnd  *time.Time
	OwnerID        string
}

func (s *Service) buildEvent(input CreateEventInput) (domain.Event, error) {
	eventID, err := s.newID()
	if err != nil {
		return domain.Event{}, fmt.Errorf("generate event id: %w", err)
	}
	ev := domain.Event{
		ID:             eventID,
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		Start:          input.Start.UTC(),
		End:            input.End.UTC(),
		RecurrenceRule: strings.TrimSpace(input.RecurrenceRule),
		OwnerID:        strings.TrimSpace(input.OwnerID),
		CreatedAt:      s.clock().UTC(),
	}
	if input.RecurrenceEnd != nil {
		end := input.RecurrenceEnd.UTC()
		ev.RecurrenceEnd = &end
	}
	if err := ev.Validate(); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// CreateEvent validates and persists one event, returning it with its
// assigned id and version 1.
func (s *Service) CreateEvent(ctx context.Context, input CreateEventInput) (domain.Event, error) {
	ev, err := s.buildEvent(input)
	if err != nil {
		return domain.Event{}, err
	}
	return s.store.CreateEvent(ctx, ev, ev.OwnerID)
}

// BatchCreateEvents persists a batch atomically on behalf of one actor. A
// conflict or validation failure on any entry rejects the whole batch.
func (s *Service) BatchCreateEvents(ctx context.Context, inputs []CreateEventInput, actorID string) ([]domain.Event, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	events := make([]domain.Event, 0, len(inputs))
	for _, input := range inputs {
		ev, err := s.buildEvent(input)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return s.store.CreateEvents(ctx, events, strings.TrimSpace(actorID))
}

// GetEvent loads one live event scoped to its owner. An event belonging to a
// different owner is indistinguishable from a missing one.
func (s *Service) GetEvent(ctx context.Context, eventID, ownerID string) (domain.Event, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.OwnerID != strings.TrimSpace(ownerID) {
		return domain.Event{}, storage.ErrNotFound
	}
	return ev, nil
}

// ListEvents returns one page of the owner's events ordered by start time.
func (s *Service) ListEvents(ctx context.Context, ownerID string, pageSize int, pageToken string) (storage.EventPage, error) {
	return s.store.ListEventsByOwner(ctx, strings.TrimSpace(ownerID), pageSize, pageToken)
}

// ListOccurrences expands every event of the owner over the window and
// returns the concrete bookings sorted by the underlying listing order.
func (s *Service) ListOccurrences(ctx context.Context, ownerID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	events, err := s.store.ListOwnerEvents(ctx, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, err
	}
	var bookings []domain.Booking
	for _, ev := range events {
		bookings = append(bookings, domain.ExpandOccurrences(ev, windowStart, windowEnd)...)
	}
	return bookings, nil
}

// UpdateEventInput carries a partial update guarded by the version number the
// caller last observed.
type UpdateEventInput struct {
	EventID         string
	Patch           domain.Patch
	ExpectedVersion uint64
	ActorID         string
}

// UpdateEvent applies the patch when the expected version is still current.
// A *domain.StaleVersionError reports concurrent modification; a
// *domain.ConflictError reports the bookings the new interval would
// double-book.
func (s *Service) UpdateEvent(ctx context.Context, input UpdateEventInput) (domain.Event, error) {
	return s.store.UpdateEvent(ctx, input.EventID, input.Patch, input.ExpectedVersion, strings.TrimSpace(input.ActorID))
}

// DeleteEvent removes the event together with its full version history.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) error {
	return s.store.DeleteEvent(ctx, eventID)
}

// History returns the event's version summaries, oldest first.
func (s *Service) History(ctx context.Context, eventID string) ([]domain.VersionSummary, error) {
	return s.store.ListVersions(ctx, eventID)
}

// VersionDetail returns one full version including its snapshot.
func (s *Service) VersionDetail(ctx context.Context, eventID string, versionNumber uint64) (domain.EventVersion, error) {
	return s.store.GetVersion(ctx, eventID, versionNumber)
}

// Diff compares two stored versions and returns the fields that changed
// between them, in snapshot field order.
func (s *Service) Diff(ctx context.Context, eventID string, older, newer uint64) ([]domain.FieldChange, error) {
	olderVersion, err := s.store.GetVersion(ctx, eventID, older)
	if err != nil {
		return nil, fmt.Errorf("load version %d: %w", older, err)
	}
	newerVersion, err := s.store.GetVersion(ctx, eventID, newer)
	if err != nil {
		return nil, fmt.Errorf("load version %d: %w", newer, err)
	}
	return domain.DiffSnapshots(&olderVersion.Snapshot, newerVersion.Snapshot), nil
}

// Changelog returns the per-version field changes recorded at write time.
func (s *Service) Changelog(ctx context.Context, eventID string) ([]domain.ChangelogEntry, error) {
	return s.store.ListChangelog(ctx, eventID)
}

// Rollback restores the fields recorded at targetVersion by appending a new
// version. It never rewrites history.
func (s *Service) Rollback(ctx context.Context, eventID string, targetVersion uint64, actorID string) (domain.EventVersion, error) {
	return s.store.RollbackEvent(ctx, eventID, targetVersion, strings.TrimSpace(actorID))
}

// AsOf returns the event state that was current at the given instant.
func (s *Service) AsOf(ctx context.Context, eventID string, at time.Time) (domain.EventVersion, error) {
	return s.store.VersionAt(ctx, eventID, at)
}
