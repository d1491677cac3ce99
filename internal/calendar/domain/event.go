package domain

import (
	"strings"
	"time"

	apperrors "github.com/slotwise/slotwise/internal/platform/errors"
)

// ErrTitleEmpty indicates an event without a title.
var ErrTitleEmpty = apperrors.New(apperrors.CodeEventTitleEmpty, "event title is required")

// ErrOwnerEmpty indicates an event without an owner reference.
var ErrOwnerEmpty = apperrors.New(apperrors.CodeEventOwnerEmpty, "event owner id is required")

// ErrEndNotAfterStart indicates an interval that is empty or inverted.
var ErrEndNotAfterStart = apperrors.New(apperrors.CodeEventEndNotAfterStart, "event end must be after start")

// Event is the live, mutable calendar record. Exactly one row exists per id;
// every accepted mutation bumps VersionNumber by one and appends an immutable
// EventVersion alongside it.
type Event struct {
	ID             string
	Title          string
	Description    *string
	Start          time.Time
	End            time.Time
	RecurrenceRule string     // RRULE text (e.g. "FREQ=WEEKLY;COUNT=4"), empty for one-off events
	RecurrenceEnd  *time.Time // hard stop for occurrence generation, nil for open-ended
	OwnerID        string
	VersionNumber  uint64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Recurs reports whether the event carries a recurrence rule.
func (e Event) Recurs() bool {
	return strings.TrimSpace(e.RecurrenceRule) != ""
}

// Duration returns the master interval length. Occurrences of a recurring
// event inherit it verbatim.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Validate checks the invariants every live event must satisfy. Recurrence
// rules are validated strictly here; expansion-time parsing is lenient.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrTitleEmpty
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrOwnerEmpty
	}
	if !e.End.After(e.Start) {
		return ErrEndNotAfterStart
	}
	if e.Recurs() {
		if err := ValidateRecurrenceRule(e.RecurrenceRule); err != nil {
			return err
		}
	}
	return nil
}

// Patch carries a partial update. Nil fields are left unchanged; Description
// can be set but not cleared, matching the update contract.
type Patch struct {
	Title          *string
	Description    *string
	Start          *time.Time
	End            *time.Time
	RecurrenceRule *string
	RecurrenceEnd  *time.Time
}

// Apply merges the patch into a copy of the event. The result still needs
// Validate before it is persisted.
func (e Event) Apply(p Patch) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.RecurrenceRule != nil {
		e.RecurrenceRule = *p.RecurrenceRule
	}
	if p.RecurrenceEnd != nil {
		e.RecurrenceEnd = p.RecurrenceEnd
	}
	return e
}
