package domain

import (
	"errors"
	"testing"
	"time"
)

func validEvent() Event {
	return Event{
		ID:      "evt-1",
		Title:   "Quarterly planning",
		Start:   time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC),
		OwnerID: "user-1",
	}
}

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func TestValidateAcceptsWellFormedEvent(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsEmptyTitle(t *testing.T) {
	ev := validEvent()
	ev.Title = "   "
	if err := ev.Validate(); !errors.Is(err, ErrTitleEmpty) {
		t.Fatalf("expected ErrTitleEmpty, got %v", err)
	}
}

func TestValidateRejectsEmptyOwner(t *testing.T) {
	ev := validEvent()
	ev.OwnerID = ""
	if err := ev.Validate(); !errors.Is(err, ErrOwnerEmpty) {
		t.Fatalf("expected ErrOwnerEmpty, got %v", err)
	}
}

func TestValidateRejectsInvertedInterval(t *testing.T) {
	ev := validEvent()
	ev.End = ev.Start
	if err := ev.Validate(); !errors.Is(err, ErrEndNotAfterStart) {
		t.Fatalf("expected ErrEndNotAfterStart for empty interval, got %v", err)
	}

	ev.End = ev.Start.Add(-time.Hour)
	if err := ev.Validate(); !errors.Is(err, ErrEndNotAfterStart) {
		t.Fatalf("expected ErrEndNotAfterStart for inverted interval, got %v", err)
	}
}

func TestValidateRejectsMalformedRecurrenceRule(t *testing.T) {
	ev := validEvent()
	ev.RecurrenceRule = "FREQ=SOMETIMES"
	err := ev.Validate()
	if err == nil {
		t.Fatal("expected error for malformed recurrence rule")
	}
}

func TestApplyMergesOnlyProvidedFields(t *testing.T) {
	ev := validEvent()
	ev.Description = strPtr("original")

	newStart := ev.Start.Add(2 * time.Hour)
	patched := ev.Apply(Patch{
		Title: strPtr("Moved planning"),
		Start: timePtr(newStart),
	})

	if patched.Title != "Moved planning" {
		t.Fatalf("expected patched title, got %q", patched.Title)
	}
	if !patched.Start.Equal(newStart) {
		t.Fatalf("expected patched start, got %v", patched.Start)
	}
	if patched.Description == nil || *patched.Description != "original" {
		t.Fatal("expected description untouched")
	}
	if !patched.End.Equal(ev.End) {
		t.Fatal("expected end untouched")
	}
	// The receiver must not be mutated.
	if ev.Title != "Quarterly planning" {
		t.Fatal("expected original event unchanged")
	}
}

func TestRecursAndDuration(t *testing.T) {
	ev := validEvent()
	if ev.Recurs() {
		t.Fatal("expected one-off event")
	}
	ev.RecurrenceRule = "FREQ=DAILY;COUNT=2"
	if !ev.Recurs() {
		t.Fatal("expected recurring event")
	}
	if ev.Duration() != time.Hour {
		t.Fatalf("expected 1h duration, got %v", ev.Duration())
	}
}
