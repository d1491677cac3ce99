package domain

import (
	"fmt"
	"time"
)

// Booking is one concrete reserved interval produced by an event: the stored
// interval of a one-off event, or a single expanded occurrence of a
// recurring one.
type Booking struct {
	EventID string
	Title   string
	Start   time.Time
	End     time.Time
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap: a booking
// ending exactly when another starts is allowed.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflicts tests the candidate interval [start, end) against every
// booking the given events produce around it. Recurring events are expanded
// so a recurring slot cannot be silently double-booked. The event identified
// by excludeEventID is skipped, which lets updates ignore their own stored
// interval.
//
// Every conflicting booking is returned, not just the first.
func FindConflicts(start, end time.Time, excludeEventID string, candidates []Event) []Booking {
	var conflicts []Booking
	for _, candidate := range candidates {
		if excludeEventID != "" && candidate.ID == excludeEventID {
			continue
		}
		for _, booking := range ExpandOccurrences(candidate, start, end) {
			if Overlaps(booking.Start, booking.End, start, end) {
				conflicts = append(conflicts, booking)
			}
		}
	}
	return conflicts
}

// ConflictError reports bookings that overlap a requested interval. It is
// recoverable: callers surface the conflicting bookings so the client can
// pick another slot.
type ConflictError struct {
	Conflicts []Booking
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		return fmt.Sprintf("booking conflict with event %s", e.Conflicts[0].EventID)
	}
	return fmt.Sprintf("booking conflict with %d existing bookings", len(e.Conflicts))
}

// StaleVersionError reports an optimistic-concurrency mismatch. Current
// carries the authoritative version number so the client can refetch and
// retry.
type StaleVersionError struct {
	Expected uint64
	Current  uint64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("stale version: expected %d, current %d", e.Expected, e.Current)
}
