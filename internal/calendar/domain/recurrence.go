package domain

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	apperrors "github.com/slotwise/slotwise/internal/platform/errors"
)

// maxOccurrencesPerEvent caps expansion so a pathological stored rule cannot
// blow up listing or conflict queries.
const maxOccurrencesPerEvent = 1000

// ValidateRecurrenceRule strictly parses an RRULE string. Used at write time;
// expansion never calls it and instead skips rules that fail to parse.
func ValidateRecurrenceRule(rule string) error {
	if _, err := rrule.StrToRRule(strings.TrimSpace(rule)); err != nil {
		return apperrors.Wrap(apperrors.CodeEventRecurrenceInvalid, "invalid recurrence rule", err)
	}
	return nil
}

// ExpandOccurrences replays the event's recurrence rule from its own start
// anchor and returns every occurrence interval intersecting
// [windowStart, windowEnd). One-off events yield their stored interval when
// it intersects the window. Malformed stored rules yield no occurrences:
// a bad row must not break bulk listing or conflict scans.
//
// Expansion is a pure function of the event and the window, so repeated calls
// with identical arguments return identical sequences.
func ExpandOccurrences(e Event, windowStart, windowEnd time.Time) []Booking {
	if !windowEnd.After(windowStart) {
		return nil
	}

	if !e.Recurs() {
		if Overlaps(e.Start, e.End, windowStart, windowEnd) {
			return []Booking{e.booking(e.Start, e.End)}
		}
		return nil
	}

	r, err := rrule.StrToRRule(strings.TrimSpace(e.RecurrenceRule))
	if err != nil {
		return nil
	}
	r.DTStart(e.Start)

	var set rrule.Set
	set.RRule(r)

	// Widen the query by one duration so occurrences that start before the
	// window but reach into it are still produced.
	duration := e.Duration()
	starts := set.Between(windowStart.Add(-duration), windowEnd, true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	occurrences := make([]Booking, 0, len(starts))
	for _, start := range starts {
		if e.RecurrenceEnd != nil && start.After(*e.RecurrenceEnd) {
			break
		}
		end := start.Add(duration)
		if !Overlaps(start, end, windowStart, windowEnd) {
			continue
		}
		occurrences = append(occurrences, e.booking(start, end))
	}
	return occurrences
}

func (e Event) booking(start, end time.Time) Booking {
	return Booking{
		EventID: e.ID,
		Title:   e.Title,
		Start:   start,
		End:     end,
	}
}
