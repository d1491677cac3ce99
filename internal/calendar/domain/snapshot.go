package domain

import (
	"fmt"
	"time"
)

// Snapshot field names, recorded in change rows and stable across schema
// evolution. New fields must be appended, never renamed.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStart       = "start_datetime"
	FieldEnd         = "end_datetime"
	FieldOwnerID     = "owner_id"
	FieldCapturedAt  = "captured_at"
)

// Snapshot is the fixed-shape serialized copy of an event's fields at one
// version. Every value is a JSON primitive; datetimes are RFC 3339 UTC
// strings so stored snapshots compare stably and survive as opaque JSON.
type Snapshot struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Start       string  `json:"start_datetime"`
	End         string  `json:"end_datetime"`
	OwnerID     string  `json:"owner_id"`
	CapturedAt  string  `json:"captured_at"`
}

// NewSnapshot captures the event's current field values. The capture instant
// is supplied by the caller so the snapshot, the version row, and its change
// rows all share one timestamp.
func NewSnapshot(e Event, at time.Time) Snapshot {
	return Snapshot{
		Title:       e.Title,
		Description: e.Description,
		Start:       formatSnapshotTime(e.Start),
		End:         formatSnapshotTime(e.End),
		OwnerID:     e.OwnerID,
		CapturedAt:  formatSnapshotTime(at),
	}
}

// RestoredFields holds the typed field values parsed back out of a snapshot.
type RestoredFields struct {
	Title       string
	Description *string
	Start       time.Time
	End         time.Time
	OwnerID     string
}

// Restore parses the snapshot's serialized values back into typed fields.
// It accepts exactly the format NewSnapshot produces.
func (s Snapshot) Restore() (RestoredFields, error) {
	start, err := parseSnapshotTime(s.Start)
	if err != nil {
		return RestoredFields{}, fmt.Errorf("parse snapshot start: %w", err)
	}
	end, err := parseSnapshotTime(s.End)
	if err != nil {
		return RestoredFields{}, fmt.Errorf("parse snapshot end: %w", err)
	}
	return RestoredFields{
		Title:       s.Title,
		Description: s.Description,
		Start:       start,
		End:         end,
		OwnerID:     s.OwnerID,
	}, nil
}

func formatSnapshotTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSnapshotTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
