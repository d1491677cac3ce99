package domain

import "time"

// EventVersion is one immutable entry in an event's version lineage. Rows are
// append-only: rollback restores old field values by writing a new version,
// never by touching existing ones.
type EventVersion struct {
	EventID       string
	VersionNumber uint64
	Snapshot      Snapshot
	CreatedBy     string
	CreatedAt     time.Time
}

// VersionSummary is the listing view of a version: everything but the
// snapshot payload.
type VersionSummary struct {
	VersionNumber uint64
	CreatedBy     string
	CreatedAt     time.Time
}

// ChangelogEntry groups the field changes recorded with one version. The
// first version of an event has no entry: there was nothing to diff against.
type ChangelogEntry struct {
	VersionNumber uint64
	ChangedAt     time.Time
	Changes       []FieldChange
}
