package domain

// FieldChange records one field that differs between consecutive snapshots.
// Old is nil for the null-to-value transition; New is nil for value-to-null.
type FieldChange struct {
	Field string
	Old   *string
	New   *string
}

// snapshotField pairs a field name with its serialized value. Nil means the
// field is null in this snapshot.
type snapshotField struct {
	name  string
	value *string
}

// orderedFields returns the snapshot's values in the fixed recorded order.
// Diff output and change rows follow this order.
func (s Snapshot) orderedFields() []snapshotField {
	title := s.Title
	start := s.Start
	end := s.End
	owner := s.OwnerID
	captured := s.CapturedAt
	return []snapshotField{
		{FieldTitle, &title},
		{FieldDescription, s.Description},
		{FieldStart, &start},
		{FieldEnd, &end},
		{FieldOwnerID, &owner},
		{FieldCapturedAt, &captured},
	}
}

// DiffSnapshots compares two snapshots field by field and returns one entry
// per differing field, in snapshot field order. Values are compared as
// serialized primitives; equal instants formatted differently count as
// different.
//
// A nil previous snapshot (the event's first version) diffs to nothing.
func DiffSnapshots(previous *Snapshot, current Snapshot) []FieldChange {
	if previous == nil {
		return nil
	}

	old := previous.orderedFields()
	cur := current.orderedFields()

	var changes []FieldChange
	for i := range cur {
		if stringPtrEqual(old[i].value, cur[i].value) {
			continue
		}
		changes = append(changes, FieldChange{
			Field: cur[i].name,
			Old:   old[i].value,
			New:   cur[i].value,
		})
	}
	return changes
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
