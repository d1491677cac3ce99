package calendarcli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/slotwise/slotwise/internal/calendar/domain"
)

func TestRunRequiresCommand(t *testing.T) {
	var errOut bytes.Buffer
	err := Run(context.Background(), nil, nil, &errOut)
	if err == nil {
		t.Fatal("missing command accepted")
	}
	if !strings.Contains(errOut.String(), "usage: calendar") {
		t.Fatalf("usage not printed: %q", errOut.String())
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := Run(context.Background(), []string{"frobnicate"}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("err = %v, want unknown command", err)
	}
}

func TestCreateGetUpdateLifecycle(t *testing.T) {
	dbPath := t.TempDir() + "/calendar.db"
	ctx := context.Background()

	var out bytes.Buffer
	err := Run(ctx, []string{
		"create", "-db-path", dbPath,
		"-owner", "user-1",
		"-title", "Quarterly planning",
		"-start", "2025-01-06T10:00:00Z",
		"-end", "2025-01-06T11:00:00Z",
	}, &out, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var created domain.Event
	if err := json.Unmarshal(out.Bytes(), &created); err != nil {
		t.Fatalf("decode created event: %v", err)
	}
	if created.ID == "" || created.VersionNumber != 1 {
		t.Fatalf("created = %+v", created)
	}

	out.Reset()
	err = Run(ctx, []string{
		"update", "-db-path", dbPath,
		"-event-id", created.ID,
		"-expected-version", "1",
		"-actor", "user-1",
		"-title", "Renamed",
	}, &out, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	var updated domain.Event
	if err := json.Unmarshal(out.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated event: %v", err)
	}
	if updated.Title != "Renamed" || updated.VersionNumber != 2 {
		t.Fatalf("updated = %+v", updated)
	}
	// Fields not passed as flags stay untouched.
	if !updated.Start.Equal(created.Start) || !updated.End.Equal(created.End) {
		t.Fatalf("interval changed: %+v", updated)
	}

	out.Reset()
	err = Run(ctx, []string{
		"get", "-db-path", dbPath,
		"-event-id", created.ID,
		"-owner", "user-1",
	}, &out, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out.String(), "Renamed") {
		t.Fatalf("get output = %q", out.String())
	}
}

func TestOccurrencesCommand(t *testing.T) {
	dbPath := t.TempDir() + "/calendar.db"
	ctx := context.Background()

	err := Run(ctx, []string{
		"create", "-db-path", dbPath,
		"-owner", "user-1",
		"-title", "Standup",
		"-start", "2025-01-06T10:00:00Z",
		"-end", "2025-01-06T10:15:00Z",
		"-rrule", "FREQ=WEEKLY;COUNT=4",
	}, nil, nil)
	if err != nil {
		t.Fatalf("create recurring: %v", err)
	}

	var out bytes.Buffer
	err = Run(ctx, []string{
		"occurrences", "-db-path", dbPath,
		"-owner", "user-1",
		"-from", "2025-01-01T00:00:00Z",
		"-to", "2025-02-28T00:00:00Z",
	}, &out, nil)
	if err != nil {
		t.Fatalf("occurrences: %v", err)
	}
	var bookings []domain.Booking
	if err := json.Unmarshal(out.Bytes(), &bookings); err != nil {
		t.Fatalf("decode bookings: %v", err)
	}
	if len(bookings) != 4 {
		t.Fatalf("got %d bookings, want 4", len(bookings))
	}
}

func TestRollbackAndHistoryCommands(t *testing.T) {
	dbPath := t.TempDir() + "/calendar.db"
	ctx := context.Background()

	var out bytes.Buffer
	err := Run(ctx, []string{
		"create", "-db-path", dbPath,
		"-owner", "user-1",
		"-title", "Original",
		"-start", "2025-01-06T10:00:00Z",
		"-end", "2025-01-06T11:00:00Z",
	}, &out, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var created domain.Event
	if err := json.Unmarshal(out.Bytes(), &created); err != nil {
		t.Fatalf("decode created event: %v", err)
	}

	if err := Run(ctx, []string{
		"update", "-db-path", dbPath,
		"-event-id", created.ID,
		"-expected-version", "1",
		"-title", "Changed",
	}, nil, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := Run(ctx, []string{
		"rollback", "-db-path", dbPath,
		"-event-id", created.ID,
		"-to", "1",
		"-actor", "ops",
	}, nil, nil); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	out.Reset()
	if err := Run(ctx, []string{
		"history", "-db-path", dbPath,
		"-event-id", created.ID,
	}, &out, nil); err != nil {
		t.Fatalf("history: %v", err)
	}
	var summaries []domain.VersionSummary
	if err := json.Unmarshal(out.Bytes(), &summaries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("history length = %d, want 3", len(summaries))
	}

	out.Reset()
	if err := Run(ctx, []string{
		"get", "-db-path", dbPath,
		"-event-id", created.ID,
		"-owner", "user-1",
	}, &out, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out.String(), "Original") {
		t.Fatalf("restored event = %q", out.String())
	}
}
