package maintenance

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/calendar/domain"
	"github.com/slotwise/slotwise/internal/calendar/storage/sqlite"
)

func newSeededStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := t.TempDir() + "/calendar.db"
	store, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	start := time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC)
	created, err := store.CreateEvent(context.Background(), domain.Event{
		ID:      "evt-1",
		Title:   "Quarterly planning",
		Start:   start,
		End:     start.Add(time.Hour),
		OwnerID: "user-1",
	}, "user-1")
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	title := "Renamed"
	if _, err := store.UpdateEvent(context.Background(), "evt-1", domain.Patch{Title: &title}, created.VersionNumber, "user-1"); err != nil {
		t.Fatalf("seed update: %v", err)
	}
	return store, path
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath == "" {
		t.Error("db path default missing")
	}
	if cfg.Timeout != 10*time.Minute {
		t.Errorf("timeout = %v, want 10m", cfg.Timeout)
	}
	if cfg.Actor != "maintenance" {
		t.Errorf("actor = %q, want maintenance", cfg.Actor)
	}
}

func TestParseConfigFlags(t *testing.T) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-event-id", "evt-1", "-history", "-json", "-timeout", "30s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.EventID != "evt-1" || !cfg.History || !cfg.JSONOutput {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Timeout)
	}
}

func TestRunRejectsConflictingModes(t *testing.T) {
	err := Run(context.Background(), Config{History: true, Changelog: true, EventID: "evt-1"}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("err = %v, want mutually exclusive mode error", err)
	}

	err = Run(context.Background(), Config{History: true}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "-event-id is required") {
		t.Fatalf("err = %v, want missing event id error", err)
	}
}

func TestVerifyCleanLineage(t *testing.T) {
	store, _ := newSeededStore(t)
	var out, errOut bytes.Buffer

	err := runWithDeps(context.Background(), Config{JSONOutput: true}, store, &out, &errOut)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	var report verifyReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.EventsChecked != 1 {
		t.Errorf("events checked = %d, want 1", report.EventsChecked)
	}
	if len(report.Problems) != 0 {
		t.Errorf("problems = %+v", report.Problems)
	}
}

func TestVerifyFlagsCorruptSnapshot(t *testing.T) {
	store, path := newSeededStore(t)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec(`UPDATE event_versions SET snapshot_json = 'not json' WHERE version_number = 1`); err != nil {
		t.Fatalf("corrupt snapshot: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	var out, errOut bytes.Buffer
	err = runWithDeps(context.Background(), Config{}, store, &out, &errOut)
	if err == nil || !strings.Contains(err.Error(), "found 1 problems") {
		t.Fatalf("verify of corrupt lineage: err = %v", err)
	}
	if !strings.Contains(errOut.String(), "version 1 unreadable") {
		t.Fatalf("problem detail = %q", errOut.String())
	}
}

func TestHistoryOutput(t *testing.T) {
	store, _ := newSeededStore(t)
	var out bytes.Buffer

	err := runWithDeps(context.Background(), Config{History: true, EventID: "evt-1"}, store, &out, nil)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("history lines = %v", lines)
	}
	if !strings.Contains(lines[0], "version=1") || !strings.Contains(lines[1], "version=2") {
		t.Fatalf("history output = %q", out.String())
	}
}

func TestChangelogOutput(t *testing.T) {
	store, _ := newSeededStore(t)
	var out bytes.Buffer

	err := runWithDeps(context.Background(), Config{Changelog: true, EventID: "evt-1"}, store, &out, nil)
	if err != nil {
		t.Fatalf("changelog: %v", err)
	}
	if !strings.Contains(out.String(), "field=title") {
		t.Fatalf("changelog output = %q", out.String())
	}
	if !strings.Contains(out.String(), "new=Renamed") {
		t.Fatalf("changelog output = %q", out.String())
	}
}

func TestRollbackMode(t *testing.T) {
	store, _ := newSeededStore(t)
	var out bytes.Buffer

	err := runWithDeps(context.Background(), Config{RollbackTo: 1, EventID: "evt-1", Actor: "ops"}, store, &out, nil)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !strings.Contains(out.String(), "new_version=3") {
		t.Fatalf("rollback output = %q", out.String())
	}
}

func TestAsOfModeParsesTimestamp(t *testing.T) {
	store, _ := newSeededStore(t)

	err := runWithDeps(context.Background(), Config{AsOf: "not-a-timestamp", EventID: "evt-1"}, store, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "parse -as-of") {
		t.Fatalf("err = %v, want timestamp parse error", err)
	}
}
