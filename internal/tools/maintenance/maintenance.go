// Package maintenance provides operator commands over the calendar store:
// lineage verification, history and changelog inspection, point-in-time
// reads, and manual rollbacks.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/slotwise/slotwise/internal/calendar/storage"
	"github.com/slotwise/slotwise/internal/calendar/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath     string        `env:"SLOTWISE_CALENDAR_DB_PATH"`
	Timeout    time.Duration `env:"SLOTWISE_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	EventID    string
	History    bool
	Changelog  bool
	AsOf       string
	RollbackTo uint64
	Actor      string
	JSONOutput bool
}

type envConfig struct {
	DBPath  string        `env:"SLOTWISE_CALENDAR_DB_PATH"`
	Timeout time.Duration `env:"SLOTWISE_MAINTENANCE_TIMEOUT" envDefault:"10m"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:  envCfg.DBPath,
		Timeout: envCfg.Timeout,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "calendar.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to calendar sqlite database (default: SLOTWISE_CALENDAR_DB_PATH or data/calendar.db)")
	fs.StringVar(&cfg.EventID, "event-id", "", "event ID to inspect (default: verify every event)")
	fs.BoolVar(&cfg.History, "history", false, "print the event's version summaries")
	fs.BoolVar(&cfg.Changelog, "changelog", false, "print the event's recorded field changes")
	fs.StringVar(&cfg.AsOf, "as-of", "", "print the event state at this RFC 3339 instant")
	fs.Uint64Var(&cfg.RollbackTo, "rollback-to", 0, "append a version restoring this version's fields")
	fs.StringVar(&cfg.Actor, "actor", "maintenance", "actor recorded on versions written by this tool")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	modes := 0
	for _, enabled := range []bool{cfg.History, cfg.Changelog, cfg.AsOf != "", cfg.RollbackTo > 0} {
		if enabled {
			modes++
		}
	}
	if modes > 1 {
		return errors.New("-history, -changelog, -as-of, and -rollback-to are mutually exclusive")
	}
	if modes == 1 && cfg.EventID == "" {
		return errors.New("-event-id is required")
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open calendar store: %w", err)
	}
	return runWithDeps(ctx, cfg, store, out, errOut)
}

// runWithDeps contains the core maintenance logic with an injectable store.
// It owns the store lifecycle, closing it on return.
func runWithDeps(ctx context.Context, cfg Config, store closableStore, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close calendar store: %v\n", err)
		}
	}()

	switch {
	case cfg.History:
		return runHistory(ctx, store, cfg.EventID, cfg.JSONOutput, out)
	case cfg.Changelog:
		return runChangelog(ctx, store, cfg.EventID, cfg.JSONOutput, out)
	case cfg.AsOf != "":
		at, err := time.Parse(time.RFC3339, cfg.AsOf)
		if err != nil {
			return fmt.Errorf("parse -as-of: %w", err)
		}
		return runAsOf(ctx, store, cfg.EventID, at, cfg.JSONOutput, out)
	case cfg.RollbackTo > 0:
		return runRollback(ctx, store, cfg.EventID, cfg.RollbackTo, cfg.Actor, cfg.JSONOutput, out)
	default:
		return runVerify(ctx, store, cfg.EventID, cfg.JSONOutput, out, errOut)
	}
}

func runHistory(ctx context.Context, store storage.Store, eventID string, jsonOutput bool, out io.Writer) error {
	summaries, err := store.ListVersions(ctx, eventID)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, summaries)
	}
	for _, summary := range summaries {
		fmt.Fprintf(out, "version=%d created_by=%s created_at=%s\n",
			summary.VersionNumber, summary.CreatedBy, summary.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func runChangelog(ctx context.Context, store storage.Store, eventID string, jsonOutput bool, out io.Writer) error {
	entries, err := store.ListChangelog(ctx, eventID)
	if err != nil {
		return fmt.Errorf("list changelog: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, entries)
	}
	for _, entry := range entries {
		for _, change := range entry.Changes {
			fmt.Fprintf(out, "version=%d field=%s old=%s new=%s\n",
				entry.VersionNumber, change.Field, stringValue(change.Old), stringValue(change.New))
		}
	}
	return nil
}

func runAsOf(ctx context.Context, store storage.Store, eventID string, at time.Time, jsonOutput bool, out io.Writer) error {
	version, err := store.VersionAt(ctx, eventID, at)
	if err != nil {
		return fmt.Errorf("load version at %s: %w", at.Format(time.RFC3339), err)
	}
	if jsonOutput {
		return writeJSON(out, version)
	}
	fmt.Fprintf(out, "version=%d title=%q start=%s end=%s\n",
		version.VersionNumber, version.Snapshot.Title, version.Snapshot.Start, version.Snapshot.End)
	return nil
}

func runRollback(ctx context.Context, store storage.Store, eventID string, target uint64, actor string, jsonOutput bool, out io.Writer) error {
	version, err := store.RollbackEvent(ctx, eventID, target, actor)
	if err != nil {
		return fmt.Errorf("rollback to version %d: %w", target, err)
	}
	if jsonOutput {
		return writeJSON(out, version)
	}
	fmt.Fprintf(out, "rolled back event=%s to=%d new_version=%d\n", eventID, target, version.VersionNumber)
	return nil
}

// verifyReport summarizes a lineage sweep.
type verifyReport struct {
	EventsChecked int            `json:"events_checked"`
	Problems      []lineageIssue `json:"problems"`
}

type lineageIssue struct {
	EventID string `json:"event_id"`
	Detail  string `json:"detail"`
}

func runVerify(ctx context.Context, store storage.Store, eventID string, jsonOutput bool, out io.Writer, errOut io.Writer) error {
	var ids []string
	if eventID != "" {
		ids = []string{eventID}
	} else {
		allIDs, err := store.ListEventIDs(ctx)
		if err != nil {
			return fmt.Errorf("list event ids: %w", err)
		}
		ids = allIDs
	}

	report := verifyReport{Problems: []lineageIssue{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		issues, err := verifyLineage(ctx, store, id)
		if err != nil {
			return fmt.Errorf("verify event %s: %w", id, err)
		}
		report.EventsChecked++
		report.Problems = append(report.Problems, issues...)
	}

	if jsonOutput {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "checked %d events, %d problems\n", report.EventsChecked, len(report.Problems))
		for _, issue := range report.Problems {
			fmt.Fprintf(errOut, "event=%s problem=%s\n", issue.EventID, issue.Detail)
		}
	}
	if len(report.Problems) > 0 {
		return fmt.Errorf("lineage verification found %d problems", len(report.Problems))
	}
	return nil
}

// verifyLineage checks one event's history: versions numbered densely from 1,
// every snapshot parseable, and the live counter pointing at the latest
// version.
func verifyLineage(ctx context.Context, store storage.Store, eventID string) ([]lineageIssue, error) {
	summaries, err := store.ListVersions(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var issues []lineageIssue
	for i, summary := range summaries {
		want := uint64(i + 1)
		if summary.VersionNumber != want {
			issues = append(issues, lineageIssue{
				EventID: eventID,
				Detail:  fmt.Sprintf("version numbering gap: position %d holds version %d", i+1, summary.VersionNumber),
			})
			continue
		}
		version, err := store.GetVersion(ctx, eventID, summary.VersionNumber)
		if err != nil {
			issues = append(issues, lineageIssue{
				EventID: eventID,
				Detail:  fmt.Sprintf("version %d unreadable: %v", summary.VersionNumber, err),
			})
			continue
		}
		if _, err := version.Snapshot.Restore(); err != nil {
			issues = append(issues, lineageIssue{
				EventID: eventID,
				Detail:  fmt.Sprintf("version %d snapshot corrupt: %v", summary.VersionNumber, err),
			})
		}
	}

	live, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(summaries) > 0 && live.VersionNumber != summaries[len(summaries)-1].VersionNumber {
		issues = append(issues, lineageIssue{
			EventID: eventID,
			Detail: fmt.Sprintf("live version %d does not match latest recorded version %d",
				live.VersionNumber, summaries[len(summaries)-1].VersionNumber),
		})
	}
	return issues, nil
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func stringValue(value *string) string {
	if value == nil {
		return "<nil>"
	}
	return *value
}
