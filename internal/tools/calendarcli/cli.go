// Package calendarcli implements the calendar command-line client. Each
// subcommand wraps one service operation and prints a JSON report.
package calendarcli

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
	"github.com/slotwise/slotwise/internal/calendar/domain"
	"github.com/slotwise/slotwise/internal/calendar/service"
	"github.com/slotwise/slotwise/internal/calendar/storage/sqlite"
)

type envConfig struct {
	DBPath string `env:"SLOTWISE_CALENDAR_DB_PATH"`
}

func dbPathDefault() string {
	var cfg envConfig
	_ = env.Parse(&cfg)
	if cfg.DBPath == "" {
		return filepath.Join("data", "calendar.db")
	}
	return cfg.DBPath
}

const usage = `usage: calendar <command> [flags]

commands:
  create       create one event
  get          load one event
  list         list an owner's events, paged
  occurrences  expand an owner's bookings over a window
  update       apply a partial update guarded by a version number
  delete       delete an event and its history
  history      list an event's version summaries
  version      load one full version
  diff         compare two versions field by field
  changelog    list recorded field changes
  rollback     restore an older version's fields as a new version
  as-of        load the event state at an instant
`

// Run dispatches one CLI invocation.
func Run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if len(args) == 0 {
		fmt.Fprint(errOut, usage)
		return errors.New("command is required")
	}

	command, rest := args[0], args[1:]
	runner, ok := commands[command]
	if !ok {
		fmt.Fprint(errOut, usage)
		return fmt.Errorf("unknown command %q", command)
	}
	return runner(ctx, rest, out, errOut)
}

type commandFunc func(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error

var commands = map[string]commandFunc{
	"create":      runCreate,
	"get":         runGet,
	"list":        runList,
	"occurrences": runOccurrences,
	"update":      runUpdate,
	"delete":      runDelete,
	"history":     runHistory,
	"version":     runVersion,
	"diff":        runDiff,
	"changelog":   runChangelog,
	"rollback":    runRollback,
	"as-of":       runAsOf,
}

func newFlagSet(command string, errOut io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(errOut)
	dbPath := fs.String("db-path", dbPathDefault(), "path to calendar sqlite database")
	return fs, dbPath
}

func openService(dbPath string) (*service.Service, func() error, error) {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open calendar store: %w", err)
	}
	return service.New(store), store.Close, nil
}

func parseInstant(value, name string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse -%s: %w", name, err)
	}
	return at, nil
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func runCreate(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("create", errOut)
	owner := fs.String("owner", "", "owner user id")
	title := fs.String("title", "", "event title")
	description := fs.String("description", "", "event description")
	start := fs.String("start", "", "start instant, RFC 3339")
	end := fs.String("end", "", "end instant, RFC 3339")
	rule := fs.String("rrule", "", "recurrence rule, e.g. FREQ=WEEKLY;COUNT=4")
	ruleEnd := fs.String("rrule-end", "", "recurrence horizon, RFC 3339")
	if err := fs.Parse(args); err != nil {
		return err
	}

	startAt, err := parseInstant(*start, "start")
	if err != nil {
		return err
	}
	endAt, err := parseInstant(*end, "end")
	if err != nil {
		return err
	}
	input := service.CreateEventInput{
		Title:          *title,
		Start:          startAt,
		End:            endAt,
		RecurrenceRule: *rule,
		OwnerID:        *owner,
	}
	if *description != "" {
		input.Description = description
	}
	if *ruleEnd != "" {
		horizon, err := parseInstant(*ruleEnd, "rrule-end")
		if err != nil {
			return err
		}
		input.RecurrenceEnd = &horizon
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	created, err := svc.CreateEvent(ctx, input)
	if err != nil {
		return err
	}
	return printJSON(out, created)
}

func runGet(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("get", errOut)
	eventID := fs.String("event-id", "", "event id")
	owner := fs.String("owner", "", "owner user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	ev, err := svc.GetEvent(ctx, *eventID, *owner)
	if err != nil {
		return err
	}
	return printJSON(out, ev)
}

func runList(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("list", errOut)
	owner := fs.String("owner", "", "owner user id")
	pageSize := fs.Int("page-size", 50, "events per page")
	pageToken := fs.String("page-token", "", "continuation token from a previous page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	page, err := svc.ListEvents(ctx, *owner, *pageSize, *pageToken)
	if err != nil {
		return err
	}
	return printJSON(out, page)
}

func runOccurrences(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("occurrences", errOut)
	owner := fs.String("owner", "", "owner user id")
	from := fs.String("from", "", "window start, RFC 3339")
	to := fs.String("to", "", "window end, RFC 3339")
	if err := fs.Parse(args); err != nil {
		return err
	}

	windowStart, err := parseInstant(*from, "from")
	if err != nil {
		return err
	}
	windowEnd, err := parseInstant(*to, "to")
	if err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	bookings, err := svc.ListOccurrences(ctx, *owner, windowStart, windowEnd)
	if err != nil {
		return err
	}
	return printJSON(out, bookings)
}

func runUpdate(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("update", errOut)
	eventID := fs.String("event-id", "", "event id")
	expected := fs.Uint64("expected-version", 0, "version number the caller last observed")
	actor := fs.String("actor", "", "actor recorded on the new version")
	title := fs.String("title", "", "new title")
	description := fs.String("description", "", "new description")
	start := fs.String("start", "", "new start instant, RFC 3339")
	end := fs.String("end", "", "new end instant, RFC 3339")
	rule := fs.String("rrule", "", "new recurrence rule")
	ruleEnd := fs.String("rrule-end", "", "new recurrence horizon, RFC 3339")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only flags the caller actually passed become patch fields, so an
	// empty -title clears nothing by accident.
	var patch domain.Patch
	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			patch.Title = title
		case "description":
			patch.Description = description
		case "start":
			at, err := parseInstant(*start, "start")
			if err != nil {
				parseErr = err
				return
			}
			patch.Start = &at
		case "end":
			at, err := parseInstant(*end, "end")
			if err != nil {
				parseErr = err
				return
			}
			patch.End = &at
		case "rrule":
			patch.RecurrenceRule = rule
		case "rrule-end":
			at, err := parseInstant(*ruleEnd, "rrule-end")
			if err != nil {
				parseErr = err
				return
			}
			patch.RecurrenceEnd = &at
		}
	})
	if parseErr != nil {
		return parseErr
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	updated, err := svc.UpdateEvent(ctx, service.UpdateEventInput{
		EventID:         *eventID,
		Patch:           patch,
		ExpectedVersion: *expected,
		ActorID:         *actor,
	})
	if err != nil {
		return err
	}
	return printJSON(out, updated)
}

func runDelete(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("delete", errOut)
	eventID := fs.String("event-id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	if err := svc.DeleteEvent(ctx, *eventID); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", *eventID)
	return nil
}

func runHistory(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("history", errOut)
	eventID := fs.String("event-id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	summaries, err := svc.History(ctx, *eventID)
	if err != nil {
		return err
	}
	return printJSON(out, summaries)
}

func runVersion(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("version", errOut)
	eventID := fs.String("event-id", "", "event id")
	number := fs.Uint64("number", 0, "version number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	version, err := svc.VersionDetail(ctx, *eventID, *number)
	if err != nil {
		return err
	}
	return printJSON(out, version)
}

func runDiff(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("diff", errOut)
	eventID := fs.String("event-id", "", "event id")
	older := fs.Uint64("older", 0, "older version number")
	newer := fs.Uint64("newer", 0, "newer version number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	changes, err := svc.Diff(ctx, *eventID, *older, *newer)
	if err != nil {
		return err
	}
	return printJSON(out, changes)
}

func runChangelog(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("changelog", errOut)
	eventID := fs.String("event-id", "", "event id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	entries, err := svc.Changelog(ctx, *eventID)
	if err != nil {
		return err
	}
	return printJSON(out, entries)
}

func runRollback(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("rollback", errOut)
	eventID := fs.String("event-id", "", "event id")
	to := fs.Uint64("to", 0, "version number to restore")
	actor := fs.String("actor", "", "actor recorded on the new version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	version, err := svc.Rollback(ctx, *eventID, *to, *actor)
	if err != nil {
		return err
	}
	return printJSON(out, version)
}

func runAsOf(ctx context.Context, args []string, out io.Writer, errOut io.Writer) error {
	fs, dbPath := newFlagSet("as-of", errOut)
	eventID := fs.String("event-id", "", "event id")
	at := fs.String("at", "", "instant to read at, RFC 3339")
	if err := fs.Parse(args); err != nil {
		return err
	}

	instant, err := parseInstant(*at, "at")
	if err != nil {
		return err
	}

	svc, closeStore, err := openService(*dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	version, err := svc.AsOf(ctx, *eventID, instant)
	if err != nil {
		return err
	}
	return printJSON(out, version)
}
