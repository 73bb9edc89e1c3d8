// Package runner drives the sequential execution loop: invoke the external
// tool per pending item, verify outputs, and persist the completion record
// after every item.
package runner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tomopipe/tomopipe/internal/catalog"
	"github.com/tomopipe/tomopipe/internal/model"
	"github.com/tomopipe/tomopipe/internal/reconcile"
	"github.com/tomopipe/tomopipe/internal/record"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Invocation is the captured outcome of one external tool run.
type Invocation struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Invoker executes the external tool for one work item. The call blocks the
// whole pipeline until it returns; callers wanting bounded latency cancel
// through ctx.
type Invoker interface {
	Invoke(ctx context.Context, item catalog.Item) (Invocation, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, item catalog.Item) (Invocation, error)

func (f InvokerFunc) Invoke(ctx context.Context, item catalog.Item) (Invocation, error) {
	return f(ctx, item)
}

// Reporter receives per-item progress notifications.
type Reporter interface {
	ItemStarted(item catalog.Item, index, total int)
	ItemCompleted(item catalog.Item, index, total int)
	RunFinished(completed, total int)
}

// NullReporter discards all progress notifications.
type NullReporter struct{}

func (NullReporter) ItemStarted(catalog.Item, int, int)   {}
func (NullReporter) ItemCompleted(catalog.Item, int, int) {}
func (NullReporter) RunFinished(int, int)                 {}

// Journal receives run-level events for the append-only journal. May be nil.
type Journal interface {
	Event(eventType string, details map[string]any)
}

// Runner owns one stage's execution loop. Items are processed strictly
// sequentially in ascending tilt-series order; the record is persisted after
// every completed item so an interruption costs at most one item's work.
type Runner struct {
	project  string
	stage    model.Stage
	store    *record.Store
	stat     reconcile.StatFunc
	reporter Reporter
	journal  Journal
	logger   *log.Logger
	logLevel LogLevel
}

func New(project string, stage model.Stage, store *record.Store, opts ...Option) *Runner {
	r := &Runner{
		project:  project,
		stage:    stage,
		store:    store,
		stat:     reconcile.OSStat,
		reporter: NullReporter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type Option func(*Runner)

func WithStat(stat reconcile.StatFunc) Option {
	return func(r *Runner) { r.stat = stat }
}

func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

func WithJournal(j Journal) Option {
	return func(r *Runner) { r.journal = j }
}

func WithLogger(logger *log.Logger, level LogLevel) Option {
	return func(r *Runner) {
		r.logger = logger
		r.logLevel = level
	}
}

// Run processes the pruned work list. On the first failed invocation it
// returns immediately with ExternalToolError: a failing external tool almost
// always indicates a systemic problem that would recur for every subsequent
// item. The failed item is never recorded; rec already holds everything
// persisted so far and re-invoking the pipeline resumes from that point.
func (r *Runner) Run(ctx context.Context, pending []catalog.Item, rec *record.Record, inv Invoker) (*record.Record, error) {
	total := len(pending)
	completed := 0

	for i, it := range pending {
		if err := ctx.Err(); err != nil {
			return rec, fmt.Errorf("run cancelled before tilt-series %d: %w", it.TS, err)
		}

		r.reporter.ItemStarted(it, i, total)
		r.log(LogLevelInfo, "item_started ts=%d index=%d total=%d", it.TS, i, total)

		res, err := inv.Invoke(ctx, it)
		if err != nil {
			r.event("run_failed", map[string]any{"ts": it.TS, "error": err.Error()})
			return rec, fmt.Errorf("invoke external tool for tilt-series %d: %w", it.TS, err)
		}
		// Non-empty stderr is failure regardless of exit status: the domain
		// tool writes real errors there even when it exits zero.
		if res.ExitCode != 0 || strings.TrimSpace(res.Stderr) != "" {
			toolErr := &model.ExternalToolError{
				TS:       it.TS,
				ExitCode: res.ExitCode,
				Stderr:   strings.TrimSpace(res.Stderr),
			}
			r.log(LogLevelError, "item_failed ts=%d exit=%d", it.TS, res.ExitCode)
			r.event("run_failed", map[string]any{"ts": it.TS, "exit_code": res.ExitCode})
			return rec, toolErr
		}

		// Do not trust the exit code alone: re-stat the expected outputs and
		// record only paths that actually exist. An item whose outputs never
		// appeared stays out of the record and is re-attempted next run.
		row, found := r.verifiedRow(it)
		if found {
			rec.Append(row)
			if err := r.store.Save(rec, r.project, r.stage); err != nil {
				return rec, err
			}
			completed++
			r.reporter.ItemCompleted(it, i, total)
			r.log(LogLevelInfo, "item_completed ts=%d recorded=%d", it.TS, rec.Len())
			r.event("item_completed", map[string]any{"ts": it.TS})
		} else {
			r.log(LogLevelWarn, "outputs_missing ts=%d (tool exited 0, item stays pending)", it.TS)
			r.event("outputs_missing", map[string]any{"ts": it.TS})
		}
	}

	r.reporter.RunFinished(completed, total)
	return rec, nil
}

// verifiedRow stats the item's expected outputs and builds a record row
// containing only the paths that exist. found is false when no output
// appeared at all.
func (r *Runner) verifiedRow(it catalog.Item) (record.Row, bool) {
	row := record.Row{TS: it.TS}
	found := false

	if ok := r.exists(it.AlignOutput); ok {
		row.AlignOutput = it.AlignOutput
		found = true
	}
	if ok := r.exists(it.ReconOutput); ok {
		row.ReconOutput = it.ReconOutput
		found = true
	}
	return row, found
}

func (r *Runner) exists(path string) bool {
	exists, err := r.stat(path)
	if err != nil {
		r.log(LogLevelWarn, "stat_failed path=%s error=%v (treated as missing)", path, err)
		return false
	}
	return exists
}

func (r *Runner) event(eventType string, details map[string]any) {
	if r.journal == nil {
		return
	}
	r.journal.Event(eventType, details)
}

func (r *Runner) log(level LogLevel, format string, args ...any) {
	if r.logger == nil || level < r.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case LogLevelDebug:
		levelStr = "DEBUG"
	case LogLevelWarn:
		levelStr = "WARN"
	case LogLevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	r.logger.Printf("%s %s runner: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
