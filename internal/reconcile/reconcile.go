// Package reconcile implements the three-way comparison between the
// requested work items, the persisted completion record, and the live
// filesystem, producing the authoritative pending set.
package reconcile

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tomopipe/tomopipe/internal/catalog"
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

// StatFunc reports whether a path exists. An access error is treated by the
// reconciler as "does not exist": reprocessing beats perpetual false
// completion.
type StatFunc func(path string) (bool, error)

// OSStat is the production StatFunc.
func OSStat(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Result carries the two corrected outputs of a reconciliation.
type Result struct {
	// Record is the pruned ledger: rows whose outputs vanished are removed.
	Record *record.Record
	// Pending is the pruned work list in ascending tilt-series order.
	Pending []catalog.Item
	// RowsPruned counts record rows removed by pass 1.
	RowsPruned int
	// ItemsSkipped counts requested items already satisfied by the record.
	ItemsSkipped int
}

// Reconciler performs the comparison. It does no I/O beyond existence checks
// through its StatFunc, and never mutates its inputs.
type Reconciler struct {
	stat     StatFunc
	logger   *log.Logger
	logLevel LogLevel
}

func New(stat StatFunc, logger *log.Logger, logLevel LogLevel) *Reconciler {
	if stat == nil {
		stat = OSStat
	}
	return &Reconciler{stat: stat, logger: logger, logLevel: logLevel}
}

// Reconcile applies two successive corrections:
//
// Pass 1 prunes record rows whose outputs no longer exist on disk. Every row
// is considered, not only those for requested items: an item whose output was
// deleted must become eligible again whenever it is next requested.
//
// Pass 2 drops requested items whose full expected output-path set appears in
// the pruned record. Matching is by exact path equality; existence was
// settled in pass 1. An item with only some of its artifacts recorded is not
// completed and is reprocessed in full.
func (r *Reconciler) Reconcile(requested []catalog.Item, rec *record.Record) Result {
	pruned := &record.Record{}
	rowsPruned := 0
	for _, row := range rec.Rows {
		if r.rowIntact(row) {
			pruned.Rows = append(pruned.Rows, row)
		} else {
			rowsPruned++
		}
	}
	if rowsPruned > 0 {
		r.log(LogLevelInfo, "record_pruned rows=%d reason=output_missing", rowsPruned)
	}

	idx := pruned.PathIndex()
	pending := make([]catalog.Item, 0, len(requested))
	skipped := 0
	for _, it := range requested {
		if satisfied(it, idx) {
			skipped++
			continue
		}
		pending = append(pending, it)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].TS < pending[j].TS })

	switch {
	case skipped == len(requested) && len(requested) > 0:
		r.log(LogLevelInfo, "all_satisfied requested=%d", len(requested))
	case skipped > 0:
		r.log(LogLevelInfo, "items_skipped count=%d pending=%d", skipped, len(pending))
	}

	return Result{
		Record:       pruned,
		Pending:      pending,
		RowsPruned:   rowsPruned,
		ItemsSkipped: skipped,
	}
}

// rowIntact reports whether every output path the row claims still exists.
func (r *Reconciler) rowIntact(row record.Row) bool {
	for _, path := range []string{row.AlignOutput, row.ReconOutput} {
		if path == "" {
			continue
		}
		exists, err := r.stat(path)
		if err != nil {
			r.log(LogLevelWarn, "stat_failed path=%s error=%v (treated as missing)", path, err)
			return false
		}
		if !exists {
			return false
		}
	}
	return true
}

func satisfied(it catalog.Item, idx map[string]bool) bool {
	for _, path := range it.OutputPaths() {
		if !idx[path] {
			return false
		}
	}
	return true
}

func (r *Reconciler) log(level LogLevel, format string, args ...any) {
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
	r.logger.Printf("%s %s reconcile: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
