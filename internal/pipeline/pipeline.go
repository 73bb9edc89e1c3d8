// Package pipeline wires one stage run end to end: configuration, catalog,
// reconciliation, and the execution loop, with the stage lock held
// throughout.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/tomopipe/tomopipe/internal/catalog"
	"github.com/tomopipe/tomopipe/internal/config"
	"github.com/tomopipe/tomopipe/internal/events"
	"github.com/tomopipe/tomopipe/internal/imod"
	"github.com/tomopipe/tomopipe/internal/lock"
	"github.com/tomopipe/tomopipe/internal/metadata"
	"github.com/tomopipe/tomopipe/internal/model"
	"github.com/tomopipe/tomopipe/internal/reconcile"
	"github.com/tomopipe/tomopipe/internal/record"
	"github.com/tomopipe/tomopipe/internal/runner"
)

// Options configures a stage run.
type Options struct {
	// Dir is the working directory holding parameter files, record
	// documents, locks and journals.
	Dir     string
	Project string

	// Binary overrides the external tool executable (tests, PATH-less
	// environments). Empty means imod.DefaultBinary.
	Binary string

	Reporter runner.Reporter
	Logger   *log.Logger
	LogLevel string
}

func (o Options) reporter() runner.Reporter {
	if o.Reporter == nil {
		return runner.NullReporter{}
	}
	return o.Reporter
}

// Scan builds the master metadata document from the raw source folder
// declared in the reconstruction parameter file.
func Scan(opts Options) error {
	cfg, err := config.Load(opts.Dir, opts.Project, model.StageReconstruct)
	if err != nil {
		return err
	}

	master, err := metadata.Scan(cfg.System)
	if err != nil {
		return err
	}
	if err := metadata.Save(master, opts.Dir, opts.Project); err != nil {
		return fmt.Errorf("save master metadata: %w", err)
	}
	return nil
}

// SourceDir resolves the raw image source folder from the reconstruction
// parameter file.
func SourceDir(opts Options) (string, error) {
	cfg, err := config.Load(opts.Dir, opts.Project, model.StageReconstruct)
	if err != nil {
		return "", err
	}
	return cfg.System.SourceFolder, nil
}

// Reconstruct runs the reconstruction stage: derive the requested items,
// reconcile them against the completion record and the filesystem, then
// drive the external tool over the pending remainder.
//
// Recovery after an interruption is this same path: the record persisted
// after every completed item plus reconciliation re-derive the pending set,
// so no separate crash-recovery mode exists.
func Reconstruct(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.Dir, opts.Project, model.StageReconstruct)
	if err != nil {
		return err
	}

	requested := cfg.System.ProcessList
	if len(requested) == 0 {
		// Empty process_list means the whole project: every tilt-series the
		// master metadata knows about.
		master, err := metadata.Load(opts.Dir, opts.Project)
		if err != nil {
			return err
		}
		requested = master.TiltSeriesIDs()
	}

	conv := catalog.NewConvention(
		cfg.System.OutputPath, cfg.System.OutputRootname, cfg.System.OutputSuffix)
	items, err := catalog.DeriveItems(conv, requested)
	if err != nil {
		return err
	}
	if err := catalog.EnsureDirs(items); err != nil {
		return err
	}

	// One writer per (project, stage); a second concurrent run fails here
	// instead of interleaving record mutations.
	fl := lock.NewFileLock(lock.StagePath(opts.Dir, opts.Project, string(model.StageReconstruct)))
	if err := fl.TryLock(); err != nil {
		return err
	}
	defer fl.Unlock()

	journal, err := events.Open(opts.Dir, opts.Project, string(model.StageReconstruct), 0)
	if err != nil {
		return err
	}
	defer journal.Close()

	level := reconcile.ParseLogLevel(opts.LogLevel)
	store := record.NewStore(opts.Dir)
	rec, err := store.Load(opts.Project, model.StageReconstruct)
	if err != nil {
		return err
	}

	res := reconcile.New(reconcile.OSStat, opts.Logger, level).Reconcile(items, rec)
	journal.Event("run_started", map[string]any{
		"requested": len(items),
		"pending":   len(res.Pending),
		"skipped":   res.ItemsSkipped,
	})
	if res.RowsPruned > 0 {
		journal.Event("record_pruned", map[string]any{"rows": res.RowsPruned})
		// Persist the correction so the document stops claiming completion
		// for vanished outputs even if no item runs afterwards.
		if err := store.Save(res.Record, opts.Project, model.StageReconstruct); err != nil {
			return err
		}
	}

	if len(res.Pending) == 0 {
		journal.Event("all_satisfied", map[string]any{"requested": len(items)})
		opts.reporter().RunFinished(0, 0)
		return nil
	}

	directive := filepath.Join(opts.Dir, imod.DirectiveName)
	if err := imod.WriteDirective(directive, cfg.BatchRunTomo); err != nil {
		return err
	}

	r := runner.New(opts.Project, model.StageReconstruct, store,
		runner.WithReporter(opts.reporter()),
		runner.WithJournal(journal),
		runner.WithLogger(opts.Logger, runner.ParseLogLevel(opts.LogLevel)),
	)
	tool := imod.NewTool(opts.Binary, conv, directive)

	if _, err := r.Run(ctx, res.Pending, res.Record, tool); err != nil {
		return err
	}
	journal.Event("run_finished", map[string]any{"completed": len(res.Pending)})
	return nil
}
