// Package status reports the progress of a project's stages without
// modifying anything: no record writes, no locks, no tool invocations.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tomopipe/tomopipe/internal/catalog"
	"github.com/tomopipe/tomopipe/internal/config"
	"github.com/tomopipe/tomopipe/internal/metadata"
	"github.com/tomopipe/tomopipe/internal/model"
	"github.com/tomopipe/tomopipe/internal/reconcile"
	"github.com/tomopipe/tomopipe/internal/record"
)

type ProjectStatus struct {
	Project string        `json:"project"`
	Stages  []StageStatus `json:"stages"`
}

type StageStatus struct {
	Stage     string `json:"stage"`
	Requested int    `json:"requested"`
	Recorded  int    `json:"recorded"`
	Satisfied int    `json:"satisfied"`
	Stale     int    `json:"stale"`
	Pending   []int  `json:"pending,omitempty"`
}

// Collect computes the status of every stage whose parameter file exists in
// dir. The record documents are read but never written: rows whose outputs
// vanished are counted as stale, not pruned.
func Collect(dir, project string) (*ProjectStatus, error) {
	ps := &ProjectStatus{Project: project}

	for _, stage := range []model.Stage{model.StageReconstruct} {
		ss, err := collectStage(dir, project, stage)
		if err != nil {
			return nil, err
		}
		if ss != nil {
			ps.Stages = append(ps.Stages, *ss)
		}
	}

	if len(ps.Stages) == 0 {
		return nil, &model.ConfigurationError{
			Reason: fmt.Sprintf("no parameter files for project %q in %s, run new first", project, dir),
		}
	}
	return ps, nil
}

func collectStage(dir, project string, stage model.Stage) (*StageStatus, error) {
	cfg, err := config.Load(dir, project, stage)
	if err != nil {
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			// Stage not configured yet; nothing to report.
			return nil, nil
		}
		return nil, err
	}

	requested := cfg.System.ProcessList
	if len(requested) == 0 {
		master, err := metadata.Load(dir, project)
		if err != nil {
			// Configured but unscanned; there is no work to enumerate yet.
			return &StageStatus{Stage: string(stage)}, nil
		}
		requested = master.TiltSeriesIDs()
	}

	conv := catalog.NewConvention(
		cfg.System.OutputPath, cfg.System.OutputRootname, cfg.System.OutputSuffix)
	items, err := catalog.DeriveItems(conv, requested)
	if err != nil {
		return nil, err
	}

	rec, err := record.NewStore(dir).Load(project, stage)
	if err != nil {
		return nil, err
	}

	res := reconcile.New(reconcile.OSStat, nil, reconcile.LogLevelError).Reconcile(items, rec)

	ss := &StageStatus{
		Stage:     string(stage),
		Requested: len(items),
		Recorded:  rec.Len(),
		Satisfied: res.ItemsSkipped,
		Stale:     res.RowsPruned,
	}
	for _, it := range res.Pending {
		ss.Pending = append(ss.Pending, it.TS)
	}
	return ss, nil
}

// Run collects and prints the project status, as JSON or human-readable
// text.
func Run(dir, project string, jsonOutput bool, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}

	ps, err := Collect(dir, project)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ps)
	}

	printStatus(ps, out)
	return nil
}

func printStatus(ps *ProjectStatus, out io.Writer) {
	fmt.Fprintf(out, "Project: %s\n", ps.Project)
	for _, ss := range ps.Stages {
		fmt.Fprintf(out, "\nStage %s:\n", ss.Stage)
		fmt.Fprintf(out, "  requested: %d\n", ss.Requested)
		fmt.Fprintf(out, "  recorded:  %d\n", ss.Recorded)
		fmt.Fprintf(out, "  satisfied: %d\n", ss.Satisfied)
		if ss.Stale > 0 {
			fmt.Fprintf(out, "  stale:     %d (outputs missing, will be redone)\n", ss.Stale)
		}
		if len(ss.Pending) > 0 {
			fmt.Fprintf(out, "  pending:   %v\n", ss.Pending)
		}
	}
}
