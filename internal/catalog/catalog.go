// Package catalog derives work items and their canonical output locations
// from a naming convention and a requested set of tilt-series indices.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomopipe/tomopipe/internal/model"
)

// Convention describes how output paths are composed from a tilt-series
// index. Composition is referentially transparent: the reconciler relies on
// path equality to correlate record rows with live items.
type Convention struct {
	OutputDir string
	Rootname  string
	Suffix    string
}

// NewConvention normalizes raw config values: a trailing "/" on the output
// path and a trailing "_" on rootname/suffix are trimmed so composed paths
// never carry doubled separators.
func NewConvention(outputPath, rootname, suffix string) Convention {
	return Convention{
		OutputDir: strings.TrimSuffix(outputPath, "/"),
		Rootname:  strings.TrimSuffix(rootname, "_"),
		Suffix:    strings.TrimSuffix(suffix, "_"),
	}
}

// Basename returns the stack basename for a tilt-series, e.g. "TS_03" for
// rootname "TS" and index 3.
func (c Convention) Basename(ts int) string {
	return fmt.Sprintf("%s_%02d%s", c.Rootname, ts, c.Suffix)
}

// Dir returns the per-item subfolder holding all of the item's artifacts.
func (c Convention) Dir(ts int) string {
	return filepath.Join(c.OutputDir, c.Basename(ts))
}

// Item is one unit of work: a tilt-series index plus the output artifacts it
// is expected to produce. Items are rebuilt from the requested set on every
// invocation and never persisted directly.
type Item struct {
	TS          int
	Dir         string
	AlignOutput string
	ReconOutput string
}

// OutputPaths lists every artifact the item must produce to count as
// completed. Partial presence means the item is reprocessed in full.
func (it Item) OutputPaths() []string {
	return []string{it.AlignOutput, it.ReconOutput}
}

// DeriveItems validates the requested indices and composes each item's output
// paths. It performs no filesystem access; call EnsureDirs before handing the
// items to the execution loop.
func DeriveItems(conv Convention, requested []int) ([]Item, error) {
	if len(requested) == 0 {
		return nil, &model.ConfigurationError{Reason: "process_list is empty"}
	}
	if conv.Rootname == "" {
		return nil, &model.ConfigurationError{Reason: "output_rootname is empty"}
	}
	if conv.OutputDir == "" {
		return nil, &model.ConfigurationError{Reason: "output_path is empty"}
	}

	seen := make(map[int]bool, len(requested))
	items := make([]Item, 0, len(requested))
	for _, ts := range requested {
		if ts < 0 {
			return nil, &model.ConfigurationError{
				Reason: fmt.Sprintf("invalid tilt-series index %d in process_list", ts),
			}
		}
		if seen[ts] {
			return nil, &model.ConfigurationError{
				Reason: fmt.Sprintf("duplicate tilt-series index %d in process_list", ts),
			}
		}
		seen[ts] = true

		dir := conv.Dir(ts)
		base := conv.Basename(ts)
		items = append(items, Item{
			TS:          ts,
			Dir:         dir,
			AlignOutput: filepath.Join(dir, base+"_ali.mrc"),
			ReconOutput: filepath.Join(dir, base+"_rec.mrc"),
		})
	}
	return items, nil
}

// EnsureDirs creates each item's output subfolder. Creation is idempotent;
// an already-existing directory is not an error.
func EnsureDirs(items []Item) error {
	for _, it := range items {
		if err := os.MkdirAll(it.Dir, 0755); err != nil {
			return fmt.Errorf("create output dir %s: %w", it.Dir, err)
		}
	}
	return nil
}
