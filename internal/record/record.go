// Package record persists the durable ledger of work items with verified
// existing outputs, one document per (project, stage) pair.
package record

import (
	"fmt"
	"sort"
	"strings"
)

// Row is one ledger entry. A row's presence claims "this item's outputs exist
// on disk"; only the reconciler may falsify and remove that claim. Field
// order is significant: downstream tools diff the document across runs.
type Row struct {
	TS          int    `yaml:"ts"`
	AlignOutput string `yaml:"align_output"`
	ReconOutput string `yaml:"recon_output"`

	// Aux carries fields written by a prior stage's record (e.g. intermediate
	// input-path references) through to downstream consumers untouched.
	Aux map[string]string `yaml:",inline"`
}

// key returns a canonical identity for exact-duplicate detection over the
// full field tuple, including aux fields.
func (r Row) key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\x1f%s\x1f%s", r.TS, r.AlignOutput, r.ReconOutput)
	if len(r.Aux) > 0 {
		keys := make([]string, 0, len(r.Aux))
		for k := range r.Aux {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "\x1f%s=%s", k, r.Aux[k])
		}
	}
	return sb.String()
}

// Record is the full ledger: an ordered sequence of rows. The zero value is
// a valid empty record (the first-run case).
type Record struct {
	Rows []Row `yaml:"rows"`
}

// Append adds rows, silently dropping any that exactly duplicate an existing
// row. Duplicates legitimately arise because the execution loop persists
// after every item and re-reads before mutation.
func (rec *Record) Append(rows ...Row) {
	seen := make(map[string]bool, len(rec.Rows)+len(rows))
	for _, r := range rec.Rows {
		seen[r.key()] = true
	}
	for _, r := range rows {
		k := r.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		rec.Rows = append(rec.Rows, r)
	}
}

// Dedupe collapses exact-duplicate rows in place, preserving first-seen order.
func (rec *Record) Dedupe() {
	seen := make(map[string]bool, len(rec.Rows))
	kept := rec.Rows[:0]
	for _, r := range rec.Rows {
		k := r.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, r)
	}
	rec.Rows = kept
}

// PathIndex returns the set of every output path claimed by the record, for
// O(1) satisfied-item lookups.
func (rec *Record) PathIndex() map[string]bool {
	idx := make(map[string]bool, 2*len(rec.Rows))
	for _, r := range rec.Rows {
		if r.AlignOutput != "" {
			idx[r.AlignOutput] = true
		}
		if r.ReconOutput != "" {
			idx[r.ReconOutput] = true
		}
	}
	return idx
}

// Len returns the number of rows.
func (rec *Record) Len() int { return len(rec.Rows) }
