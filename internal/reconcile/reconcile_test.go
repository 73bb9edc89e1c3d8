package reconcile

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomopipe/tomopipe/internal/catalog"
	"github.com/tomopipe/tomopipe/internal/record"
)

func testItems(t *testing.T, dir string, ids ...int) []catalog.Item {
	t.Helper()
	conv := catalog.NewConvention(dir, "TS", "")
	items, err := catalog.DeriveItems(conv, ids)
	require.NoError(t, err)
	return items
}

func rowFor(it catalog.Item) record.Row {
	return record.Row{TS: it.TS, AlignOutput: it.AlignOutput, ReconOutput: it.ReconOutput}
}

// touch creates the item's output artifacts on disk.
func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("mrc"), 0644))
	}
}

func newTestReconciler(stat StatFunc) *Reconciler {
	return New(stat, log.New(&bytes.Buffer{}, "", 0), LogLevelDebug)
}

func pendingIDs(res Result) []int {
	ids := make([]int, 0, len(res.Pending))
	for _, it := range res.Pending {
		ids = append(ids, it.TS)
	}
	return ids
}

func TestReconcile_EmptyRecordAllPending(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1, 2, 3)

	res := newTestReconciler(nil).Reconcile(items, &record.Record{})

	assert.Equal(t, []int{1, 2, 3}, pendingIDs(res))
	assert.Equal(t, 0, res.Record.Len())
	assert.Equal(t, 0, res.RowsPruned)
}

// Scenario B: a recorded item with outputs on disk is skipped.
func TestReconcile_SatisfiedItemSkipped(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1, 2, 3)

	touch(t, items[1].AlignOutput, items[1].ReconOutput)
	rec := &record.Record{}
	rec.Append(rowFor(items[1]))

	res := newTestReconciler(nil).Reconcile(items, rec)

	assert.Equal(t, []int{1, 3}, pendingIDs(res))
	assert.Equal(t, 1, res.ItemsSkipped)
	assert.Equal(t, 1, res.Record.Len())
}

// Scenario C: a recorded item whose output vanished is pruned from the
// record and becomes pending again.
func TestReconcile_StaleRowSelfHealing(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1, 2, 3)

	rec := &record.Record{}
	rec.Append(rowFor(items[1])) // nothing on disk

	res := newTestReconciler(nil).Reconcile(items, rec)

	assert.Equal(t, []int{1, 2, 3}, pendingIDs(res))
	assert.Equal(t, 0, res.Record.Len())
	assert.Equal(t, 1, res.RowsPruned)
}

// Pass 1 considers all rows, not only those for requested ids: a stale row
// for an unrequested item must still be pruned.
func TestReconcile_PrunesStaleRowsOutsideRequestedSet(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1)
	other := testItems(t, dir, 9)

	rec := &record.Record{}
	rec.Append(rowFor(other[0])) // ts 9, not requested, output missing

	res := newTestReconciler(nil).Reconcile(items, rec)

	assert.Equal(t, 0, res.Record.Len())
	assert.Equal(t, 1, res.RowsPruned)
	assert.Equal(t, []int{1}, pendingIDs(res))
}

func TestReconcile_AllSatisfiedIsNoOp(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1, 2)

	rec := &record.Record{}
	for _, it := range items {
		touch(t, it.AlignOutput, it.ReconOutput)
		rec.Append(rowFor(it))
	}

	res := newTestReconciler(nil).Reconcile(items, rec)

	assert.Empty(t, res.Pending)
	assert.Equal(t, 2, res.ItemsSkipped)
	assert.Equal(t, 2, res.Record.Len())
}

// An item with only some of its artifacts recorded is not completed and is
// reprocessed in full.
func TestReconcile_PartialArtifactSetNotSatisfied(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1)

	touch(t, items[0].ReconOutput)
	row := rowFor(items[0])
	row.AlignOutput = "" // prior stage recorded only the recon artifact
	rec := &record.Record{}
	rec.Append(row)

	res := newTestReconciler(nil).Reconcile(items, rec)

	assert.Equal(t, []int{1}, pendingIDs(res))
}

// A row loses its claim if any of its recorded outputs vanished, even when
// the recon artifact survives.
func TestReconcile_RowWithMissingAlignArtifactPruned(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1)

	touch(t, items[0].ReconOutput) // align output missing
	rec := &record.Record{}
	rec.Append(rowFor(items[0]))

	res := newTestReconciler(nil).Reconcile(items, rec)

	assert.Equal(t, 0, res.Record.Len())
	assert.Equal(t, []int{1}, pendingIDs(res))
}

func TestReconcile_StatErrorTreatedAsMissing(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1)

	rec := &record.Record{}
	rec.Append(rowFor(items[0]))

	failing := func(string) (bool, error) { return false, errors.New("permission denied") }
	res := newTestReconciler(failing).Reconcile(items, rec)

	// Conservative: the run proceeds and the item is reprocessed.
	assert.Equal(t, 0, res.Record.Len())
	assert.Equal(t, []int{1}, pendingIDs(res))
}

func TestReconcile_PendingSortedAscending(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 7, 2, 11)

	res := newTestReconciler(nil).Reconcile(items, &record.Record{})

	assert.Equal(t, []int{2, 7, 11}, pendingIDs(res))
}

func TestReconcile_Idempotent(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1, 2, 3)

	touch(t, items[0].AlignOutput, items[0].ReconOutput)
	rec := &record.Record{}
	rec.Append(rowFor(items[0]), rowFor(items[2])) // ts 3 row is stale

	r := newTestReconciler(nil)
	first := r.Reconcile(items, rec)
	second := r.Reconcile(items, rec)

	assert.Equal(t, first.Record.Rows, second.Record.Rows)
	assert.Equal(t, pendingIDs(first), pendingIDs(second))

	// Inputs are not mutated: the original record still holds both rows.
	assert.Equal(t, 2, rec.Len())
}

// No double-processing: an item recorded with outputs on disk never appears
// in the pending list.
func TestReconcile_NoDoubleProcessing(t *testing.T) {
	dir := t.TempDir()
	items := testItems(t, dir, 1, 2, 3, 4)

	rec := &record.Record{}
	for _, it := range items[:2] {
		touch(t, it.AlignOutput, it.ReconOutput)
		rec.Append(rowFor(it))
	}

	res := newTestReconciler(nil).Reconcile(items, rec)

	for _, it := range res.Pending {
		assert.NotContains(t, []int{1, 2}, it.TS)
	}
}
