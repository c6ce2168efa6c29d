package table

import (
	"github.com/lakestore/core/internal/enumerator"
	"github.com/lakestore/core/internal/scan"
)

// NewSnapshotEnumerator seeds a streaming enumerator at the snapshot opts
// resolves to (the same config.ScanMode semantics a one-shot Scan uses), so
// a continuous reader picks up exactly where a batch Scan would have
// started.
func (t *Table) NewSnapshotEnumerator(opts scan.Options) (*enumerator.SnapshotEnumerator, error) {
	startID, err := enumerator.ResolveStart(t.scanner, opts)
	if err != nil {
		return nil, err
	}
	return enumerator.NewSnapshotEnumerator(t.io, t.layoutMgr, t.snapshots, t.manifests, startID, t.logger), nil
}

// NewSplitEnumerator returns a fresh ContinuousFileSplitEnumerator for
// fanning a SnapshotEnumerator's incremental plans out to parallel readers.
func (t *Table) NewSplitEnumerator() *enumerator.ContinuousFileSplitEnumerator {
	return enumerator.NewContinuousFileSplitEnumerator(t.logger)
}
