package scan

import "bytes"

// PartitionPredicate reports whether a given partition value tuple could
// possibly hold rows of interest. A nil predicate matches every partition.
type PartitionPredicate func(partitionValues []string) bool

// BucketFilter reports whether a bucket should be scanned. A nil filter
// matches every bucket.
type BucketFilter func(bucket int) bool

// KeyFilter bounds the primary key range a merge-tree scan is interested
// in; a file whose [MinKey, MaxKey] range doesn't intersect [Low, High] can
// never contribute a matching row and is pruned before it is opened.
// Low/High use nil to mean unbounded on that side.
type KeyFilter struct {
	Low  []byte
	High []byte
}

// Satisfiable reports whether a file's key range could overlap the filter's
// range. Only used for PK tables; see spec §4.H for why value-filter
// pushdown is unsafe there.
func (f *KeyFilter) Satisfiable(minKey, maxKey []byte) bool {
	if f == nil {
		return true
	}
	if f.High != nil && bytes.Compare(minKey, f.High) > 0 {
		return false
	}
	if f.Low != nil && bytes.Compare(maxKey, f.Low) < 0 {
		return false
	}
	return true
}

// ValueFilter expresses a pushdown-able constraint on a non-key column,
// identified by its stats index (manifest.DataFileMeta.ValueStatsCols).
// RequireNonNull prunes a file none of whose rows in that column could be
// non-null. Only NullCounts is tracked per file, so this is the only
// pushdown ValueFilter can perform without opening the file.
type ValueFilter struct {
	Column         int
	RequireNonNull bool
}

// Satisfiable reports whether a file could contain a row satisfying the
// filter, given its row count and per-column null counts.
func (f *ValueFilter) Satisfiable(rowCount int64, nullCounts map[int]int64) bool {
	if f == nil {
		return true
	}
	if f.RequireNonNull {
		if nullCounts[f.Column] >= rowCount {
			return false
		}
	}
	return true
}
