package table

import (
	"fmt"
	"hash/fnv"
)

// bucketOf assigns row to one of numBuckets buckets by hashing the string
// form of its bucket-key column values, the same fnv-1a hash
// internal/types uses for DataType.Hash() rather than introducing a second
// hashing dependency for one more "hash a value" concern.
func bucketOf(row []any, bucketKeyIdx []int, numBuckets int) int {
	if numBuckets <= 0 {
		numBuckets = 1
	}
	h := fnv.New64a()
	for _, idx := range bucketKeyIdx {
		fmt.Fprintf(h, "%v\x1f", row[idx])
	}
	return int(h.Sum64() % uint64(numBuckets))
}
