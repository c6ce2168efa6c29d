package scan

import (
	"bytes"
	"sort"

	"github.com/lakestore/core/internal/config"
	"github.com/lakestore/core/internal/manifest"
)

// SplitGenerator packs one (partition, bucket) group's surviving files into
// the splits a reader opens independently (spec §4.H step 5).
type SplitGenerator struct {
	cfg  *config.Config
	isPK bool
}

func NewSplitGenerator(cfg *config.Config, isPK bool) *SplitGenerator {
	return &SplitGenerator{cfg: cfg, isPK: isPK}
}

// Generate packs one group's files, append-only style or merge-tree style
// depending on the table shape.
func (g *SplitGenerator) Generate(group *Split) []*Split {
	if len(group.Files) == 0 {
		return nil
	}
	if g.isPK {
		return g.generateMergeTree(group)
	}
	return g.generateAppendOnly(group)
}

// generateAppendOnly greedily packs files in encounter order, closing a
// split once its accumulated fileSize + per-file openFileCost reaches
// config.TargetFileSize. Order doesn't affect correctness for append-only
// tables since no merge across files is required within a split.
func (g *SplitGenerator) generateAppendOnly(group *Split) []*Split {
	var splits []*Split
	var current []manifest.DataFileMeta
	var accumulated int64

	flush := func() {
		if len(current) == 0 {
			return
		}
		splits = append(splits, &Split{PartitionValues: group.PartitionValues, Bucket: group.Bucket, Files: current})
		current = nil
		accumulated = 0
	}

	for _, f := range group.Files {
		cost := f.FileSize + g.cfg.OpenFileCost
		if accumulated > 0 && accumulated+cost > g.cfg.TargetFileSize {
			flush()
		}
		current = append(current, f)
		accumulated += cost
	}
	flush()
	return splits
}

// generateMergeTree keeps every file needed to merge-reduce a bucket
// together, UNLESS it can prove disjoint key ranges by sweeping the merged
// [MinKey, MaxKey] intervals of every file: files whose intervals chain
// together via overlap must share a split (the merge function needs to see
// every version of a key in arrival order); files in a separate,
// non-overlapping chain can be read independently.
func (g *SplitGenerator) generateMergeTree(group *Split) []*Split {
	files := append([]manifest.DataFileMeta(nil), group.Files...)
	sort.Slice(files, func(i, j int) bool { return bytes.Compare(files[i].MinKey, files[j].MinKey) < 0 })

	var splits []*Split
	var current []manifest.DataFileMeta
	var currentMax []byte

	flush := func() {
		if len(current) == 0 {
			return
		}
		splits = append(splits, &Split{PartitionValues: group.PartitionValues, Bucket: group.Bucket, Files: current})
		current = nil
		currentMax = nil
	}

	for _, f := range files {
		if len(current) > 0 && bytes.Compare(f.MinKey, currentMax) > 0 {
			flush()
		}
		current = append(current, f)
		if currentMax == nil || bytes.Compare(f.MaxKey, currentMax) > 0 {
			currentMax = f.MaxKey
		}
	}
	flush()
	return splits
}
