// Package lsm implements the per-(partition, bucket) merge-tree write path:
// an in-memory write buffer, a Levels structure tracking sorted runs, a
// CompactManager running universal compaction on a shared worker pool, and
// the changelog producer variants a table may configure.
package lsm

import "github.com/lakestore/core/internal/manifest"

// Levels tracks the sorted runs belonging to one (partition, bucket). Level
// 0 holds zero or more overlapping runs, each the output of one buffer
// flush; level 1 and above each hold exactly one
// sorted, non-overlapping run.
type Levels struct {
	NumLevels int
	Files     [][]*manifest.DataFileMeta
}

// NewLevels returns an empty Levels with numLevels levels (L0..L{n-1}).
func NewLevels(numLevels int) *Levels {
	if numLevels < 1 {
		numLevels = 1
	}
	return &Levels{NumLevels: numLevels, Files: make([][]*manifest.DataFileMeta, numLevels)}
}

// Restore rebuilds Levels from a flat file list recovered from the latest
// snapshot's manifest entries, grouping by each file's own Level field.
func (l *Levels) Restore(files []*manifest.DataFileMeta) {
	for _, f := range files {
		level := f.Level
		if level < 0 {
			level = 0
		}
		for level >= len(l.Files) {
			l.Files = append(l.Files, nil)
		}
		l.Files[level] = append(l.Files[level], f)
	}
	if len(l.Files) > l.NumLevels {
		l.NumLevels = len(l.Files)
	}
}

// AddL0 appends a newly flushed or compacted run to level 0.
func (l *Levels) AddL0(f *manifest.DataFileMeta) {
	l.Files[0] = append(l.Files[0], f)
}

// SetLevel replaces the sorted run at a non-zero level with the output of a
// compaction that targeted it.
func (l *Levels) SetLevel(level int, files []*manifest.DataFileMeta) {
	for level >= len(l.Files) {
		l.Files = append(l.Files, nil)
	}
	l.Files[level] = files
}

// RemoveL0 drops the given files from level 0, e.g. after they have been
// folded into a compaction output.
func (l *Levels) RemoveL0(consumed []*manifest.DataFileMeta) {
	consumedSet := make(map[string]bool, len(consumed))
	for _, f := range consumed {
		consumedSet[f.FileName] = true
	}
	remaining := l.Files[0][:0]
	for _, f := range l.Files[0] {
		if !consumedSet[f.FileName] {
			remaining = append(remaining, f)
		}
	}
	l.Files[0] = remaining
}

// NumSortedRuns counts L0 files (each its own sorted run) plus one run per
// non-empty higher level.
func (l *Levels) NumSortedRuns() int {
	runs := len(l.Files[0])
	for lvl := 1; lvl < len(l.Files); lvl++ {
		if len(l.Files[lvl]) > 0 {
			runs++
		}
	}
	return runs
}

// AllFiles flattens every level into one slice, the shape a restart or a
// full scan needs.
func (l *Levels) AllFiles() []*manifest.DataFileMeta {
	var out []*manifest.DataFileMeta
	for _, lvl := range l.Files {
		out = append(out, lvl...)
	}
	return out
}

// MaxSequence returns the highest MaxSequence across every file currently
// in the Levels, used by Restore to resume sequence numbering.
func (l *Levels) MaxSequence() int64 {
	var max int64
	for _, f := range l.AllFiles() {
		if f.MaxSequence > max {
			max = f.MaxSequence
		}
	}
	return max
}

// TotalSize sums FileSize across every file in the Levels.
func (l *Levels) TotalSize() int64 {
	var total int64
	for _, f := range l.AllFiles() {
		total += f.FileSize
	}
	return total
}
