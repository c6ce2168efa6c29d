package lsm

import (
	"container/heap"
	"io"

	"github.com/lakestore/core/internal/mergefunc"
)

// sortedSource is one input stream to a k-way merge: a file reader plus its
// current head record.
type sortedSource struct {
	idx  int
	next func() (mergefunc.KeyValue, error)

	head    mergefunc.KeyValue
	hasHead bool
	done    bool
}

func (s *sortedSource) advance() error {
	kv, err := s.next()
	if err == io.EOF {
		s.done = true
		s.hasHead = false
		return nil
	}
	if err != nil {
		return err
	}
	s.head = kv
	s.hasHead = true
	return nil
}

// sourceHeap orders sources by (key, sequence) ascending; ties broken by
// source index so a source earlier in the input list sorts before later
// ones, for a stable, deterministic merge.
type sourceHeap []*sortedSource

func (h sourceHeap) Len() int { return len(h) }
func (h sourceHeap) Less(i, j int) bool {
	cmp := mergefunc.CompareKeys(h[i].head.Key, h[j].head.Key)
	if cmp != 0 {
		return cmp < 0
	}
	if h[i].head.Sequence != h[j].head.Sequence {
		return h[i].head.Sequence < h[j].head.Sequence
	}
	return h[i].idx < h[j].idx
}
func (h sourceHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sourceHeap) Push(x any)         { *h = append(*h, x.(*sortedSource)) }
func (h *sourceHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KWayMerger merges N sorted KeyValue streams by (key ASC, sequence ASC),
// the ordering both universal compaction and the read path's merging reader
// require before a merge function can be applied per key group.
type KWayMerger struct {
	h *sourceHeap
}

// NewKWayMerger builds a merger over readers, each a function returning
// successive records in ascending (key, sequence) order and io.EOF when
// exhausted.
func NewKWayMerger(readers []func() (mergefunc.KeyValue, error)) (*KWayMerger, error) {
	h := &sourceHeap{}
	for i, r := range readers {
		src := &sortedSource{idx: i, next: r}
		if err := src.advance(); err != nil {
			return nil, err
		}
		if src.hasHead {
			*h = append(*h, src)
		}
	}
	heap.Init(h)
	return &KWayMerger{h: h}, nil
}

// Next returns the next record in global (key, sequence) order, io.EOF when
// every source is exhausted.
func (m *KWayMerger) Next() (mergefunc.KeyValue, error) {
	if m.h.Len() == 0 {
		return mergefunc.KeyValue{}, io.EOF
	}
	src := (*m.h)[0]
	kv := src.head
	if err := src.advance(); err != nil {
		return mergefunc.KeyValue{}, err
	}
	if src.hasHead {
		heap.Fix(m.h, 0)
	} else {
		heap.Pop(m.h)
	}
	return kv, nil
}

// MergingReader groups a KWayMerger's output by key and applies a
// mergefunc.MergeFunction to each group, yielding at most one record per
// key: the shape both compaction output and the key-value read path need.
type MergingReader struct {
	merger  *KWayMerger
	newFn   func() mergefunc.MergeFunction
	pending *mergefunc.KeyValue
	done    bool
}

func NewMergingReader(merger *KWayMerger, newFn func() mergefunc.MergeFunction) *MergingReader {
	return &MergingReader{merger: merger, newFn: newFn}
}

// Next returns the next merged record, io.EOF when exhausted.
func (r *MergingReader) Next() (mergefunc.KeyValue, error) {
	if r.done {
		return mergefunc.KeyValue{}, io.EOF
	}

	var first mergefunc.KeyValue
	if r.pending != nil {
		first = *r.pending
		r.pending = nil
	} else {
		kv, err := r.merger.Next()
		if err == io.EOF {
			r.done = true
			return mergefunc.KeyValue{}, io.EOF
		}
		if err != nil {
			return mergefunc.KeyValue{}, err
		}
		first = kv
	}

	fn := r.newFn()
	fn.Add(first)
	currentKey := first.Key

	for {
		kv, err := r.merger.Next()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			return mergefunc.KeyValue{}, err
		}
		if mergefunc.CompareKeys(kv.Key, currentKey) != 0 {
			r.pending = &kv
			break
		}
		fn.Add(kv)
	}

	result, ok := fn.GetResult()
	if !ok {
		// The key's merged result was suppressed (e.g. deduplicate saw a
		// terminal delete); move on to the next key group.
		return r.Next()
	}
	return result, nil
}
