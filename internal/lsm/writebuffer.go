package lsm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lakestore/core/internal/mergefunc"
)

// WriteBuffer is the in-memory sorted map a MergeTreeWriter accumulates
// records into before a flush: one entry per key, the latest write winning
// immediately rather than waiting for compaction, which keeps the buffer's
// memory footprint bounded by key cardinality rather than write volume.
//
// The spec allows this buffer to spill to a local file once a memory budget
// is exceeded; this implementation does not spill and instead keeps buffers
// small by flushing more often: MergeTreeWriter.Write flushes once SizeBytes
// reaches WriteBufferSizeBytes.
type WriteBuffer struct {
	mu      sync.Mutex
	entries map[string]mergefunc.KeyValue
	size    int64
}

func NewWriteBuffer() *WriteBuffer {
	return &WriteBuffer{entries: make(map[string]mergefunc.KeyValue)}
}

// Put records one write, overwriting any earlier buffered write for the
// same key regardless of relative sequence (the buffer holds only the most
// recently appended state per key; compaction reconciles cross-flush
// ordering via sequence numbers already embedded in each KeyValue).
func (b *WriteBuffer) Put(kv mergefunc.KeyValue) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := keyString(kv.Key)
	if existing, exists := b.entries[k]; exists {
		b.size -= estimateSize(existing)
	}
	b.entries[k] = kv
	b.size += estimateSize(kv)
}

// Len returns the number of distinct keys buffered.
func (b *WriteBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// SizeBytes returns the buffer's estimated memory footprint.
func (b *WriteBuffer) SizeBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Drain returns every buffered record sorted by key ascending and empties
// the buffer, the form a flush writes out as one new L0 sorted run.
func (b *WriteBuffer) Drain() []mergefunc.KeyValue {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]mergefunc.KeyValue, 0, len(b.entries))
	for _, kv := range b.entries {
		out = append(out, kv)
	}
	sort.Slice(out, func(i, j int) bool {
		return mergefunc.CompareKeys(out[i].Key, out[j].Key) < 0
	})

	b.entries = make(map[string]mergefunc.KeyValue)
	b.size = 0
	return out
}

func estimateSize(kv mergefunc.KeyValue) int64 {
	size := int64(24) // sequence + kind + slice headers, a rough constant overhead
	for _, v := range kv.Key {
		size += estimateValueSize(v)
	}
	for _, v := range kv.Value {
		size += estimateValueSize(v)
	}
	return size
}

func estimateValueSize(v any) int64 {
	switch x := v.(type) {
	case string:
		return int64(len(x)) + 16
	case []byte:
		return int64(len(x)) + 16
	default:
		return 16
	}
}

func keyString(key []any) string {
	s := ""
	for i, v := range key {
		if i > 0 {
			s += "\x00"
		}
		s += toKeyPart(v)
	}
	return s
}

func toKeyPart(v any) string {
	switch x := v.(type) {
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
