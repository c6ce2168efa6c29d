package enumerator

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lakestore/core/internal/manifest"
)

// Split is one file assigned to a bucket, tagged with the snapshot that
// added it so readers can preserve within-bucket commit order.
type Split struct {
	SnapshotID int64
	Bucket     int
	File       manifest.DataFileMeta
}

// ContinuousFileSplitEnumerator fans incremental plans out to registered
// readers under three guarantees (spec §4.K): within a bucket splits are
// handed out lowest-snapshot-id first, a bucket's splits always go to the
// same reader for as long as that reader stays registered, and buckets are
// spread across readers round-robin rather than first-come-first-served.
type ContinuousFileSplitEnumerator struct {
	mu sync.Mutex

	queues   map[int][]Split  // bucket -> pending splits, FIFO
	owner    map[int]string   // bucket -> reader currently holding its affinity
	inFlight map[string][]Split // reader -> splits handed out but not yet acked

	readers  []string // registration order, the round-robin ring
	ringNext int

	logger zerolog.Logger
}

func NewContinuousFileSplitEnumerator(logger zerolog.Logger) *ContinuousFileSplitEnumerator {
	return &ContinuousFileSplitEnumerator{
		queues:   make(map[int][]Split),
		owner:    make(map[int]string),
		inFlight: make(map[string][]Split),
		logger:   logger.With().Str("component", "continuous_split_enumerator").Logger(),
	}
}

// AddPlan enqueues one SnapshotEnumerator tick's splits and assigns any
// newly-appeared, ownerless bucket to the next reader in the round-robin
// ring.
func (e *ContinuousFileSplitEnumerator) AddPlan(plan *IncrementalPlan) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buckets := make([]int, 0, len(plan.SplitsByBucket))
	for bucket := range plan.SplitsByBucket {
		buckets = append(buckets, bucket)
	}
	sort.Ints(buckets)
	for _, bucket := range buckets {
		for _, file := range plan.SplitsByBucket[bucket] {
			e.queues[bucket] = append(e.queues[bucket], Split{SnapshotID: plan.SnapshotID, Bucket: bucket, File: file})
		}
	}
	e.assignOwnerlessBucketsLocked()
}

// RegisterReader admits readerID into the round-robin ring (a no-op if
// already registered) and assigns any ownerless buckets with pending
// splits, covering both a fresh reader joining and a reader signaling
// back-available after a failure.
func (e *ContinuousFileSplitEnumerator) RegisterReader(readerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.readers {
		if r == readerID {
			return
		}
	}
	e.readers = append(e.readers, readerID)
	e.assignOwnerlessBucketsLocked()
}

// MarkReaderUnavailable evicts readerID from the ring, releases its bucket
// affinities, and requeues every split it was holding but had not yet
// acknowledged, restoring their place at the front of their bucket's
// queue so FIFO order across snapshots is preserved once reassigned.
func (e *ContinuousFileSplitEnumerator) MarkReaderUnavailable(readerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.readers {
		if r == readerID {
			e.readers = append(e.readers[:i], e.readers[i+1:]...)
			break
		}
	}
	for bucket, owner := range e.owner {
		if owner == readerID {
			delete(e.owner, bucket)
		}
	}

	pending := e.inFlight[readerID]
	delete(e.inFlight, readerID)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].SnapshotID < pending[j].SnapshotID })
	for i := len(pending) - 1; i >= 0; i-- {
		split := pending[i]
		e.queues[split.Bucket] = append([]Split{split}, e.queues[split.Bucket]...)
	}

	e.assignOwnerlessBucketsLocked()
}

// PollSplit returns the next split readerID should process, false if none
// is currently assigned to it.
func (e *ContinuousFileSplitEnumerator) PollSplit(readerID string) (Split, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var owned []int
	for bucket, owner := range e.owner {
		if owner == readerID && len(e.queues[bucket]) > 0 {
			owned = append(owned, bucket)
		}
	}
	if len(owned) == 0 {
		return Split{}, false
	}
	sort.Ints(owned)
	bucket := owned[0]
	split := e.queues[bucket][0]
	e.queues[bucket] = e.queues[bucket][1:]
	e.inFlight[readerID] = append(e.inFlight[readerID], split)
	return split, true
}

// Ack marks split as processed, removing it from readerID's in-flight set.
func (e *ContinuousFileSplitEnumerator) Ack(readerID string, split Split) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := e.inFlight[readerID]
	for i, s := range pending {
		if s.Bucket == split.Bucket && s.SnapshotID == split.SnapshotID && s.File.FileName == split.File.FileName {
			e.inFlight[readerID] = append(pending[:i], pending[i+1:]...)
			return
		}
	}
}

// assignOwnerlessBucketsLocked binds every bucket with pending work and no
// owner to the next reader in the round-robin ring, in ascending bucket
// order for determinism. Caller must hold e.mu.
func (e *ContinuousFileSplitEnumerator) assignOwnerlessBucketsLocked() {
	if len(e.readers) == 0 {
		return
	}
	var ownerless []int
	for bucket, q := range e.queues {
		if len(q) == 0 {
			continue
		}
		if _, has := e.owner[bucket]; has {
			continue
		}
		ownerless = append(ownerless, bucket)
	}
	sort.Ints(ownerless)
	for _, bucket := range ownerless {
		reader := e.readers[e.ringNext%len(e.readers)]
		e.ringNext++
		e.owner[bucket] = reader
	}
}
