package lsm

import "github.com/lakestore/core/pkg/errors"

var (
	ErrWriteFailed      = errors.MustNewCode("lsm.write_failed")
	ErrReadFailed       = errors.MustNewCode("lsm.read_failed")
	ErrBufferFull       = errors.MustNewCode("lsm.buffer_full")
	ErrCompactionFailed = errors.MustNewCode("lsm.compaction_failed")
	ErrTooManySortedRuns = errors.MustNewCode("lsm.too_many_sorted_runs")
	ErrPoolNotRunning   = errors.MustNewCode("lsm.worker_pool.not_running")
	ErrPoolAlreadyRunning = errors.MustNewCode("lsm.worker_pool.already_running")
	ErrQueueFull        = errors.MustNewCode("lsm.worker_pool.queue_full")
)
