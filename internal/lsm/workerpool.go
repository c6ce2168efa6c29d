package lsm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakestore/core/pkg/errors"
)

// Task is one unit of work a WorkerPool executes, e.g. a single compaction
// job for one (partition, bucket).
type Task interface {
	Execute(ctx context.Context) error
	GetID() string
}

// WorkerPool runs submitted Tasks across a fixed number of goroutines,
// shared by every CompactManager in a table store so compaction concurrency
// stays bounded regardless of how many buckets are active.
type WorkerPool struct {
	maxWorkers  int
	taskTimeout time.Duration
	workers     []*worker
	taskQueue   chan Task
	logger      zerolog.Logger

	mu      sync.RWMutex
	running bool
	stats   *PoolStats
}

// PoolStats summarizes a pool's throughput.
type PoolStats struct {
	TotalWorkers   int
	ActiveWorkers  int
	TasksQueued    int
	TasksCompleted int64
	TasksFailed    int64
	TotalWorkTime  time.Duration
}

type workerStats struct {
	tasksProcessed int64
	totalWorkTime  time.Duration
	busy           bool
}

type worker struct {
	id        int
	pool      *WorkerPool
	taskQueue <-chan Task
	logger    zerolog.Logger
	stats     *workerStats
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewWorkerPool returns a pool with maxWorkers goroutines, each executing a
// task under taskTimeout before it is abandoned and counted as failed.
func NewWorkerPool(maxWorkers int, taskTimeout time.Duration, logger zerolog.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 5 * time.Minute
	}

	pool := &WorkerPool{
		maxWorkers:  maxWorkers,
		taskTimeout: taskTimeout,
		taskQueue:   make(chan Task, maxWorkers*4),
		logger:      logger.With().Str("component", "lsm.worker_pool").Logger(),
		stats:       &PoolStats{TotalWorkers: maxWorkers},
	}
	pool.workers = make([]*worker, maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		pool.workers[i] = pool.newWorker(i)
	}
	return pool
}

// Start launches every worker goroutine.
func (p *WorkerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New(ErrPoolAlreadyRunning, "worker pool is already running", nil)
	}
	for _, w := range p.workers {
		go w.run()
	}
	p.running = true
	p.logger.Info().Int("max_workers", p.maxWorkers).Msg("worker pool started")
	return nil
}

// Stop cancels every worker and closes the task queue. Tasks still queued
// when Stop is called are dropped without executing.
func (p *WorkerPool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return errors.New(ErrPoolNotRunning, "worker pool is not running", nil)
	}
	for _, w := range p.workers {
		w.cancel()
	}
	close(p.taskQueue)
	p.running = false
	p.logger.Info().Msg("worker pool stopped")
	return nil
}

// Submit enqueues a task, failing immediately rather than blocking if the
// queue is full so a caller can fall back to synchronous compaction.
func (p *WorkerPool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return errors.New(ErrPoolNotRunning, "worker pool is not running", nil)
	}
	select {
	case p.taskQueue <- task:
		return nil
	default:
		return errors.New(ErrQueueFull, "worker pool task queue is full", nil).AddContext("task_id", task.GetID())
	}
}

// Stats returns a snapshot of pool throughput.
func (p *WorkerPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	active := 0
	for _, w := range p.workers {
		if w.stats.busy {
			active++
		}
	}
	return PoolStats{
		TotalWorkers:   p.stats.TotalWorkers,
		ActiveWorkers:  active,
		TasksQueued:    len(p.taskQueue),
		TasksCompleted: p.stats.TasksCompleted,
		TasksFailed:    p.stats.TasksFailed,
		TotalWorkTime:  p.stats.TotalWorkTime,
	}
}

func (p *WorkerPool) newWorker(id int) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		id:        id,
		pool:      p,
		taskQueue: p.taskQueue,
		logger:    p.logger.With().Int("worker_id", id).Logger(),
		stats:     &workerStats{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (w *worker) run() {
	for {
		select {
		case task, ok := <-w.taskQueue:
			if !ok {
				return
			}
			w.process(task)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *worker) process(task Task) {
	start := time.Now()
	w.stats.busy = true
	defer func() { w.stats.busy = false }()

	ctx, cancel := context.WithTimeout(w.ctx, w.pool.taskTimeout)
	defer cancel()

	if err := task.Execute(ctx); err != nil {
		w.pool.mu.Lock()
		w.pool.stats.TasksFailed++
		w.pool.mu.Unlock()
		w.logger.Error().Err(err).Str("task_id", task.GetID()).Msg("compaction task failed")
	} else {
		w.pool.mu.Lock()
		w.pool.stats.TasksCompleted++
		w.pool.mu.Unlock()
	}

	elapsed := time.Since(start)
	w.stats.tasksProcessed++
	w.stats.totalWorkTime += elapsed
	w.pool.mu.Lock()
	w.pool.stats.TotalWorkTime += elapsed
	w.pool.mu.Unlock()
}
