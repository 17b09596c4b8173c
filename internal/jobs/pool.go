package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler processes one job id. It must respect ctx cancellation.
type Handler func(ctx context.Context, id string)

// Pool is a bounded queue of job ids drained by a fixed set of workers.
// Each job is handled by exactly one worker.
type Pool struct {
	queue   chan string
	workers int
	logger  *slog.Logger

	inFlight atomic.Int32
}

// PoolConfig configures a new pool.
type PoolConfig struct {
	Logger    *slog.Logger
	Workers   int // Number of concurrent jobs (default 2)
	QueueSize int // Size of the pending queue (default 256)
}

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Workers    int `json:"workers"`
	InFlight   int `json:"in_flight"`
	QueueDepth int `json:"queue_depth"`
}

// NewPool creates a new pool.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Pool{
		queue:   make(chan string, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Enqueue adds a job id to the queue without blocking.
func (p *Pool) Enqueue(id string) error {
	select {
	case p.queue <- id:
		p.logger.Debug("job enqueued", "job_id", id, "depth", len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight handler has returned.
func (p *Pool) Run(ctx context.Context, handle Handler) {
	p.logger.Info("starting worker pool", "count", p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.workerLoop(ctx, n, handle)
		}(i)
	}
	wg.Wait()

	p.logger.Info("worker pool stopped")
}

func (p *Pool) workerLoop(ctx context.Context, n int, handle Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			// Both cases can be ready at once; a cancelled pool leaves the
			// job queued in the store for the next start to resume.
			if ctx.Err() != nil {
				return
			}
			p.inFlight.Add(1)
			p.logger.Debug("worker picked up job", "worker", n, "job_id", id)
			handle(ctx, id)
			p.inFlight.Add(-1)
		}
	}
}

// Status returns a snapshot of the pool.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Workers:    p.workers,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
	}
}
