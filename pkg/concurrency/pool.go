// Package concurrency wraps alitto/pond with the pool defaults and logging
// used across the engine.
package concurrency

import (
	"fmt"
	"time"

	"trade_engine/internal/core"

	"github.com/alitto/pond"
)

// PoolConfig describes one named worker pool.
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
	NonBlocking bool // Submit returns an error instead of blocking when full
}

// WorkerPool is a named pond pool with recovered panics logged rather than
// crashing the process.
type WorkerPool struct {
	pool   *pond.WorkerPool
	cfg    PoolConfig
	logger core.ILogger
}

// NewWorkerPool creates a pool, applying defaults for unset limits.
func NewWorkerPool(cfg PoolConfig, logger core.ILogger) *WorkerPool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 100
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = time.Minute
	}

	poolLogger := logger.WithField("component", "worker_pool").WithField("pool", cfg.Name)
	return &WorkerPool{
		pool: pond.New(
			cfg.MaxWorkers,
			cfg.MaxCapacity,
			pond.MinWorkers(1),
			pond.IdleTimeout(cfg.IdleTimeout),
			pond.Strategy(pond.Balanced()),
			pond.PanicHandler(func(p interface{}) {
				poolLogger.Error("Worker panic recovered", "panic", p)
			}),
		),
		cfg:    cfg,
		logger: poolLogger,
	}
}

// Submit queues a task. With NonBlocking set, a full queue is an error.
func (wp *WorkerPool) Submit(task func()) error {
	if wp.cfg.NonBlocking && !wp.pool.TrySubmit(task) {
		return fmt.Errorf("pool %q full (capacity %d)", wp.cfg.Name, wp.cfg.MaxCapacity)
	}
	if !wp.cfg.NonBlocking {
		wp.pool.Submit(task)
	}
	return nil
}

// Group returns a task group for fan-out/join work.
func (wp *WorkerPool) Group() *pond.TaskGroup {
	return wp.pool.Group()
}

// Stop drains the queue and waits for in-flight tasks.
func (wp *WorkerPool) Stop() {
	wp.pool.StopAndWait()
	wp.logger.Debug("Pool stopped",
		"submitted", wp.pool.SubmittedTasks(),
		"failed", wp.pool.FailedTasks())
}
