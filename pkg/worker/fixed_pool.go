package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/jzx17/calcpool/pkg/types"
)

// FixedWorkerPoolConfig defines configuration for fixed worker pool
type FixedWorkerPoolConfig struct {
	// PoolSize is the number of workers, within [types.MinPoolSize, types.MaxPoolSize]
	PoolSize int

	// QueueCapacity bounds pending work; 0 keeps the queue unbounded
	QueueCapacity int

	// SpawnTimeout is how long construction waits for every worker to report ready
	SpawnTimeout time.Duration

	// LockOSThread pins each worker goroutine to its own OS thread
	LockOSThread bool

	// OnWorkerStart runs on the worker goroutine before it accepts messages.
	// A non-nil error aborts pool construction with ErrSpawnFailure.
	OnWorkerStart func(workerID int) error

	// BaseContext is passed to every task (optional, defaults to context.Background)
	BaseContext context.Context

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// ErrorHandler receives every task failure
	ErrorHandler types.ErrorHandler

	// Observer receives lifecycle events (optional)
	Observer Observer

	// Logger (optional, defaults to discarding output)
	Logger *slog.Logger
}

// DefaultFixedWorkerPoolConfig returns default configuration
func DefaultFixedWorkerPoolConfig() *FixedWorkerPoolConfig {
	return &FixedWorkerPoolConfig{
		PoolSize:     4,
		SpawnTimeout: 5 * time.Second,
		Clock:        types.NewRealClock(),
	}
}

const (
	poolStateRunning int32 = iota
	poolStateStopping
	poolStateStopped
)

// FixedWorkerPool owns a fixed set of workers sharing one dispatch queue
type FixedWorkerPool struct {
	config  FixedWorkerPoolConfig
	workers []*Worker
	queue   *Queue
	logger  *slog.Logger

	state int32
	done  chan struct{}

	totalSubmitted int64
	totalRejected  int64
}

type spawnResult struct {
	workerID int
	err      error
}

// NewFixedWorkerPool validates the configuration and spawns every worker.
// On failure no pool is returned. Workers that started have exited; a worker
// still blocked in OnWorkerStart after SpawnTimeout exits once its hook returns.
func NewFixedWorkerPool(config *FixedWorkerPoolConfig) (*FixedWorkerPool, error) {
	if config == nil {
		config = DefaultFixedWorkerPoolConfig()
	}

	if config.PoolSize < types.MinPoolSize || config.PoolSize > types.MaxPoolSize {
		return nil, types.NewPoolError("create", "", fmt.Errorf("%w: min=%d max=%d got=%d",
			types.ErrInvalidSize, types.MinPoolSize, types.MaxPoolSize, config.PoolSize))
	}
	if config.QueueCapacity < 0 {
		return nil, types.NewPoolError("create", "", fmt.Errorf("%w: queue capacity must not be negative, got %d",
			types.ErrInvalidConfig, config.QueueCapacity))
	}

	cfg := *config
	if cfg.SpawnTimeout <= 0 {
		cfg.SpawnTimeout = 5 * time.Second
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Clock == nil {
		cfg.Clock = types.NewRealClock()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool := &FixedWorkerPool{
		config:  cfg,
		workers: make([]*Worker, cfg.PoolSize),
		queue:   NewQueue(cfg.QueueCapacity),
		logger:  cfg.Logger,
		done:    make(chan struct{}),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		w := NewWorkerWithClock(i, pool.queue, cfg.Clock)
		w.SetErrorHandler(cfg.ErrorHandler)
		w.SetObserver(cfg.Observer)
		w.SetLogger(cfg.Logger)
		pool.workers[i] = w
	}

	if err := pool.spawnAll(); err != nil {
		return nil, err
	}

	pool.logger.Info("Worker pool started",
		slog.Int("size", cfg.PoolSize),
		slog.Int("queue_capacity", cfg.QueueCapacity),
	)

	return pool, nil
}

// spawnAll starts every worker and waits until each reports ready
func (p *FixedWorkerPool) spawnAll() error {
	ready := make(chan spawnResult, len(p.workers))
	for _, w := range p.workers {
		go p.spawn(w, ready)
	}

	timer := p.config.Clock.NewTimer(p.config.SpawnTimeout)
	defer timer.Stop()

	reported := make([]bool, len(p.workers))
	var spawnErr error

	for pending := len(p.workers); pending > 0 && spawnErr == nil; pending-- {
		select {
		case res := <-ready:
			reported[res.workerID] = true
			if res.err != nil {
				spawnErr = fmt.Errorf("%w: worker %d: %v", types.ErrSpawnFailure, res.workerID, res.err)
			}
		case <-timer.C():
			spawnErr = fmt.Errorf("%w: %d of %d workers did not start within %v",
				types.ErrSpawnFailure, pending, len(p.workers), p.config.SpawnTimeout)
		}
	}

	if spawnErr == nil {
		return nil
	}

	p.logger.Error("Worker pool construction aborted", slog.String("error", spawnErr.Error()))

	// One shutdown message per spawned goroutine: workers that started exit now,
	// workers still inside their start hook exit as soon as they reach the queue.
	_ = p.queue.Seal(len(p.workers))
	atomic.StoreInt32(&p.state, poolStateStopped)

	for _, res := range drain(ready) {
		reported[res.workerID] = true
	}
	for i, w := range p.workers {
		if reported[i] {
			<-w.Done()
		}
	}
	close(p.done)

	return types.NewPoolError("create", "", spawnErr)
}

// spawn is the body of each worker goroutine
func (p *FixedWorkerPool) spawn(w *Worker, ready chan<- spawnResult) {
	if p.config.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	if hook := p.config.OnWorkerStart; hook != nil {
		if err := hook(w.ID()); err != nil {
			w.terminate()
			ready <- spawnResult{workerID: w.ID(), err: err}
			return
		}
	}

	ready <- spawnResult{workerID: w.ID()}
	w.Run(p.config.BaseContext)
}

func drain(ch <-chan spawnResult) []spawnResult {
	var out []spawnResult
	for {
		select {
		case res := <-ch:
			out = append(out, res)
		default:
			return out
		}
	}
}

// Submit enqueues a task; it never waits for a free worker
func (p *FixedWorkerPool) Submit(task types.Task) error {
	if task == nil {
		return types.NewPoolError("submit", "", types.ErrNilTask)
	}

	atomic.AddInt64(&p.totalSubmitted, 1)
	if err := p.queue.Push(WorkMessage(task)); err != nil {
		atomic.AddInt64(&p.totalSubmitted, -1)
		atomic.AddInt64(&p.totalRejected, 1)
		p.config.Observer.TaskRejected(task.ID(), err)
		return types.NewPoolError("submit", task.ID(), err)
	}

	p.config.Observer.TaskSubmitted(task.ID())
	return nil
}

// Shutdown enqueues one shutdown message per worker and waits for all of them to exit.
// Work submitted before Shutdown still runs. A repeated or concurrent call returns
// ErrAlreadyShutdown at once; use Done to wait for the teardown.
// The first call waits for every worker, so a task must not make it on its own
// goroutine.
func (p *FixedWorkerPool) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&p.state, poolStateRunning, poolStateStopping) {
		return types.NewPoolError("shutdown", "", types.ErrAlreadyShutdown)
	}

	p.logger.Info("Shutting down worker pool",
		slog.Int("size", len(p.workers)),
		slog.Int("queue_length", p.queue.WorkLen()),
	)

	if err := p.queue.Seal(len(p.workers)); err != nil {
		return types.NewPoolError("shutdown", "", err)
	}

	for _, w := range p.workers {
		<-w.Done()
	}

	atomic.StoreInt32(&p.state, poolStateStopped)
	close(p.done)

	p.logger.Info("Worker pool stopped")
	return nil
}

// Done is closed once the pool has been torn down
func (p *FixedWorkerPool) Done() <-chan struct{} {
	return p.done
}

// Size returns the worker pool size
func (p *FixedWorkerPool) Size() int {
	return len(p.workers)
}

// Stats gets worker pool statistics
func (p *FixedWorkerPool) Stats() types.WorkerPoolStats {
	stats := types.WorkerPoolStats{
		PoolSize:       len(p.workers),
		QueueLength:    p.QueueLength(),
		QueueCapacity:  p.queue.Capacity(),
		TotalSubmitted: atomic.LoadInt64(&p.totalSubmitted),
		TotalRejected:  atomic.LoadInt64(&p.totalRejected),
	}

	for _, w := range p.workers {
		ws := w.Stats()
		if ws.State == WorkerStateWorking {
			stats.ActiveWorkers++
		}
		if ws.State.Running() {
			stats.RunningWorkers++
		}
		stats.TotalCompleted += ws.TotalProcessed
		stats.TotalFailed += ws.TotalFailed
		stats.TotalPanicked += ws.TotalPanicked
	}

	return stats
}

// GetWorkerStats gets statistics of all Workers
func (p *FixedWorkerPool) GetWorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Stats()
	}
	return stats
}

// IsRunning checks if the worker pool accepts work
func (p *FixedWorkerPool) IsRunning() bool {
	return atomic.LoadInt32(&p.state) == poolStateRunning
}

// IsShutdown checks if teardown has completed
func (p *FixedWorkerPool) IsShutdown() bool {
	return atomic.LoadInt32(&p.state) == poolStateStopped
}

// QueueLength counts queued work messages, excluding shutdown signals
func (p *FixedWorkerPool) QueueLength() int {
	return p.queue.WorkLen()
}

var _ types.WorkerPool = (*FixedWorkerPool)(nil)
