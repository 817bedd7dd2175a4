package worker

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/calcpool/pkg/types"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateIdle represents a running worker waiting for a message
	WorkerStateIdle WorkerState = iota
	// WorkerStateWorking represents a running worker executing a task
	WorkerStateWorking
	// WorkerStateStopped represents a terminated worker
	WorkerStateStopped
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateWorking:
		return "working"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Running reports whether the worker has not terminated
func (ws WorkerState) Running() bool {
	return ws == WorkerStateIdle || ws == WorkerStateWorking
}

type workerIDKey struct{}

// WorkerIDFromContext returns the id of the worker executing the task owning ctx
func WorkerIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerIDKey{}).(int)
	return id, ok
}

// Worker pulls messages from a shared queue and executes them one at a time
type Worker struct {
	id    int
	state int32 // atomic state
	queue *Queue
	done  chan struct{}
	once  sync.Once

	started atomic.Bool

	// statistics
	totalProcessed int64
	totalFailed    int64
	totalPanicked  int64
	lastTaskTime   int64 // Unix nanosecond timestamp

	errorHandler types.ErrorHandler
	observer     Observer
	logger       *slog.Logger

	// time operations
	clock types.Clock

	mu sync.RWMutex
}

// NewWorker creates a new Worker with default real clock
func NewWorker(id int, queue *Queue) *Worker {
	return NewWorkerWithClock(id, queue, types.NewRealClock())
}

// NewWorkerWithClock creates a new Worker with specified clock
func NewWorkerWithClock(id int, queue *Queue, clock types.Clock) *Worker {
	if clock == nil {
		clock = types.NewRealClock()
	}

	return &Worker{
		id:       id,
		state:    int32(WorkerStateIdle),
		queue:    queue,
		done:     make(chan struct{}),
		observer: NopObserver{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    clock,
	}
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// Done is closed once the worker has terminated
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// SetErrorHandler sets the error handler
func (w *Worker) SetErrorHandler(handler types.ErrorHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errorHandler = handler
}

// SetObserver sets the event observer
func (w *Worker) SetObserver(observer Observer) {
	if observer == nil {
		observer = NopObserver{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observer = observer
}

// SetLogger sets the logger
func (w *Worker) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = logger
}

// Run consumes messages until a shutdown message arrives.
// ctx is handed to every task; it does not stop the loop.
func (w *Worker) Run(ctx context.Context) {
	defer w.terminate()

	w.started.Store(true)
	w.getObserver().WorkerStarted(w.id)

	for {
		msg := w.queue.Pop()

		switch msg.Kind {
		case MessageShutdown:
			w.getLogger().Debug("Terminate received", slog.Int("worker_id", w.id))
			return
		case MessageWork:
			if msg.Task != nil {
				w.processTask(ctx, msg.Task)
			}
		}
	}
}

// terminate marks the worker stopped and releases waiters.
// WorkerStopped is only reported for workers that reported WorkerStarted.
func (w *Worker) terminate() {
	w.once.Do(func() {
		atomic.StoreInt32(&w.state, int32(WorkerStateStopped))
		if w.started.Load() {
			w.getObserver().WorkerStopped(w.id)
		}
		close(w.done)
	})
}

// processTask processes a single task
func (w *Worker) processTask(ctx context.Context, task types.Task) {
	atomic.StoreInt32(&w.state, int32(WorkerStateWorking))
	defer atomic.StoreInt32(&w.state, int32(WorkerStateIdle))

	logger := w.getLogger()
	observer := w.getObserver()

	startTime := w.clock.Now()
	atomic.StoreInt64(&w.lastTaskTime, startTime.UnixNano())

	logger.Debug("New job received", slog.Int("worker_id", w.id), slog.String("job_id", task.ID()))
	observer.TaskStarted(w.id, task.ID())

	err := w.executeTask(context.WithValue(ctx, workerIDKey{}, w.id), task)

	executionTime := w.clock.Since(startTime)

	if err != nil {
		atomic.AddInt64(&w.totalFailed, 1)
		if types.IsPanic(err) {
			atomic.AddInt64(&w.totalPanicked, 1)
		}
		w.handleError(err, task)
	} else {
		atomic.AddInt64(&w.totalProcessed, 1)
	}

	observer.TaskFinished(w.id, task.ID(), executionTime, err)
}

// executeTask executes a task with panic recovery support
func (w *Worker) executeTask(ctx context.Context, task types.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			err = types.NewPoolError("execute", task.ID(), &types.PanicError{
				Value: r,
				Stack: string(buf[:n]),
			}).
				WithContext("stack_trace", string(buf[:n])).
				WithContext("worker_id", w.id)
		}
	}()

	return task.Execute(ctx)
}

// handleError reports a task failure; the worker keeps running regardless
func (w *Worker) handleError(err error, task types.Task) {
	w.mu.RLock()
	handler := w.errorHandler
	logger := w.logger
	w.mu.RUnlock()

	logger.Error("Job failed",
		slog.Int("worker_id", w.id),
		slog.String("job_id", task.ID()),
		slog.Bool("panic", types.IsPanic(err)),
		slog.String("error", err.Error()),
	)

	if handler != nil {
		if handledErr := handler(err); handledErr != nil {
			logger.Warn("Error handler returned error",
				slog.Int("worker_id", w.id),
				slog.String("job_id", task.ID()),
				slog.String("error", handledErr.Error()),
			)
		}
	}
}

func (w *Worker) getLogger() *slog.Logger {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.logger
}

func (w *Worker) getObserver() Observer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.observer
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	var lastTaskTime time.Time
	if ns := atomic.LoadInt64(&w.lastTaskTime); ns != 0 {
		lastTaskTime = time.Unix(0, ns)
	}

	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: atomic.LoadInt64(&w.totalProcessed),
		TotalFailed:    atomic.LoadInt64(&w.totalFailed),
		TotalPanicked:  atomic.LoadInt64(&w.totalPanicked),
		LastTaskTime:   lastTaskTime,
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID             int
	State          WorkerState
	TotalProcessed int64
	TotalFailed    int64
	TotalPanicked  int64
	LastTaskTime   time.Time
}

// IsActive checks if Worker is executing a task
func (ws WorkerStats) IsActive() bool {
	return ws.State == WorkerStateWorking
}

// IsIdle checks if Worker is waiting for a message
func (ws WorkerStats) IsIdle() bool {
	return ws.State == WorkerStateIdle
}

// GetSuccessRate gets the success rate
func (ws WorkerStats) GetSuccessRate() float64 {
	total := ws.TotalProcessed + ws.TotalFailed
	if total == 0 {
		return 0
	}
	return float64(ws.TotalProcessed) / float64(total)
}

// GetErrorRate gets the error rate
func (ws WorkerStats) GetErrorRate() float64 {
	total := ws.TotalProcessed + ws.TotalFailed
	if total == 0 {
		return 0
	}
	return float64(ws.TotalFailed) / float64(total)
}
