package retry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jzx17/calcpool/pkg/types"
)

// RetryExecutor implements retry execution logic
type RetryExecutor struct {
	policy       RetryPolicy
	eventHandler EventHandler
	stats        RetryStats
	clock        types.Clock
}

// ExecuteFunc is the function type to retry
type ExecuteFunc[T any] func(ctx context.Context) (T, error)

// RetryStats contains retry statistics
type RetryStats struct {
	TotalAttempts   int64         // total attempt count
	TotalRetries    int64         // total retry count
	TotalSuccesses  int64         // total success count
	TotalFailures   int64         // total failure count
	AverageAttempts float64       // average attempt count
	LastRetryTime   time.Time     // last retry time
	TotalRetryDelay time.Duration // total retry delay time
	mu              sync.RWMutex
}

// EventHandler handles retry events
type EventHandler interface {
	OnRetryAttempt(ctx context.Context, name string, attempt int, delay time.Duration, err error)
	OnRetrySuccess(ctx context.Context, name string, attempt int, duration time.Duration)
	OnRetryFailure(ctx context.Context, name string, attempt int, err error)
	OnMaxAttemptsReached(ctx context.Context, name string, attempt int, err error)
}

// Error is returned once retries are exhausted or the failure is not retryable
type Error struct {
	Name        string
	Attempts    int
	MaxAttempts int
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d of %d attempts: %v", e.Name, e.Attempts, e.MaxAttempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewRetryExecutor creates a retry executor
func NewRetryExecutor(policy RetryPolicy, opts ...ExecutorOption) *RetryExecutor {
	executor := &RetryExecutor{
		policy: policy,
		clock:  types.NewRealClock(),
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute executes a function with retry logic
func Execute[T any](r *RetryExecutor, ctx context.Context, fn ExecuteFunc[T]) (T, error) {
	return ExecuteWithName(r, ctx, "operation", fn)
}

// ExecuteWithName executes a function with retry logic; name labels events and errors
func ExecuteWithName[T any](r *RetryExecutor, ctx context.Context, name string, fn ExecuteFunc[T]) (T, error) {
	var zero T
	attempt := 0

	for {
		attempt++

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		r.updateStats(func(stats *RetryStats) {
			stats.TotalAttempts++
		})

		executeStart := r.clock.Now()
		result, err := fn(ctx)
		executeDuration := r.clock.Since(executeStart)

		if err == nil {
			r.updateStats(func(stats *RetryStats) {
				stats.TotalSuccesses++
				if attempt > 1 {
					stats.TotalRetries++
				}
				stats.updateAverageAttempts()
			})

			if r.eventHandler != nil && attempt > 1 {
				r.eventHandler.OnRetrySuccess(ctx, name, attempt, executeDuration)
			}

			return result, nil
		}

		if !r.policy.ShouldRetry(err, attempt) {
			r.updateStats(func(stats *RetryStats) {
				stats.TotalFailures++
				if attempt > 1 {
					stats.TotalRetries++
				}
				stats.updateAverageAttempts()
			})

			if r.eventHandler != nil {
				if attempt >= r.policy.MaxAttempts() {
					r.eventHandler.OnMaxAttemptsReached(ctx, name, attempt, err)
				} else {
					r.eventHandler.OnRetryFailure(ctx, name, attempt, err)
				}
			}

			return zero, &Error{
				Name:        name,
				Attempts:    attempt,
				MaxAttempts: r.policy.MaxAttempts(),
				Err:         err,
			}
		}

		delay := r.policy.NextDelay(attempt)

		r.updateStats(func(stats *RetryStats) {
			stats.LastRetryTime = r.clock.Now()
			stats.TotalRetryDelay += delay
		})

		if r.eventHandler != nil {
			r.eventHandler.OnRetryAttempt(ctx, name, attempt, delay, err)
		}

		if delay > 0 {
			timer := r.clock.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C():
			}
		}
	}
}

// GetStats gets retry statistics
func (r *RetryExecutor) GetStats() RetryStats {
	r.stats.mu.RLock()
	defer r.stats.mu.RUnlock()
	return RetryStats{
		TotalAttempts:   r.stats.TotalAttempts,
		TotalRetries:    r.stats.TotalRetries,
		TotalSuccesses:  r.stats.TotalSuccesses,
		TotalFailures:   r.stats.TotalFailures,
		AverageAttempts: r.stats.AverageAttempts,
		LastRetryTime:   r.stats.LastRetryTime,
		TotalRetryDelay: r.stats.TotalRetryDelay,
	}
}

// ResetStats resets statistics
func (r *RetryExecutor) ResetStats() {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	r.stats.TotalAttempts = 0
	r.stats.TotalRetries = 0
	r.stats.TotalSuccesses = 0
	r.stats.TotalFailures = 0
	r.stats.AverageAttempts = 0
	r.stats.LastRetryTime = time.Time{}
	r.stats.TotalRetryDelay = 0
}

func (r *RetryExecutor) updateStats(fn func(*RetryStats)) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()
	fn(&r.stats)
}

func (s *RetryStats) updateAverageAttempts() {
	totalOperations := s.TotalSuccesses + s.TotalFailures
	if totalOperations > 0 {
		s.AverageAttempts = float64(s.TotalAttempts) / float64(totalOperations)
	}
}

// ExecutorOption is a configuration option for retry executor
type ExecutorOption func(*RetryExecutor)

// WithEventHandler sets the event handler
func WithEventHandler(handler EventHandler) ExecutorOption {
	return func(r *RetryExecutor) {
		r.eventHandler = handler
	}
}

// WithClock sets the clock for time operations
func WithClock(clock types.Clock) ExecutorOption {
	return func(r *RetryExecutor) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// LogEventHandler reports retry events through slog
type LogEventHandler struct {
	logger *slog.Logger
}

// NewLogEventHandler creates an event handler; a nil logger discards events
func NewLogEventHandler(logger *slog.Logger) *LogEventHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogEventHandler{logger: logger}
}

func (h *LogEventHandler) OnRetryAttempt(ctx context.Context, name string, attempt int, delay time.Duration, err error) {
	h.logger.WarnContext(ctx, "Attempt failed, retrying",
		slog.String("operation", name),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
		slog.String("error", err.Error()),
	)
}

func (h *LogEventHandler) OnRetrySuccess(ctx context.Context, name string, attempt int, duration time.Duration) {
	h.logger.InfoContext(ctx, "Retry succeeded",
		slog.String("operation", name),
		slog.Int("attempt", attempt),
		slog.Duration("duration", duration),
	)
}

func (h *LogEventHandler) OnRetryFailure(ctx context.Context, name string, attempt int, err error) {
	h.logger.ErrorContext(ctx, "Non-retryable failure",
		slog.String("operation", name),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

func (h *LogEventHandler) OnMaxAttemptsReached(ctx context.Context, name string, attempt int, err error) {
	h.logger.ErrorContext(ctx, "Max retry attempts reached",
		slog.String("operation", name),
		slog.Int("attempts", attempt),
		slog.String("error", err.Error()),
	)
}

var _ EventHandler = (*LogEventHandler)(nil)
