// Package types defines core interfaces and types shared by the worker pool and its collaborators
package types

import (
	"context"
)

// Pool size bounds enforced at construction
const (
	// MinPoolSize is the smallest number of workers a pool may own
	MinPoolSize = 1

	// MaxPoolSize is the largest number of workers a pool may own
	MaxPoolSize = 16
)

// Task defines a one-shot unit of work
type Task interface {
	// Execute runs the task; it is invoked exactly once
	Execute(ctx context.Context) error

	// ID returns the task identifier used for diagnostics
	ID() string
}

// WorkerPool defines the worker pool interface
type WorkerPool interface {
	// Submit enqueues a task for execution on some worker
	Submit(task Task) error

	// Shutdown stops every worker and waits for them to exit
	Shutdown() error

	// Size returns the fixed number of workers
	Size() int

	// Stats returns worker pool statistics
	Stats() WorkerPoolStats
}

// WorkerPoolStats defines basic statistics for worker pools
type WorkerPoolStats struct {
	// PoolSize is the size of the pool
	PoolSize int

	// ActiveWorkers is the number of workers currently executing a task
	ActiveWorkers int

	// RunningWorkers is the number of workers that have not terminated
	RunningWorkers int

	// QueueLength is the current number of messages waiting in the queue
	QueueLength int

	// QueueCapacity is the queue bound, 0 means unbounded
	QueueCapacity int

	// TotalSubmitted is the number of tasks accepted by Submit
	TotalSubmitted int64

	// TotalRejected is the number of tasks refused by Submit
	TotalRejected int64

	// TotalCompleted is the number of tasks that returned nil
	TotalCompleted int64

	// TotalFailed is the number of tasks that returned an error or panicked
	TotalFailed int64

	// TotalPanicked is the number of tasks that panicked
	TotalPanicked int64
}

// Pending returns the number of accepted tasks that have not finished yet
func (s WorkerPoolStats) Pending() int64 {
	return s.TotalSubmitted - s.TotalCompleted - s.TotalFailed
}

// ErrorHandler is invoked with every task failure
// The returned error is only logged; it never stops the worker
type ErrorHandler func(error) error
