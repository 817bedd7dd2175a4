// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrInvalidSize indicates a pool size outside [MinPoolSize, MaxPoolSize]
	ErrInvalidSize = errors.New("invalid pool size")

	// ErrInvalidConfig indicates a pool configuration value other than size is invalid
	ErrInvalidConfig = errors.New("invalid pool configuration")

	// ErrSpawnFailure indicates a worker could not be started
	ErrSpawnFailure = errors.New("failed to spawn worker")

	// ErrQueueClosed indicates the queue no longer accepts work
	ErrQueueClosed = errors.New("queue is closed")

	// ErrAlreadyShutdown indicates shutdown was already performed
	ErrAlreadyShutdown = errors.New("worker pool is already shut down")

	// ErrQueueFull indicates a bounded queue rejected a task
	ErrQueueFull = errors.New("queue is full")

	// ErrNilTask indicates a nil task was submitted
	ErrNilTask = errors.New("task cannot be nil")

	// ErrTaskAlreadyExecuted indicates a one-shot task was executed twice
	ErrTaskAlreadyExecuted = errors.New("task already executed")
)

// PoolError represents an error raised by the pool or by a task it executed
type PoolError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// TaskID identifies the task involved, if any
	TaskID string

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *PoolError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("worker pool error in operation %s (task %s): %v", e.Operation, e.TaskID, e.Cause)
	}
	return fmt.Sprintf("worker pool error in operation %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying error
func (e *PoolError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *PoolError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewPoolError creates a new pool error
func NewPoolError(operation, taskID string, cause error) *PoolError {
	return &PoolError{
		Operation: operation,
		TaskID:    taskID,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *PoolError) WithContext(key string, value interface{}) *PoolError {
	e.Context[key] = value
	return e
}

// PanicError is the cause recorded when a task panics
type PanicError struct {
	// Value is the recovered panic value
	Value interface{}

	// Stack is the goroutine stack at the time of the panic
	Stack string
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsPanic checks if an error was produced by a recovered panic
func IsPanic(err error) bool {
	var panicErr *PanicError
	return errors.As(err, &panicErr)
}
