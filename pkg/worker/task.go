// Package worker provides the fixed-size worker pool implementation
package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jzx17/calcpool/pkg/types"
)

// TaskFunc is the function signature wrapped by BasicTask
type TaskFunc func(ctx context.Context) error

// BasicTask is the basic implementation of Task interface
// It runs its function at most once; later calls return ErrTaskAlreadyExecuted
type BasicTask struct {
	id       string
	fn       TaskFunc
	executed atomic.Bool
}

// NewBasicTask creates a new basic task with a random UUID
func NewBasicTask(fn func(ctx context.Context) error) *BasicTask {
	return &BasicTask{
		id: uuid.NewString(),
		fn: fn,
	}
}

// NewBasicTaskWithPrefix creates a basic task whose ID is prefix-<uuid>
func NewBasicTaskWithPrefix(prefix string, fn func(ctx context.Context) error) *BasicTask {
	return &BasicTask{
		id: fmt.Sprintf("%s-%s", prefix, uuid.NewString()),
		fn: fn,
	}
}

// NewBasicTaskWithID creates a basic task with custom ID
func NewBasicTaskWithID(id string, fn func(ctx context.Context) error) *BasicTask {
	return &BasicTask{
		id: id,
		fn: fn,
	}
}

// Execute executes the task
func (t *BasicTask) Execute(ctx context.Context) error {
	if t.fn == nil {
		return fmt.Errorf("task %s has no execution function", t.id)
	}
	if !t.executed.CompareAndSwap(false, true) {
		return types.NewPoolError("execute", t.id, types.ErrTaskAlreadyExecuted)
	}
	return t.fn(ctx)
}

// ID returns the task ID
func (t *BasicTask) ID() string {
	return t.id
}

// Executed reports whether Execute has been called
func (t *BasicTask) Executed() bool {
	return t.executed.Load()
}

var _ types.Task = (*BasicTask)(nil)
