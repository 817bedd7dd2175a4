package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jzx17/calcpool/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBasicTask(t *testing.T) {
	called := false
	fn := func(ctx context.Context) error {
		called = true
		return nil
	}

	task := NewBasicTask(fn)

	_, err := uuid.Parse(task.ID())
	assert.NoError(t, err, "task ID should be a UUID")
	assert.False(t, task.Executed())

	err = task.Execute(context.Background())
	assert.NoError(t, err)
	assert.True(t, called)
	assert.True(t, task.Executed())
}

func TestNewBasicTask_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewBasicTask(func(ctx context.Context) error { return nil }).ID()
		require.False(t, seen[id], "duplicate task ID %s", id)
		seen[id] = true
	}
}

func TestNewBasicTaskWithPrefix(t *testing.T) {
	task := NewBasicTaskWithPrefix("conn", func(ctx context.Context) error { return nil })

	assert.True(t, strings.HasPrefix(task.ID(), "conn-"))
	_, err := uuid.Parse(strings.TrimPrefix(task.ID(), "conn-"))
	assert.NoError(t, err)
}

func TestNewBasicTaskWithID(t *testing.T) {
	customID := "custom-task-123"
	task := NewBasicTaskWithID(customID, func(ctx context.Context) error {
		return nil
	})

	assert.Equal(t, customID, task.ID())
}

func TestBasicTask_Execute(t *testing.T) {
	tests := []struct {
		name        string
		fn          func(ctx context.Context) error
		expectError bool
	}{
		{
			name: "successful execution",
			fn: func(ctx context.Context) error {
				return nil
			},
			expectError: false,
		},
		{
			name: "failed execution",
			fn: func(ctx context.Context) error {
				return fmt.Errorf("task failed")
			},
			expectError: true,
		},
		{
			name:        "nil function",
			fn:          nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewBasicTask(tt.fn)
			err := task.Execute(context.Background())
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBasicTask_ExecuteOnce(t *testing.T) {
	var calls int64
	task := NewBasicTask(func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})

	require.NoError(t, task.Execute(context.Background()))

	err := task.Execute(context.Background())
	assert.True(t, errors.Is(err, types.ErrTaskAlreadyExecuted))
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestBasicTask_ConcurrentExecute(t *testing.T) {
	var calls int64
	task := NewBasicTask(func(ctx context.Context) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})

	var wg sync.WaitGroup
	var failures int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task.Execute(context.Background()); err != nil {
				atomic.AddInt64(&failures, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, int64(19), atomic.LoadInt64(&failures))
}

func TestBasicTask_ContextPassed(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	var got interface{}
	task := NewBasicTask(func(ctx context.Context) error {
		got = ctx.Value(key{})
		return nil
	})

	require.NoError(t, task.Execute(ctx))
	assert.Equal(t, "value", got)
}
