package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrInvalidSize", ErrInvalidSize},
		{"ErrInvalidConfig", ErrInvalidConfig},
		{"ErrSpawnFailure", ErrSpawnFailure},
		{"ErrQueueClosed", ErrQueueClosed},
		{"ErrAlreadyShutdown", ErrAlreadyShutdown},
		{"ErrQueueFull", ErrQueueFull},
		{"ErrNilTask", ErrNilTask},
		{"ErrTaskAlreadyExecuted", ErrTaskAlreadyExecuted},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("expected error, got nil")
			}
			if tt.err.Error() == "" {
				t.Errorf("expected non-empty error message")
			}
			if seen[tt.err.Error()] {
				t.Errorf("duplicate error message %q", tt.err.Error())
			}
			seen[tt.err.Error()] = true
		})
	}
}

func TestPoolError(t *testing.T) {
	t.Run("Without Task", func(t *testing.T) {
		poolErr := NewPoolError("create", "", fmt.Errorf("%w: min=1 max=16 got=0", ErrInvalidSize))

		expectedMsg := "worker pool error in operation create: invalid pool size: min=1 max=16 got=0"
		if poolErr.Error() != expectedMsg {
			t.Errorf("expected message %q, got %q", expectedMsg, poolErr.Error())
		}

		if !errors.Is(poolErr, ErrInvalidSize) {
			t.Errorf("expected errors.Is to match ErrInvalidSize")
		}
		if errors.Is(poolErr, ErrSpawnFailure) {
			t.Errorf("did not expect errors.Is to match ErrSpawnFailure")
		}
	})

	t.Run("With Task", func(t *testing.T) {
		cause := errors.New("boom")
		poolErr := NewPoolError("execute", "task-1", cause)

		if !strings.Contains(poolErr.Error(), "(task task-1)") {
			t.Errorf("expected task id in message, got %q", poolErr.Error())
		}
		if errors.Unwrap(poolErr) != cause {
			t.Errorf("expected Unwrap to return cause")
		}
	})

	t.Run("Context", func(t *testing.T) {
		poolErr := NewPoolError("execute", "task-2", errors.New("x")).
			WithContext("worker_id", 3).
			WithContext("stack_trace", "...")

		if poolErr.Context["worker_id"] != 3 {
			t.Errorf("expected worker_id 3, got %v", poolErr.Context["worker_id"])
		}
		if len(poolErr.Context) != 2 {
			t.Errorf("expected 2 context entries, got %d", len(poolErr.Context))
		}
	})

	t.Run("Wrapped By fmt.Errorf", func(t *testing.T) {
		wrapped := fmt.Errorf("submit: %w", NewPoolError("submit", "t", ErrQueueClosed))

		var poolErr *PoolError
		if !errors.As(wrapped, &poolErr) {
			t.Fatalf("expected errors.As to find PoolError")
		}
		if poolErr.Operation != "submit" {
			t.Errorf("expected operation submit, got %q", poolErr.Operation)
		}
		if !errors.Is(wrapped, ErrQueueClosed) {
			t.Errorf("expected errors.Is to match ErrQueueClosed")
		}
	})
}

func TestPanicError(t *testing.T) {
	t.Run("String Value", func(t *testing.T) {
		err := &PanicError{Value: "bad things", Stack: "goroutine 1"}

		if err.Error() != "panic: bad things" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if err.Unwrap() != nil {
			t.Errorf("expected nil Unwrap for non-error value")
		}
	})

	t.Run("Error Value", func(t *testing.T) {
		cause := errors.New("inner")
		err := &PanicError{Value: cause}

		if !errors.Is(err, cause) {
			t.Errorf("expected errors.Is to reach panic value")
		}
	})

	t.Run("IsPanic Through PoolError", func(t *testing.T) {
		err := NewPoolError("execute", "task-3", &PanicError{Value: 1})

		if !IsPanic(err) {
			t.Errorf("expected IsPanic to be true")
		}
		if IsPanic(errors.New("plain")) {
			t.Errorf("expected IsPanic to be false for plain errors")
		}
		if IsPanic(nil) {
			t.Errorf("expected IsPanic to be false for nil")
		}
	})
}
