package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestFixedDelayRetry(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		delay       time.Duration
		attempt     int
		wantDelay   time.Duration
	}{
		{
			name:        "first attempt",
			maxAttempts: 3,
			delay:       100 * time.Millisecond,
			attempt:     1,
			wantDelay:   100 * time.Millisecond,
		},
		{
			name:        "second attempt",
			maxAttempts: 3,
			delay:       100 * time.Millisecond,
			attempt:     2,
			wantDelay:   100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewFixedDelayRetry(tt.maxAttempts, tt.delay)

			delay := policy.NextDelay(tt.attempt)
			if delay != tt.wantDelay {
				t.Errorf("NextDelay() = %v, want %v", delay, tt.wantDelay)
			}
		})
	}
}

func TestExponentialBackoffRetry(t *testing.T) {
	tests := []struct {
		name         string
		initialDelay time.Duration
		opts         []BackoffOption
		attempt      int
		wantDelay    time.Duration
	}{
		{
			name:         "first attempt",
			initialDelay: 100 * time.Millisecond,
			attempt:      1,
			wantDelay:    100 * time.Millisecond,
		},
		{
			name:         "second attempt",
			initialDelay: 100 * time.Millisecond,
			attempt:      2,
			wantDelay:    200 * time.Millisecond,
		},
		{
			name:         "third attempt",
			initialDelay: 100 * time.Millisecond,
			attempt:      3,
			wantDelay:    400 * time.Millisecond,
		},
		{
			name:         "custom multiplier",
			initialDelay: 100 * time.Millisecond,
			opts:         []BackoffOption{WithMultiplier(3)},
			attempt:      3,
			wantDelay:    900 * time.Millisecond,
		},
		{
			name:         "capped by max delay",
			initialDelay: 100 * time.Millisecond,
			opts:         []BackoffOption{WithMaxDelay(250 * time.Millisecond)},
			attempt:      5,
			wantDelay:    250 * time.Millisecond,
		},
		{
			name:         "huge attempt does not overflow",
			initialDelay: time.Second,
			opts:         []BackoffOption{WithMaxDelay(time.Minute)},
			attempt:      200,
			wantDelay:    time.Minute,
		},
		{
			name:         "multiplier below one is ignored",
			initialDelay: 100 * time.Millisecond,
			opts:         []BackoffOption{WithMultiplier(0.5)},
			attempt:      2,
			wantDelay:    200 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewExponentialBackoffRetry(10, tt.initialDelay, tt.opts...)

			delay := policy.NextDelay(tt.attempt)
			if delay != tt.wantDelay {
				t.Errorf("NextDelay() = %v, want %v", delay, tt.wantDelay)
			}
		})
	}
}

func TestJitter(t *testing.T) {
	policy := NewFixedDelayRetry(3, 100*time.Millisecond, WithJitter(true, 0.2))

	for i := 0; i < 100; i++ {
		delay := policy.NextDelay(1)
		if delay < 80*time.Millisecond || delay > 120*time.Millisecond {
			t.Fatalf("NextDelay() = %v, outside the 20%% jitter window", delay)
		}
	}

	backoff := NewExponentialBackoffRetry(3, 100*time.Millisecond,
		WithPolicyOptions(WithJitter(true, 0.5)))
	for i := 0; i < 100; i++ {
		delay := backoff.NextDelay(2)
		if delay < 100*time.Millisecond || delay > 300*time.Millisecond {
			t.Fatalf("NextDelay() = %v, outside the 50%% jitter window", delay)
		}
	}
}

func TestShouldRetry_MaxAttempts(t *testing.T) {
	policy := NewFixedDelayRetry(3, 0)
	err := syscall.ECONNREFUSED

	for attempt := 1; attempt < 3; attempt++ {
		if !policy.ShouldRetry(err, attempt) {
			t.Errorf("ShouldRetry(attempt=%d) = false, want true", attempt)
		}
	}
	if policy.ShouldRetry(err, 3) {
		t.Error("ShouldRetry() must stop at max attempts")
	}

	if got := NewFixedDelayRetry(0, 0).MaxAttempts(); got != 1 {
		t.Errorf("MaxAttempts() = %d, want 1 for a non-positive limit", got)
	}
}

func TestWithRetryCondition(t *testing.T) {
	retryAll := func(error) bool { return true }
	policy := NewFixedDelayRetry(5, 0, WithRetryCondition(retryAll))

	if !policy.ShouldRetry(errors.New("anything"), 1) {
		t.Error("custom condition should allow retry")
	}

	backoff := NewExponentialBackoffRetry(5, time.Millisecond,
		WithPolicyOptions(WithRetryCondition(func(error) bool { return false })))
	if backoff.ShouldRetry(syscall.ECONNREFUSED, 1) {
		t.Error("custom condition should refuse retry")
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestDefaultRetryCondition(t *testing.T) {
	dialRefused := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED},
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", dialRefused, true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"broken pipe", syscall.EPIPE, true},
		{"missing unix socket", &net.OpError{Op: "dial", Net: "unix", Err: syscall.ENOENT}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", fmt.Errorf("reading response: %w", io.ErrUnexpectedEOF), true},
		{"timeout", timeoutError{}, true},
		{"dial failure", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route")}, true},
		{"read failure", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("weird")}, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{"permanent", Permanent(dialRefused), false},
		{"plain error", errors.New("bad request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryCondition(tt.err); got != tt.want {
				t.Errorf("DefaultRetryCondition(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	base := errors.New("invalid input")
	err := Permanent(base)

	if !IsPermanent(err) {
		t.Error("IsPermanent() = false, want true")
	}
	if !errors.Is(err, base) {
		t.Error("Permanent must keep the cause reachable")
	}
	if err.Error() != "invalid input" {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsPermanent(base) {
		t.Error("IsPermanent() = true for an unmarked error")
	}
}
