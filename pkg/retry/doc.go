// Package retry retries operations that fail with transient errors.
//
// Policies:
//   - FixedDelayRetry waits the same delay between attempts
//   - ExponentialBackoffRetry multiplies the delay after each failure, capped by WithMaxDelay
//
// Both accept optional jitter and a custom RetryCondition. The default condition
// retries refused or reset connections, dial failures, timeouts and connections
// dropped mid-exchange. Context errors and errors wrapped with Permanent are
// returned immediately.
//
// Basic usage:
//
//	policy := retry.NewExponentialBackoffRetry(5, 100*time.Millisecond,
//		retry.WithMaxDelay(2*time.Second))
//
//	executor := retry.NewRetryExecutor(policy,
//		retry.WithEventHandler(retry.NewLogEventHandler(logger)))
//
//	resp, err := retry.ExecuteWithName(executor, ctx, "calculate", func(ctx context.Context) (string, error) {
//		return roundTrip(ctx, req)
//	})
//
// When every attempt fails the returned error is a *retry.Error carrying the
// attempt count and the last failure, which stays reachable through errors.Is.
//
// All public types are safe for concurrent use.
package retry
