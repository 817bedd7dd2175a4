/*
Package worker provides a fixed-size worker pool that executes one-shot tasks.

# Overview

A FixedWorkerPool owns between types.MinPoolSize and types.MaxPoolSize workers.
All workers consume from one Queue; producers call Submit from any goroutine
without external locking.

# Core Components

## FixedWorkerPool

- Validates its size and spawns every worker before returning
- Submit never waits for a free worker; the queue is unbounded unless
  QueueCapacity is set, in which case a full queue rejects with ErrQueueFull
- Shutdown enqueues one shutdown message per worker and waits for all of them

## Queue

A FIFO of Message values. A message is either work (a types.Task) or a
shutdown signal. Shutdown signals are ordinary entries, so work submitted before
Shutdown is always dequeued before any worker stops. Only the dequeue step is
serialized; tasks execute outside the queue lock.

## Worker

- Processes exactly one message at a time
- Recovers panics per task, so a faulty task never shrinks the pool
- Reports failures to the configured ErrorHandler, logger and Observer
- Exits after receiving a shutdown message

## Task

BasicTask wraps a function and a UUID identifier. It refuses a second
execution with ErrTaskAlreadyExecuted.

# Guarantees

- Every submitted task runs exactly once, unless Submit returned an error
- Dispatch is FIFO; completion order across workers is unspecified
- After Shutdown returns no worker is running and Submit fails with ErrQueueClosed
- A second Shutdown returns ErrAlreadyShutdown at once; Done reports the end of teardown

# Limitations

Tasks cannot be cancelled once started and a stuck task blocks its worker
forever. Shutdown latency is unbounded: workers drain all earlier work before
they reach their shutdown message.

# Usage Examples

	pool, err := worker.NewFixedWorkerPool(&worker.FixedWorkerPoolConfig{
		PoolSize: 4,
		Logger:   logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown()

	task := worker.NewBasicTask(func(ctx context.Context) error {
		return handle(conn)
	})

	if err := pool.Submit(task); err != nil {
		log.Printf("Failed to submit task: %v", err)
	}
*/
package worker
