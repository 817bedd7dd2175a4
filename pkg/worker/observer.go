package worker

import (
	"time"
)

// Observer receives pool lifecycle events.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	TaskSubmitted(taskID string)
	TaskRejected(taskID string, err error)
	TaskStarted(workerID int, taskID string)
	TaskFinished(workerID int, taskID string, duration time.Duration, err error)
	WorkerStarted(workerID int)
	WorkerStopped(workerID int)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) TaskSubmitted(string) {}
func (NopObserver) TaskRejected(string, error) {}
func (NopObserver) TaskStarted(int, string) {}
func (NopObserver) TaskFinished(int, string, time.Duration, error) {}
func (NopObserver) WorkerStarted(int) {}
func (NopObserver) WorkerStopped(int) {}

var _ Observer = NopObserver{}
