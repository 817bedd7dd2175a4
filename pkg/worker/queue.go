package worker

import (
	"sync"

	"github.com/jzx17/calcpool/pkg/types"
)

// MessageKind tags the variant carried by a Message
type MessageKind int

const (
	// MessageWork carries a task to execute
	MessageWork MessageKind = iota
	// MessageShutdown tells the receiving worker to exit
	MessageShutdown
)

// String returns the string representation of MessageKind
func (k MessageKind) String() string {
	switch k {
	case MessageWork:
		return "work"
	case MessageShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Message is a dispatch queue entry: either a task or a shutdown signal
type Message struct {
	Kind MessageKind
	Task types.Task
}

// WorkMessage wraps a task for dispatch
func WorkMessage(task types.Task) Message {
	return Message{Kind: MessageWork, Task: task}
}

// ShutdownMessage returns a shutdown signal for exactly one worker
func ShutdownMessage() Message {
	return Message{Kind: MessageShutdown}
}

// Queue is a multi-producer multi-consumer FIFO of messages.
// Push never waits for a consumer. Pop blocks until a message is available.
// A capacity of 0 leaves the queue unbounded.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []Message
	work     int // queued work messages
	capacity int
	sealed   bool
}

// NewQueue creates a queue; capacity <= 0 means unbounded
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends a message.
// Returns ErrQueueClosed after Seal and ErrQueueFull when a bounded queue holds
// capacity work messages. Shutdown messages are never refused for capacity.
func (q *Queue) Push(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sealed {
		return types.ErrQueueClosed
	}
	if msg.Kind == MessageWork {
		if q.capacity > 0 && q.work >= q.capacity {
			return types.ErrQueueFull
		}
		q.work++
	}

	q.items = append(q.items, msg)
	q.notEmpty.Signal()
	return nil
}

// Seal closes the producer side and appends n shutdown messages in one step,
// so every message pushed before Seal is dequeued before any of them
func (q *Queue) Seal(n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sealed {
		return types.ErrQueueClosed
	}
	q.sealed = true

	for i := 0; i < n; i++ {
		q.items = append(q.items, ShutdownMessage())
	}
	q.notEmpty.Broadcast()
	return nil
}

// Pop removes and returns the oldest message, blocking while the queue is empty
func (q *Queue) Pop() Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.notEmpty.Wait()
	}

	return q.popLocked()
}

// TryPop returns the oldest message without blocking
func (q *Queue) TryPop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Message{}, false
	}

	return q.popLocked(), true
}

func (q *Queue) popLocked() Message {
	msg := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	if msg.Kind == MessageWork {
		q.work--
	}
	return msg
}

// Len returns the number of queued messages, shutdown signals included
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// WorkLen returns the number of queued work messages
func (q *Queue) WorkLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.work
}

// Capacity returns the work bound, 0 when unbounded
func (q *Queue) Capacity() int {
	return q.capacity
}

// Sealed reports whether the producer side is closed
func (q *Queue) Sealed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sealed
}
