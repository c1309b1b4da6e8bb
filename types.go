// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

// Queue is the combined producer-consumer interface for an unbounded FIFO
// queue.
//
// Enqueue always succeeds. Dequeue returns ErrWouldBlock when the queue is
// empty. Close tears the queue down and must not race with other calls.
//
// The interface intentionally excludes length because an accurate count of
// a lock-free list requires a traversal. [Locked] offers Len for reference.
//
// Example:
//
//	q := msq.NewRefCounted[int]()
//	defer q.Close()
//
//	val := 42
//	q.Enqueue(&val)
//
//	elem, err := q.Dequeue()
//	if err == nil {
//	    fmt.Println(elem)
//	}
type Queue[T any] interface {
	Producer[T]
	Consumer[T]

	// Close drains the queue and releases every node.
	// The caller must have exclusive access. Close is idempotent.
	Close()
}

// Producer is the interface for enqueueing elements.
//
// The element is passed by pointer to avoid copying large structs. The
// queue stores a copy of the pointed-to value, so the original can be
// modified after Enqueue returns.
type Producer[T any] interface {
	// Enqueue adds an element at the tail of the queue.
	// Enqueue never fails and never blocks; it may retry under contention.
	// Multiple producers are safe, except with the Immediate strategy.
	Enqueue(elem *T)
}

// Consumer is the interface for dequeueing elements.
//
// The element is returned by value. The queue clears its copy to allow
// garbage collection of referenced objects.
type Consumer[T any] interface {
	// Dequeue removes and returns the oldest element (non-blocking).
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	// Multiple consumers are safe, except with the Immediate strategy.
	Dequeue() (T, error)
}

var (
	_ Queue[int] = (*LockFree[int])(nil)
	_ Queue[int] = (*Locked[int])(nil)
)
