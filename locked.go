// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import "sync"

// Locked is an unbounded FIFO queue serialized by a single mutex.
//
// Locked has the same contract as [LockFree] and exists as a correctness
// and performance reference. Elements are kept in a growable ring buffer.
type Locked[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int
	n      int
	closed bool
}

const lockedInitial = 16

// Enqueue adds a copy of *elem at the tail of the queue.
func (q *Locked[T]) Enqueue(elem *T) {
	q.mu.Lock()
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)&(len(q.buf)-1)] = *elem
	q.n++
	q.mu.Unlock()
}

// Dequeue removes and returns the oldest element.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Locked[T]) Dequeue() (T, error) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return zero, ErrWouldBlock
	}
	elem := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) & (len(q.buf) - 1)
	q.n--
	return elem, nil
}

// Len returns the number of queued elements.
func (q *Locked[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Close drops every queued element. Close is idempotent.
func (q *Locked[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.buf = nil
	q.head = 0
	q.n = 0
}

// grow doubles the ring, keeping it a power of 2.
func (q *Locked[T]) grow() {
	size := len(q.buf) * 2
	if size == 0 {
		size = lockedInitial
	}
	buf := make([]T, size)
	for i := range q.n {
		buf[i] = q.buf[(q.head+i)&(len(q.buf)-1)]
	}
	q.buf = buf
	q.head = 0
}
