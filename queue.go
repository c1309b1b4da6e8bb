// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// LockFree is an unbounded multi-producer multi-consumer FIFO queue.
//
// Based on Michael and Scott, "Simple, Fast, and Practical Non-Blocking and
// Blocking Concurrent Queue Algorithms" (PODC 1996).
//
// Algorithm:
//   - A singly linked list starting at a sentinel node; head points at the
//     sentinel, tail at (or one hop behind) the last node
//   - Enqueue links a new node behind the last node with a CAS on its next
//     word, walking forward when it loses, then swings tail once
//   - Dequeue moves head to the sentinel's successor with a CAS; the
//     successor becomes the new sentinel and the old one is retired
//
// Nodes live in an arena and are addressed by [Ref]. When an unlinked node
// may be released is decided by the queue's [Reclaimer].
//
// Memory: one arena node per element plus the sentinel. Nodes are recycled
// through the arena's free list; arena segments are never returned to the
// runtime before the queue becomes unreachable.
type LockFree[T any] struct {
	_      pad
	head   atomix.Uint64 // Ref of the sentinel
	_      padShort
	tail   atomix.Uint64 // Ref of the last node, or one hop behind it
	_      padShort
	closed atomix.Bool
	_      pad
	arena  *arena[T]
	rec    Reclaimer
}

func newLockFree[T any](s Strategy, chunk int, checked bool) *LockFree[T] {
	if s == nil {
		panic("msq: nil reclamation strategy")
	}
	a := newArena[T](chunk, checked)
	q := &LockFree[T]{arena: a}
	q.rec = s(a)
	sentinel := a.alloc()
	q.head.StoreRelaxed(uint64(sentinel))
	q.tail.StoreRelaxed(uint64(sentinel))
	return q
}

// Enqueue adds a copy of *elem at the tail of the queue.
// Enqueue never fails; it only retries under contention.
func (q *LockFree[T]) Enqueue(elem *T) {
	a := q.arena
	ref := a.alloc()
	a.node(ref).value = *elem

	c := q.rec.Begin()
	sw := spin.Wait{}
	var oldP Ref
	for {
		oldP = Ref(q.tail.LoadAcquire())
		if q.rec.Protect(c, oldP, &q.tail) {
			break
		}
		sw.Once()
	}

	p := oldP
	for {
		a.check(p)
		n := a.node(p)
		if n.next.CompareAndSwapAcqRel(uint64(NilRef), uint64(ref)) {
			break
		}
		// Lost the link race: hand over protection to the successor.
		next := Ref(n.next.LoadAcquire())
		if !q.rec.Protect(c, next, &n.next) {
			sw.Once()
			continue
		}
		if p != oldP {
			q.rec.Unprotect(c, p)
		}
		p = next
	}
	if p != oldP {
		q.rec.Unprotect(c, p)
	}

	// Failure means another operation already moved tail past oldP.
	q.tail.CompareAndSwapAcqRel(uint64(oldP), uint64(ref))
	q.rec.Unprotect(c, oldP)
	q.rec.End(c)
}

// Dequeue removes and returns the oldest element.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *LockFree[T]) Dequeue() (T, error) {
	a := q.arena
	c := q.rec.Begin()
	sw := spin.Wait{}
	for {
		p := Ref(q.head.LoadAcquire())
		if !q.rec.Protect(c, p, &q.head) {
			sw.Once()
			continue
		}
		a.check(p)
		pn := a.node(p)
		next := Ref(pn.next.LoadAcquire())
		if next == NilRef {
			q.rec.Unprotect(c, p)
			q.rec.End(c)
			var zero T
			return zero, ErrWouldBlock
		}
		if !q.rec.Protect(c, next, &pn.next) {
			q.rec.Unprotect(c, p)
			sw.Once()
			continue
		}

		// Tail must never fall behind head: help a lagging enqueuer first.
		if Ref(q.tail.LoadAcquire()) == p {
			q.tail.CompareAndSwapAcqRel(uint64(p), uint64(next))
			q.rec.Unprotect(c, next)
			q.rec.Unprotect(c, p)
			continue
		}

		if !q.head.CompareAndSwapAcqRel(uint64(p), uint64(next)) {
			q.rec.Unprotect(c, next)
			q.rec.Unprotect(c, p)
			sw.Once()
			continue
		}

		a.check(next)
		nn := a.node(next)
		elem := nn.value
		var zero T
		nn.value = zero

		q.rec.Unprotect(c, next)
		q.rec.Unprotect(c, p)
		a.retire(p)
		q.rec.Retire(c, p)
		q.rec.End(c)
		return elem, nil
	}
}

// Close drains the queue and releases the sentinel.
//
// Close requires exclusive access: no Enqueue or Dequeue may run
// concurrently with it or after it. Close is idempotent.
func (q *LockFree[T]) Close() {
	if q.closed.Load() {
		return
	}
	q.closed.Store(true)
	for {
		if _, err := q.Dequeue(); err != nil {
			break
		}
	}
	head := Ref(q.head.LoadAcquire())
	q.arena.retire(head)
	q.rec.Teardown(head)
}

// Stats returns the node accounting of the queue's arena.
func (q *LockFree[T]) Stats() Stats {
	return q.arena.stats()
}
