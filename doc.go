// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msq provides an unbounded lock-free FIFO queue with pluggable
// node reclamation.
//
// The queue is the Michael–Scott two-pointer linked list: a sentinel node
// at head, CAS retry loops on head, tail and each node's next word, and no
// locks. What differs between queues is when an unlinked node may be
// released for reuse, which is decided by a reclamation [Strategy]:
//
//   - Immediate: free on unlink (naive reference, single producer and
//     single consumer only)
//   - RefCounted: per-node hazard counter, release waits for zero
//   - EpochDeferred: release deferred through an [epoch.Collector]
//
// A mutex-guarded [Locked] queue with the same contract serves as the
// reference baseline.
//
// # Quick Start
//
// Direct constructors:
//
//	q := msq.NewRefCounted[Event]()
//	q := msq.NewEpoch[*Request](nil)   // process-wide collector
//	q := msq.NewLocked[Event]()
//
// Builder API:
//
//	q := msq.Build[Event](msq.New())                        // → RefCounted
//	q := msq.Build[Event](msq.New().Epoch(c).Chunk(1024))   // → EpochDeferred
//	q := msq.Build[Event](msq.New().Immediate())            // → Immediate
//	q := msq.Build[Event](msq.New().Locked())               // → Locked
//
// # Basic Usage
//
//	q := msq.NewRefCounted[int]()
//	defer q.Close()
//
//	// Enqueue (never fails)
//	value := 42
//	q.Enqueue(&value)
//
//	// Dequeue (non-blocking)
//	elem, err := q.Dequeue()
//	if msq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// Worker pool:
//
//	q := msq.NewEpoch[Job](nil)
//
//	for range numWorkers {
//	    go func() {
//	        backoff := iox.Backoff{}
//	        for {
//	            job, err := q.Dequeue()
//	            if err != nil {
//	                backoff.Wait()
//	                continue
//	            }
//	            backoff.Reset()
//	            job.Run()
//	        }
//	    }()
//	}
//
// # Nodes and Refs
//
// Nodes live in a per-queue arena of segments that double in size and are
// never released while the queue is reachable. A node is addressed by a
// 32-bit [Ref]; [NilRef] is reserved. Because a Ref always resolves to
// valid memory, a lost reclamation race under Immediate cannot fault; it
// corrupts the queue instead.
//
// Each node moves through Free → Linked → Retired → Free. Retiring or
// freeing a node twice is detected and counted in [Stats.DoubleFrees].
// With [Builder.Checked], every node touch made by the queue verifies the
// node is not Free and counts violations in [Stats.UseAfterFree].
//
// # Reclamation Strategies
//
// Every queue operation runs between [Reclaimer.Begin] and [Reclaimer.End],
// protects each node it reaches through an atomic load with
// [Reclaimer.Protect], and retires each node it unlinks exactly once.
//
// RefCounted makes protection exclusive: a node's counter is taken only
// from zero, and Retire claims it the same way before freeing. Operations
// always acquire nodes in list order, so the spins cannot deadlock.
//
// EpochDeferred pins the operation to the collector's global epoch and
// defers destruction of retired nodes until every guard pinned at
// retirement has been dropped. A collector may be shared by many queues.
//
// # Teardown
//
// Close drains the queue through Dequeue, then releases the final sentinel
// through the strategy. After Close on a quiescent queue:
//
//	st := q.Stats()
//	st.Allocs == st.Frees // every node, sentinel included
//
// Close must not run concurrently with any other operation.
//
// # Error Handling
//
// [ErrWouldBlock] is the only error: Dequeue on an empty queue. It is
// sourced from [code.hybscloud.com/iox] for ecosystem consistency.
//
//	msq.IsWouldBlock(err)  // true if queue empty
//	msq.IsSemantic(err)    // true if control flow signal
//	msq.IsNonFailure(err)  // true if nil or ErrWouldBlock
//
// Misuse panics: a chunk size out of range, a nil strategy, or running out
// of the 32-bit Ref space.
//
// # Race Detection
//
// Go's race detector cannot observe happens-before relationships
// established through acquire-release orderings on separate variables.
// Element values are written before the release CAS that links a node and
// read after the acquire load that reaches it, which the detector reports
// as races. Concurrent tests skip when [RaceEnabled] is set.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package msq
