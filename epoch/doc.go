// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package epoch provides epoch-based memory reclamation.
//
// A goroutine pins itself to the global epoch for the duration of one
// operation on a shared structure. Objects unlinked from that structure are
// handed to the pinned [Guard] with [Guard.DeferDestroy]; their destructor
// runs only after every guard that was pinned when they were retired has
// been dropped.
//
//	g := c.Pin()
//	defer g.Unpin()
//	// load shared pointers, unlink a node ...
//	g.DeferDestroy(store, uint64(ref))
//
// # Epochs
//
// The collector keeps a global epoch counter. The counter moves from e to
// e+1 only when every pinned participant has observed e. Deferred items are
// collected into a per-participant bag; a full bag is sealed with the
// current global epoch and pushed to a shared ring. A bag sealed at epoch e
// is destroyed once the global epoch reaches e+2: by then every guard that
// could have observed its contents has been unpinned.
//
// # Participants
//
// A [Collector] owns a fixed table of participant slots. [Collector.Pin]
// claims an idle slot and spins while all slots are pinned, so the table
// should be sized above the number of goroutines expected to be pinned at
// once. Pins do not nest: a goroutine must Unpin before it pins again.
//
// # Destruction
//
// Destructors run on whichever goroutine performs a collection pass, either
// while deferring, on every 128th pin of a slot, or from an explicit
// [Collector.Collect] or [Collector.Flush].
package epoch
