// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import "code.hybscloud.com/atomix"

// Ref is a stable arena index standing in for a node pointer.
//
// A Ref stays valid for the lifetime of the queue that allocated it:
// dereferencing is an arena lookup, never a raw memory access. Whether the
// node behind a Ref is still logically alive is decided by the queue's
// reclamation strategy.
type Ref uint32

// NilRef is the reserved null index. It is never allocated.
const NilRef Ref = 0

// Node lifecycle states.
//
//	Free → Linked → Retired → Free
//
// Retired is the quarantine between unlink and release: memory is valid,
// the node is logically absent from the queue.
const (
	nodeFree uint64 = iota
	nodeLinked
	nodeRetired
)

// node is a linked-list cell.
type node[T any] struct {
	next   atomix.Uint64 // Ref of the successor, NilRef until linked
	hazard atomix.Uint64 // Hazard counter (RefCounted)
	link   atomix.Uint64 // Free-list successor
	state  atomix.Uint64 // nodeFree, nodeLinked or nodeRetired
	value  T             // Zero for the sentinel
}
