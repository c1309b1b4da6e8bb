// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/msq/epoch"
)

// Slots is the node storage a [Reclaimer] releases into.
//
// The arena of every [LockFree] queue implements Slots. It also satisfies
// [epoch.Destroyer], so a Ref can be handed to an epoch guard as a key.
type Slots interface {
	epoch.Destroyer

	// Free returns a retired node to the arena.
	Free(ref Ref)

	// Hazard returns the hazard counter embedded in the node.
	Hazard(ref Ref) *atomix.Uint64
}

// Critical is the per-operation token returned by [Reclaimer.Begin].
// It carries the epoch guard for EpochDeferred and nothing otherwise.
type Critical struct {
	guard *epoch.Guard
}

// Reclaimer decides when a node unlinked from the queue may be released.
//
// The queue algorithm is identical for every reclaimer. It brackets each
// public operation with Begin/End, protects every node it reaches through
// an atomic load before dereferencing it, and hands each unlinked node to
// Retire exactly once.
type Reclaimer interface {
	// Begin opens the critical section of one queue operation.
	Begin() Critical

	// Protect makes ref safe to dereference until Unprotect, then confirms
	// that src still holds ref. On false the caller reloads src and retries;
	// ref is not protected.
	Protect(c Critical, ref Ref, src *atomix.Uint64) bool

	// Unprotect drops the protection taken by a successful Protect.
	Unprotect(c Critical, ref Ref)

	// Retire takes ownership of a node unlinked by the caller. The node is
	// freed now or once no concurrent operation can observe it.
	Retire(c Critical, ref Ref)

	// End closes the critical section opened by Begin.
	End(c Critical)

	// Teardown releases the final sentinel. The caller has exclusive
	// access to the queue.
	Teardown(ref Ref)
}

// Strategy creates the Reclaimer of one queue bound to its node storage.
//
// [Immediate] and [RefCounted] are strategies; [EpochDeferred] returns one.
type Strategy func(s Slots) Reclaimer

// hazardRelease decrements a hazard counter (two's complement add).
const hazardRelease = ^uint64(0)
