// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"math/bits"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	// maxRef is the largest index a 32-bit Ref can address.
	maxRef = 1<<32 - 1

	// maxSegments bounds the segment table: segment k holds chunk<<k
	// nodes, so 33 segments cover the whole Ref space for any chunk >= 2.
	maxSegments = 33

	refMask = 1<<32 - 1
)

// Stats reports node accounting for one queue.
type Stats struct {
	Allocs       int64 // Nodes handed out, sentinel included
	Frees        int64 // Nodes returned to the free list
	Slots        int64 // Node slots materialized in the arena
	UseAfterFree int64 // Touches of freed nodes (checked queues only)
	DoubleFrees  int64 // Retire or free of a node in the wrong state
}

// Live returns the number of nodes allocated and not yet freed.
func (s Stats) Live() int64 {
	return s.Allocs - s.Frees
}

// arena is a grow-only node store addressed by Ref.
//
// Segments are materialized lazily and never released, so a Ref stays
// dereferenceable for the arena's lifetime. Freed nodes go to a Treiber
// stack threaded through node.link; the stack head packs a 32-bit ABA tag
// above the top Ref.
type arena[T any] struct {
	_       pad
	free    atomix.Uint64 // tag<<32 | top Ref
	_       pad
	bump    atomix.Uint64 // Last Ref handed out by bump allocation
	_       pad
	allocs  atomix.Int64
	frees   atomix.Int64
	slots   atomix.Int64
	uaf     atomix.Int64
	doubles atomix.Int64
	_       pad
	segs    [maxSegments]atomic.Pointer[segment[T]]
	chunk   uint64
	shift   int // log2(chunk)
	checked bool
}

type segment[T any] struct {
	nodes []node[T]
}

func newArena[T any](chunk int, checked bool) *arena[T] {
	n := uint64(roundToPow2(chunk))
	return &arena[T]{
		chunk:   n,
		shift:   bits.TrailingZeros64(n),
		checked: checked,
	}
}

// locate maps a Ref to its segment and offset.
func (a *arena[T]) locate(ref Ref) (k int, off uint64) {
	x := uint64(ref) - 1 + a.chunk
	k = bits.Len64(x) - 1 - a.shift
	return k, x - a.chunk<<k
}

// node returns the cell behind ref. Panics on NilRef.
func (a *arena[T]) node(ref Ref) *node[T] {
	k, off := a.locate(ref)
	return &a.segs[k].Load().nodes[off]
}

// alloc returns a node in the Linked state with next cleared.
func (a *arena[T]) alloc() Ref {
	sw := spin.Wait{}
	for {
		top := a.free.LoadAcquire()
		ref := Ref(top)
		if ref == NilRef {
			break
		}
		next := a.node(ref).link.LoadAcquire()
		if a.free.CompareAndSwapAcqRel(top, (top>>32+1)<<32|next&refMask) {
			return a.activate(ref)
		}
		sw.Once()
	}

	r := a.bump.AddAcqRel(1)
	if r > maxRef {
		panic("msq: node arena exhausted")
	}
	ref := Ref(r)
	a.grow(ref)
	return a.activate(ref)
}

// grow materializes the segment holding ref if no one has yet.
func (a *arena[T]) grow(ref Ref) {
	k, _ := a.locate(ref)
	if a.segs[k].Load() != nil {
		return
	}
	seg := &segment[T]{nodes: make([]node[T], a.chunk<<k)}
	if a.segs[k].CompareAndSwap(nil, seg) {
		a.slots.Add(int64(len(seg.nodes)))
	}
}

func (a *arena[T]) activate(ref Ref) Ref {
	n := a.node(ref)
	n.next.StoreRelaxed(uint64(NilRef))
	n.state.StoreRelease(nodeLinked)
	a.allocs.Add(1)
	return ref
}

// retire marks a node unlinked from the queue.
func (a *arena[T]) retire(ref Ref) {
	if !a.node(ref).state.CompareAndSwapAcqRel(nodeLinked, nodeRetired) {
		a.doubles.Add(1)
	}
}

// Free returns a retired node to the free list. Freeing a node that is
// not retired is counted and ignored.
func (a *arena[T]) Free(ref Ref) {
	n := a.node(ref)
	if !n.state.CompareAndSwapAcqRel(nodeRetired, nodeFree) {
		a.doubles.Add(1)
		return
	}
	sw := spin.Wait{}
	for {
		top := a.free.LoadAcquire()
		n.link.StoreRelaxed(top & refMask)
		if a.free.CompareAndSwapAcqRel(top, (top>>32+1)<<32|uint64(ref)) {
			break
		}
		sw.Once()
	}
	a.frees.Add(1)
}

// Destroy frees Ref(key). It lets the arena serve as an epoch.Destroyer.
func (a *arena[T]) Destroy(key uint64) {
	a.Free(Ref(key))
}

// Hazard returns the hazard counter of the node behind ref.
func (a *arena[T]) Hazard(ref Ref) *atomix.Uint64 {
	return &a.node(ref).hazard
}

// check records a touch of a freed node when checking is enabled.
func (a *arena[T]) check(ref Ref) {
	if a.checked && a.node(ref).state.LoadAcquire() == nodeFree {
		a.uaf.Add(1)
	}
}

func (a *arena[T]) stats() Stats {
	return Stats{
		Allocs:       a.allocs.Load(),
		Frees:        a.frees.Load(),
		Slots:        a.slots.Load(),
		UseAfterFree: a.uaf.Load(),
		DoubleFrees:  a.doubles.Load(),
	}
}
