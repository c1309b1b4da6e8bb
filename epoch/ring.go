// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// bagRing is a CAS-based multi-producer multi-consumer bounded ring of
// sealed bags.
//
// Per-slot sequence numbers give ABA safety for slot claims. Each slot
// also carries the epoch its bag was sealed at, so consumers can decide
// whether the head bag has expired before claiming it.
type bagRing struct {
	_        pad
	tail     atomix.Uint64 // Sealer index
	_        pad
	head     atomix.Uint64 // Collector index
	_        pad
	buffer   []bagSlot
	mask     uint64
	capacity uint64
}

type bagSlot struct {
	seq   atomix.Uint64
	epoch atomix.Uint64
	bag   *bag
	_     [64 - 24]byte
}

func newBagRing(capacity int) *bagRing {
	n := uint64(roundToPow2(capacity))
	r := &bagRing{
		buffer:   make([]bagSlot, n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint64(0); i < n; i++ {
		r.buffer[i].seq.StoreRelaxed(i)
	}
	return r
}

// enqueue publishes b sealed at epoch e. Reports false if the ring is full.
func (r *bagRing) enqueue(b *bag, e uint64) bool {
	sw := spin.Wait{}
	for {
		tail := r.tail.LoadAcquire()
		slot := &r.buffer[tail&r.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail)

		if diff == 0 {
			if r.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.bag = b
				slot.epoch.StoreRelaxed(e)
				slot.seq.StoreRelease(tail + 1)
				return true
			}
		} else if diff < 0 {
			return false
		}
		sw.Once()
	}
}

// dequeueExpired claims the head bag if it was sealed at least two epochs
// before now. Bags behind an unexpired head are left in place.
func (r *bagRing) dequeueExpired(now uint64) (*bag, bool) {
	sw := spin.Wait{}
	for {
		head := r.head.LoadAcquire()
		slot := &r.buffer[head&r.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head+1)

		if diff == 0 {
			if slot.epoch.LoadRelaxed()+2 > now {
				return nil, false
			}
			if r.head.CompareAndSwapAcqRel(head, head+1) {
				b := slot.bag
				slot.bag = nil
				slot.seq.StoreRelease(head + r.capacity)
				return b, true
			}
		} else if diff < 0 {
			return nil, false
		}
		sw.Once()
	}
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
