// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

import (
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	idle      = 0
	pinnedBit = 1

	// collectEvery is the number of pins of one slot between two
	// opportunistic collection passes.
	collectEvery = 128

	// maxFlushRounds bounds Flush while other goroutines keep pinning.
	maxFlushRounds = 64
)

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// Collector is an epoch-based reclamation domain.
//
// All guards pinned from one Collector share its global epoch and its
// garbage. A Collector can be shared by any number of data structures.
type Collector struct {
	_       pad
	global  atomix.Uint64 // Global epoch
	_       pad
	hint    atomix.Uint64 // Slot scan start
	_       pad
	pending atomix.Int64 // Deferred items not yet destroyed
	_       pad
	slots   []participant
	ring    *bagRing
}

type participant struct {
	_     pad
	state atomix.Uint64 // idle, or pinned epoch<<1 | pinnedBit
	bag   *bag          // Owned by the pinning guard
	pins  uint64
	guard Guard
}

// NewCollector creates a collector with the given number of participant
// slots. Panics if participants < 1.
func NewCollector(participants int) *Collector {
	if participants < 1 {
		panic("epoch: participants must be >= 1")
	}
	c := &Collector{
		slots: make([]participant, participants),
		ring:  newBagRing(participants * 2),
	}
	for i := range c.slots {
		c.slots[i].guard = Guard{c: c, p: &c.slots[i]}
	}
	return c
}

var (
	defaultOnce      sync.Once
	defaultCollector *Collector
)

// Default returns the process-wide collector, sized at four participants
// per GOMAXPROCS with a minimum of eight.
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector(max(8, 4*runtime.GOMAXPROCS(0)))
	})
	return defaultCollector
}

// Pin claims a participant slot and pins it to the current global epoch.
// Spins while every slot is pinned.
//
// The returned guard must be released with [Guard.Unpin] on every exit path.
func (c *Collector) Pin() *Guard {
	n := uint64(len(c.slots))
	start := c.hint.AddAcqRel(1)
	sw := spin.Wait{}
	for {
		for i := uint64(0); i < n; i++ {
			p := &c.slots[(start+i)%n]
			if p.state.LoadRelaxed() != idle {
				continue
			}
			e := c.global.LoadAcquire()
			if !p.state.CompareAndSwapAcqRel(idle, e<<1|pinnedBit) {
				continue
			}
			// Republish until the pinned epoch matches the global one
			// seen after the slot became visible as pinned.
			for {
				now := c.global.LoadAcquire()
				if now == e {
					break
				}
				e = now
				p.state.StoreRelease(e<<1 | pinnedBit)
			}
			p.guard.active = true
			p.pins++
			if p.pins%collectEvery == 0 {
				c.Collect()
			}
			return &p.guard
		}
		sw.Once()
	}
}

// Epoch returns the current global epoch.
func (c *Collector) Epoch() uint64 {
	return c.global.LoadAcquire()
}

// Pending returns the number of deferred items not yet destroyed.
func (c *Collector) Pending() int {
	return int(c.pending.Load())
}

// tryAdvance moves the global epoch forward by one if every pinned
// participant has observed it, and returns the resulting epoch.
func (c *Collector) tryAdvance() uint64 {
	e := c.global.LoadAcquire()
	for i := range c.slots {
		s := c.slots[i].state.LoadAcquire()
		if s&pinnedBit != 0 && s>>1 != e {
			return e
		}
	}
	if c.global.CompareAndSwapAcqRel(e, e+1) {
		return e + 1
	}
	return c.global.LoadAcquire()
}

// Collect attempts to advance the global epoch once, then destroys every
// sealed bag that has expired.
func (c *Collector) Collect() {
	now := c.tryAdvance()
	for range c.ring.capacity {
		b, ok := c.ring.dequeueExpired(now)
		if !ok {
			return
		}
		n := b.destroy()
		c.pending.Add(-int64(n))
		putBag(b)
	}
}

// Flush seals the bags of all idle participants and runs collection passes
// until nothing is pending or the epoch stops making progress.
//
// Flush destroys everything only when no guard is pinned concurrently;
// with pinned guards it behaves like repeated calls to Collect.
func (c *Collector) Flush() {
	stalled := 0
	for range maxFlushRounds {
		if c.pending.Load() == 0 || stalled == 3 {
			return
		}
		before, e := c.pending.Load(), c.global.LoadAcquire()
		for i := range c.slots {
			p := &c.slots[i]
			if !p.state.CompareAndSwapAcqRel(idle, e<<1|pinnedBit) {
				continue
			}
			if p.bag != nil && len(p.bag.items) > 0 {
				c.seal(p)
			}
			p.state.StoreRelease(idle)
		}
		c.Collect()
		if c.pending.Load() < before || c.global.LoadAcquire() != e {
			stalled = 0
		} else {
			stalled++
		}
	}
}

// seal stamps the participant's bag with the current global epoch and
// publishes it. A bag that does not fit in the ring stays local and is
// restamped on the next attempt.
func (c *Collector) seal(p *participant) {
	e := c.global.LoadAcquire()
	if !c.ring.enqueue(p.bag, e) {
		c.Collect()
		e = c.global.LoadAcquire()
		if !c.ring.enqueue(p.bag, e) {
			return
		}
	}
	p.bag = nil
}
