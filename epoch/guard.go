// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

// Guard is a pinned participant of a [Collector].
//
// While a guard is pinned, no object retired after (or shortly before) the
// pin can be destroyed. A guard belongs to the goroutine that pinned it and
// must not be used after Unpin.
type Guard struct {
	c      *Collector
	p      *participant
	active bool
}

// Unpin releases the guard's participant slot.
// Panics if the guard is not pinned.
func (g *Guard) Unpin() {
	if !g.active {
		panic("epoch: guard is not pinned")
	}
	g.active = false
	g.p.state.StoreRelease(idle)
}

// Collector returns the collector the guard is pinned to.
func (g *Guard) Collector() *Collector {
	return g.c
}

// DeferDestroy schedules d.Destroy(key) to run once no guard pinned at the
// time of the call can still observe the object.
func (g *Guard) DeferDestroy(d Destroyer, key uint64) {
	g.push(deferred{d: d, key: key})
}

// Defer schedules fn with the same guarantee as DeferDestroy.
func (g *Guard) Defer(fn func()) {
	g.push(deferred{fn: fn})
}

func (g *Guard) push(it deferred) {
	if !g.active {
		panic("epoch: defer on unpinned guard")
	}
	p := g.p
	if p.bag == nil {
		p.bag = getBag()
	}
	p.bag.items = append(p.bag.items, it)
	g.c.pending.Add(1)
	if len(p.bag.items) >= bagSize {
		g.c.seal(p)
		g.c.Collect()
	}
}
