// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/msq/epoch"
)

// EpochDeferred returns a strategy that delegates release to an epoch
// collector. A nil collector selects [epoch.Default].
//
// Every queue operation pins to the collector's global epoch for its whole
// duration. Retire defers destruction of the node to the collector, which
// runs it only after every guard pinned at retirement time has been
// dropped. Soundness does not depend on spin timing; release latency
// depends on epoch advancement.
func EpochDeferred(c *epoch.Collector) Strategy {
	if c == nil {
		c = epoch.Default()
	}
	return func(s Slots) Reclaimer {
		return &epochDeferred{s: s, c: c}
	}
}

type epochDeferred struct {
	s Slots
	c *epoch.Collector
}

func (r *epochDeferred) Begin() Critical {
	return Critical{guard: r.c.Pin()}
}

// Protect is a no-op: the pin taken by Begin keeps every reachable node
// alive.
func (r *epochDeferred) Protect(Critical, Ref, *atomix.Uint64) bool { return true }

func (r *epochDeferred) Unprotect(Critical, Ref) {}

func (r *epochDeferred) Retire(c Critical, ref Ref) {
	c.guard.DeferDestroy(r.s, uint64(ref))
}

func (r *epochDeferred) End(c Critical) {
	c.guard.Unpin()
}

func (r *epochDeferred) Teardown(ref Ref) {
	g := r.c.Pin()
	g.DeferDestroy(r.s, uint64(ref))
	g.Unpin()
	r.c.Flush()
}
