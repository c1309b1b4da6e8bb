// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch_test

import (
	"testing"

	"code.hybscloud.com/msq/epoch"
)

// keys records destroyed keys.
type keys struct {
	got []uint64
}

func (k *keys) Destroy(key uint64) {
	k.got = append(k.got, key)
}

// =============================================================================
// Pin / Unpin
// =============================================================================

func TestPinUnpin(t *testing.T) {
	c := epoch.NewCollector(2)

	g := c.Pin()
	if g.Collector() != c {
		t.Fatalf("Collector: got %p, want %p", g.Collector(), c)
	}
	g.Unpin()

	// Slot is reusable after Unpin.
	for range 10 {
		c.Pin().Unpin()
	}
}

func TestUnpinTwicePanics(t *testing.T) {
	c := epoch.NewCollector(1)
	g := c.Pin()
	g.Unpin()

	defer func() {
		if recover() == nil {
			t.Fatal("second Unpin: expected panic")
		}
	}()
	g.Unpin()
}

func TestDeferOnUnpinnedGuardPanics(t *testing.T) {
	c := epoch.NewCollector(1)
	g := c.Pin()
	g.Unpin()

	defer func() {
		if recover() == nil {
			t.Fatal("Defer after Unpin: expected panic")
		}
	}()
	g.Defer(func() {})
}

func TestNewCollectorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewCollector(0): expected panic")
		}
	}()
	epoch.NewCollector(0)
}

func TestDefaultIsShared(t *testing.T) {
	if epoch.Default() != epoch.Default() {
		t.Fatal("Default: got distinct collectors")
	}
}

// =============================================================================
// Deferred destruction
// =============================================================================

func TestFlushDestroysDeferred(t *testing.T) {
	c := epoch.NewCollector(4)
	k := &keys{}

	g := c.Pin()
	for i := range 10 {
		g.DeferDestroy(k, uint64(i))
	}
	g.Unpin()

	if c.Pending() != 10 {
		t.Fatalf("Pending: got %d, want 10", c.Pending())
	}
	if len(k.got) != 0 {
		t.Fatalf("destroyed before Flush: %v", k.got)
	}

	c.Flush()

	if c.Pending() != 0 {
		t.Fatalf("Pending after Flush: got %d, want 0", c.Pending())
	}
	if len(k.got) != 10 {
		t.Fatalf("destroyed: got %d, want 10", len(k.got))
	}
	for i, key := range k.got {
		if key != uint64(i) {
			t.Fatalf("destroyed[%d]: got %d, want %d", i, key, i)
		}
	}
}

func TestPinnedGuardBlocksDestruction(t *testing.T) {
	c := epoch.NewCollector(4)
	destroyed := 0

	old := c.Pin()

	g := c.Pin()
	g.Defer(func() { destroyed++ })
	g.Unpin()

	c.Flush()
	if destroyed != 0 {
		t.Fatal("deferred item destroyed while an older guard is pinned")
	}
	if c.Pending() != 1 {
		t.Fatalf("Pending: got %d, want 1", c.Pending())
	}

	old.Unpin()
	c.Flush()
	if destroyed != 1 {
		t.Fatalf("destroyed after Unpin: got %d, want 1", destroyed)
	}
}

func TestStalePinBlocksAdvance(t *testing.T) {
	c := epoch.NewCollector(4)

	old := c.Pin()
	e := c.Epoch()

	// One advance is allowed: the stale guard has observed e.
	c.Collect()
	c.Collect()
	c.Collect()
	if got := c.Epoch(); got != e+1 {
		t.Fatalf("Epoch with stale pin: got %d, want %d", got, e+1)
	}

	old.Unpin()
	c.Collect()
	if got := c.Epoch(); got != e+2 {
		t.Fatalf("Epoch after Unpin: got %d, want %d", got, e+2)
	}
}

func TestFullBagIsSealed(t *testing.T) {
	c := epoch.NewCollector(2)
	k := &keys{}

	// Many bags through one slot, with collection in between.
	const n = 64 * 40
	for i := range n {
		g := c.Pin()
		g.DeferDestroy(k, uint64(i))
		g.Unpin()
	}
	if len(k.got) == 0 {
		t.Fatal("nothing destroyed before Flush")
	}

	c.Flush()
	if len(k.got) != n {
		t.Fatalf("destroyed: got %d, want %d", len(k.got), n)
	}
	seen := make([]bool, n)
	for _, key := range k.got {
		if seen[key] {
			t.Fatalf("key %d destroyed twice", key)
		}
		seen[key] = true
	}
}

func TestFlushEmpty(t *testing.T) {
	c := epoch.NewCollector(1)
	e := c.Epoch()
	c.Flush()
	if c.Epoch() != e {
		t.Fatalf("Epoch after empty Flush: got %d, want %d", c.Epoch(), e)
	}
}
