// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import "testing"

// =============================================================================
// Arena
// =============================================================================

func TestArenaLocate(t *testing.T) {
	a := newArena[int](4, false)

	tests := []struct {
		ref Ref
		k   int
		off uint64
	}{
		{1, 0, 0},
		{4, 0, 3},
		{5, 1, 0},
		{12, 1, 7},
		{13, 2, 0},
		{28, 2, 15},
		{29, 3, 0},
	}
	for _, tt := range tests {
		k, off := a.locate(tt.ref)
		if k != tt.k || off != tt.off {
			t.Fatalf("locate(%d): got (%d, %d), want (%d, %d)", tt.ref, k, off, tt.k, tt.off)
		}
	}
}

func TestArenaChunkRounding(t *testing.T) {
	a := newArena[int](5, false)
	if a.chunk != 8 {
		t.Fatalf("chunk: got %d, want 8", a.chunk)
	}
}

func TestArenaGrowth(t *testing.T) {
	a := newArena[int](2, false)

	refs := make([]Ref, 0, 14)
	for range 14 {
		ref := a.alloc()
		if ref == NilRef {
			t.Fatal("alloc returned NilRef")
		}
		refs = append(refs, ref)
	}
	// 2 + 4 + 8 slots.
	st := a.stats()
	if st.Slots != 14 {
		t.Fatalf("Slots: got %d, want 14", st.Slots)
	}
	if st.Allocs != 14 {
		t.Fatalf("Allocs: got %d, want 14", st.Allocs)
	}

	// Refs from earlier segments stay valid.
	for i, ref := range refs {
		a.node(ref).value = i
	}
	for i, ref := range refs {
		if got := a.node(ref).value; got != i {
			t.Fatalf("node(%d).value: got %d, want %d", ref, got, i)
		}
	}
}

func TestArenaFreeReuse(t *testing.T) {
	a := newArena[int](4, false)

	r1 := a.alloc()
	r2 := a.alloc()
	a.retire(r1)
	a.Free(r1)
	a.retire(r2)
	a.Free(r2)

	// LIFO free list.
	if got := a.alloc(); got != r2 {
		t.Fatalf("alloc after free: got %d, want %d", got, r2)
	}
	if got := a.alloc(); got != r1 {
		t.Fatalf("alloc after free: got %d, want %d", got, r1)
	}
	if got := a.alloc(); got == r1 || got == r2 {
		t.Fatalf("alloc with empty free list reused %d", got)
	}

	st := a.stats()
	if st.Allocs != 5 || st.Frees != 2 || st.Live() != 3 {
		t.Fatalf("Stats: got %+v, want Allocs=5 Frees=2", st)
	}
}

func TestArenaAllocResetsNext(t *testing.T) {
	a := newArena[int](2, false)
	r := a.alloc()
	a.node(r).next.StoreRelaxed(7)
	a.retire(r)
	a.Free(r)

	r2 := a.alloc()
	if r2 != r {
		t.Fatalf("alloc: got %d, want %d", r2, r)
	}
	if next := Ref(a.node(r2).next.LoadAcquire()); next != NilRef {
		t.Fatalf("next after reuse: got %d, want NilRef", next)
	}
}

func TestArenaDoubleFree(t *testing.T) {
	a := newArena[int](2, false)
	r := a.alloc()
	a.retire(r)
	a.Free(r)
	a.Free(r)

	st := a.stats()
	if st.Frees != 1 {
		t.Fatalf("Frees: got %d, want 1", st.Frees)
	}
	if st.DoubleFrees != 1 {
		t.Fatalf("DoubleFrees: got %d, want 1", st.DoubleFrees)
	}

	// The node was pushed once: two allocs must not both return it.
	x, y := a.alloc(), a.alloc()
	if x == y {
		t.Fatalf("alloc returned %d twice", x)
	}
}

func TestArenaDoubleRetire(t *testing.T) {
	a := newArena[int](2, false)
	r := a.alloc()
	a.retire(r)
	a.retire(r)
	if st := a.stats(); st.DoubleFrees != 1 {
		t.Fatalf("DoubleFrees: got %d, want 1", st.DoubleFrees)
	}
}

func TestArenaFreeLinked(t *testing.T) {
	a := newArena[int](2, false)
	r := a.alloc()
	a.Free(r)
	st := a.stats()
	if st.Frees != 0 || st.DoubleFrees != 1 {
		t.Fatalf("Stats: got %+v, want Frees=0 DoubleFrees=1", st)
	}
}

func TestArenaCheck(t *testing.T) {
	a := newArena[int](2, true)
	r := a.alloc()
	a.check(r)
	a.retire(r)
	a.check(r)
	if st := a.stats(); st.UseAfterFree != 0 {
		t.Fatalf("UseAfterFree on live node: got %d, want 0", st.UseAfterFree)
	}
	a.Free(r)
	a.check(r)
	if st := a.stats(); st.UseAfterFree != 1 {
		t.Fatalf("UseAfterFree: got %d, want 1", st.UseAfterFree)
	}

	unchecked := newArena[int](2, false)
	r = unchecked.alloc()
	unchecked.retire(r)
	unchecked.Free(r)
	unchecked.check(r)
	if st := unchecked.stats(); st.UseAfterFree != 0 {
		t.Fatalf("UseAfterFree unchecked: got %d, want 0", st.UseAfterFree)
	}
}

func TestArenaDestroy(t *testing.T) {
	a := newArena[int](2, false)
	r := a.alloc()
	a.retire(r)
	a.Destroy(uint64(r))
	if st := a.stats(); st.Frees != 1 {
		t.Fatalf("Frees: got %d, want 1", st.Frees)
	}
}

func TestRoundToPow2(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 2}, {1, 2}, {2, 2}, {3, 4}, {64, 64}, {65, 128}, {1000, 1024},
	}
	for _, tt := range tests {
		if got := roundToPow2(tt.in); got != tt.want {
			t.Fatalf("roundToPow2(%d): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
