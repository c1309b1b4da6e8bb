// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

import "testing"

func TestBagRingExpiry(t *testing.T) {
	r := newBagRing(3)
	if r.capacity != 4 {
		t.Fatalf("capacity: got %d, want 4", r.capacity)
	}

	b1, b2 := &bag{}, &bag{}
	if !r.enqueue(b1, 5) || !r.enqueue(b2, 6) {
		t.Fatal("enqueue on empty ring failed")
	}

	// Sealed at 5: not expired before 7.
	if _, ok := r.dequeueExpired(6); ok {
		t.Fatal("dequeueExpired(6): bag sealed at 5 returned")
	}
	got, ok := r.dequeueExpired(7)
	if !ok || got != b1 {
		t.Fatalf("dequeueExpired(7): got %p, %v, want %p", got, ok, b1)
	}
	// Sealed at 6 is next and not yet expired.
	if _, ok := r.dequeueExpired(7); ok {
		t.Fatal("dequeueExpired(7): bag sealed at 6 returned")
	}
	got, ok = r.dequeueExpired(100)
	if !ok || got != b2 {
		t.Fatalf("dequeueExpired(100): got %p, %v, want %p", got, ok, b2)
	}
	if _, ok := r.dequeueExpired(100); ok {
		t.Fatal("dequeueExpired on empty ring returned a bag")
	}
}

func TestBagRingFull(t *testing.T) {
	r := newBagRing(2)
	for i := range 2 {
		if !r.enqueue(&bag{}, uint64(i)) {
			t.Fatalf("enqueue(%d) failed", i)
		}
	}
	if r.enqueue(&bag{}, 0) {
		t.Fatal("enqueue on full ring succeeded")
	}
	if _, ok := r.dequeueExpired(2); !ok {
		t.Fatal("dequeueExpired(2) failed")
	}
	if !r.enqueue(&bag{}, 2) {
		t.Fatal("enqueue after dequeue failed")
	}
}

func TestBagDestroy(t *testing.T) {
	b := getBag()
	ran := 0
	b.items = append(b.items, deferred{fn: func() { ran++ }}, deferred{fn: func() { ran++ }})
	if n := b.destroy(); n != 2 {
		t.Fatalf("destroy: got %d, want 2", n)
	}
	if ran != 2 {
		t.Fatalf("ran: got %d, want 2", ran)
	}
	if len(b.items) != 0 {
		t.Fatalf("items after destroy: got %d, want 0", len(b.items))
	}
	putBag(b)
}
