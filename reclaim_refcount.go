// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// RefCounted gates node release on a per-node hazard counter.
//
// Before dereferencing a node reached through an atomic load, an operation
// increments the node's counter and keeps the increment only if the value
// before it was zero; otherwise it decrements, pauses and retries. It then
// re-reads the source word and backs off if the node is no longer there.
// The counter is decremented once the CAS that used the node completes.
//
// Retire spins until it claims the counter from zero itself, frees the node
// and drops the claim. A node is therefore never freed while any operation
// holds its counter.
//
// Cost: one contended increment/decrement pair per protected node and an
// unbounded, typically very short, spin during retirement.
func RefCounted(s Slots) Reclaimer {
	return &refCounted{s: s}
}

type refCounted struct {
	s Slots
}

func (r *refCounted) Begin() Critical { return Critical{} }

func (r *refCounted) Protect(_ Critical, ref Ref, src *atomix.Uint64) bool {
	h := r.s.Hazard(ref)
	sw := spin.Wait{}
	for h.AddAcqRel(1) != 1 {
		h.AddAcqRel(hazardRelease)
		sw.Once()
	}
	if Ref(src.LoadAcquire()) != ref {
		h.AddAcqRel(hazardRelease)
		return false
	}
	return true
}

func (r *refCounted) Unprotect(_ Critical, ref Ref) {
	r.s.Hazard(ref).AddAcqRel(hazardRelease)
}

func (r *refCounted) Retire(_ Critical, ref Ref) {
	h := r.s.Hazard(ref)
	sw := spin.Wait{}
	for !h.CompareAndSwapAcqRel(0, 1) {
		sw.Once()
	}
	r.s.Free(ref)
	h.AddAcqRel(hazardRelease)
}

func (r *refCounted) End(Critical) {}

func (r *refCounted) Teardown(ref Ref) {
	r.s.Free(ref)
}
