// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import "code.hybscloud.com/atomix"

// Immediate frees a node synchronously as soon as it is unlinked.
//
// Immediate is the textbook naive reference and is NOT safe in general: a
// concurrent enqueuer walking from a stale tail, or a dequeuer that loaded
// head before the unlinking CAS, may dereference a node that has already
// been freed and reused. Arena indexing keeps such accesses in bounds, but
// the queue may lose, duplicate or tear elements (ABA).
//
// Immediate is sound with exactly one producer and one consumer goroutine:
// the producer then always links behind the true last node, which a
// consumer never unlinks. Use [RefCounted] or [EpochDeferred] otherwise.
func Immediate(s Slots) Reclaimer {
	return &immediate{s: s}
}

type immediate struct {
	s Slots
}

func (r *immediate) Begin() Critical { return Critical{} }

func (r *immediate) Protect(Critical, Ref, *atomix.Uint64) bool { return true }

func (r *immediate) Unprotect(Critical, Ref) {}

func (r *immediate) Retire(_ Critical, ref Ref) {
	r.s.Free(ref)
}

func (r *immediate) End(Critical) {}

func (r *immediate) Teardown(ref Ref) {
	r.s.Free(ref)
}
