// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package soak

import (
	"fmt"

	"code.hybscloud.com/msq"
)

// Teardown enqueues n elements, dequeues k of them, closes the queue and
// returns the arena accounting. The locked baseline has no arena and is
// rejected.
func Teardown(cfg Config, n, k int) (msq.Stats, error) {
	if cfg.Strategy == StrategyLocked {
		return msq.Stats{}, fmt.Errorf("soak: teardown needs a lock-free strategy, got %q", cfg.Strategy)
	}
	if k > n {
		return msq.Stats{}, fmt.Errorf("soak: cannot dequeue %d of %d elements", k, n)
	}
	q, collector, err := NewQueue(cfg)
	if err != nil {
		return msq.Stats{}, err
	}
	lf := q.(*msq.LockFree[uint64])
	for i := range n {
		v := uint64(i)
		lf.Enqueue(&v)
	}
	for i := range k {
		v, err := lf.Dequeue()
		if err != nil {
			return msq.Stats{}, fmt.Errorf("soak: dequeue %d of %d: %w", i, k, err)
		}
		if v != uint64(i) {
			return msq.Stats{}, fmt.Errorf("soak: dequeue %d: got %d, want %d", i, v, i)
		}
	}
	lf.Close()
	if collector != nil && collector.Pending() != 0 {
		return lf.Stats(), fmt.Errorf("soak: %d deferred destructions pending after close", collector.Pending())
	}
	return lf.Stats(), nil
}
