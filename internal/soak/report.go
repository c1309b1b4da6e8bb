// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package soak

import (
	"errors"
	"fmt"
	"time"

	"code.hybscloud.com/msq"
)

// Report is the outcome of one soak run.
type Report struct {
	Strategy string
	Produced int64
	Consumed int64

	// Duplicates counts elements received more than once.
	Duplicates int64

	// Missing counts produced elements never received.
	Missing int64

	// Foreign counts received values no producer enqueued.
	Foreign int64

	// Reorders counts elements of one producer a consumer received out of
	// enqueue order.
	Reorders int64

	// SumOK reports whether the received values sum to the produced ones.
	SumOK bool

	Leftover      int
	DrainTimedOut bool
	Elapsed       time.Duration

	// Stats is the arena accounting after Close; nil for the locked baseline.
	Stats *msq.Stats

	// Pending is the number of deferred destructions left in the epoch
	// collector after Close.
	Pending int
}

// Err returns nil if every checked property held.
func (r Report) Err() error {
	var errs []error
	if r.Duplicates != 0 {
		errs = append(errs, fmt.Errorf("%d duplicate elements", r.Duplicates))
	}
	if r.Missing != 0 {
		errs = append(errs, fmt.Errorf("%d missing elements", r.Missing))
	}
	if r.Foreign != 0 {
		errs = append(errs, fmt.Errorf("%d foreign elements", r.Foreign))
	}
	if r.Reorders != 0 {
		errs = append(errs, fmt.Errorf("%d per-producer reorders", r.Reorders))
	}
	if !r.SumOK {
		errs = append(errs, errors.New("sum mismatch"))
	}
	if r.Leftover != 0 {
		errs = append(errs, fmt.Errorf("%d elements left after drain", r.Leftover))
	}
	if r.DrainTimedOut {
		errs = append(errs, errors.New("drain timed out"))
	}
	if st := r.Stats; st != nil {
		if st.UseAfterFree != 0 {
			errs = append(errs, fmt.Errorf("%d use-after-free touches", st.UseAfterFree))
		}
		if st.DoubleFrees != 0 {
			errs = append(errs, fmt.Errorf("%d double frees", st.DoubleFrees))
		}
		if st.Live() != 0 {
			errs = append(errs, fmt.Errorf("%d nodes live after close", st.Live()))
		}
	}
	if r.Pending != 0 {
		errs = append(errs, fmt.Errorf("%d deferred destructions pending after close", r.Pending))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("soak %s: %w", r.Strategy, errors.Join(errs...))
}

// check matches what the consumers received against what was produced.
func check(cfg Config, produced []int, received [][]uint64) Report {
	rep := Report{Strategy: cfg.Strategy}
	seen := make([][]bool, len(produced))
	var want, got uint64
	for p, n := range produced {
		rep.Produced += int64(n)
		seen[p] = make([]bool, n)
		base := uint64(p) << producerShift
		// Sum of base+i for i in [0, n).
		want += uint64(n)*base + uint64(n)*uint64(max(n-1, 0))/2
	}

	last := make([]int64, len(produced))
	for _, vs := range received {
		for i := range last {
			last[i] = -1
		}
		for _, v := range vs {
			rep.Consumed++
			got += v
			p := int(v >> producerShift)
			i := int64(v & (1<<producerShift - 1))
			if p >= len(produced) || i >= int64(produced[p]) {
				rep.Foreign++
				continue
			}
			if seen[p][i] {
				rep.Duplicates++
			}
			seen[p][i] = true
			if i <= last[p] {
				rep.Reorders++
			}
			last[p] = i
		}
	}

	for p := range seen {
		for _, ok := range seen[p] {
			if !ok {
				rep.Missing++
			}
		}
	}
	rep.SumOK = got == want
	return rep
}
