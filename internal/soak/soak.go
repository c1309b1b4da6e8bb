// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package soak drives a queue with concurrent producers and consumers for
// a bounded time and checks that every element came out exactly once.
package soak

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/msq"
	"code.hybscloud.com/msq/epoch"
)

// Strategy names accepted by Config.Strategy.
const (
	StrategyImmediate = "immediate"
	StrategyRefCount  = "refcount"
	StrategyEpoch     = "epoch"
	StrategyLocked    = "locked"
)

// producerShift separates the value ranges of producers.
const producerShift = 40

// Config configures one soak run.
type Config struct {
	Strategy  string
	Producers int
	Consumers int
	Duration  time.Duration

	// Limit caps the elements enqueued by each producer. Zero means 1<<20.
	Limit int

	// Chunk is the first arena segment size. Zero keeps the default.
	Chunk int

	// Checked counts touches of freed nodes.
	Checked bool

	// DrainTimeout bounds the drain after producers stop. Zero means 10s.
	DrainTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) validate() error {
	switch c.Strategy {
	case StrategyImmediate:
		if c.Producers != 1 || c.Consumers != 1 {
			return fmt.Errorf("soak: strategy %q requires exactly one producer and one consumer", c.Strategy)
		}
	case StrategyRefCount, StrategyEpoch, StrategyLocked:
	default:
		return fmt.Errorf("soak: unknown strategy %q", c.Strategy)
	}
	if c.Producers < 1 || c.Consumers < 1 {
		return fmt.Errorf("soak: need at least one producer and one consumer, got %d/%d", c.Producers, c.Consumers)
	}
	if c.Producers >= 1<<(64-producerShift) {
		return fmt.Errorf("soak: too many producers: %d", c.Producers)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("soak: duration must be positive, got %s", c.Duration)
	}
	if c.Limit < 0 || c.Limit >= 1<<producerShift {
		return fmt.Errorf("soak: limit out of range: %d", c.Limit)
	}
	if c.Chunk != 0 && (c.Chunk < 2 || c.Chunk > 1<<20) {
		return fmt.Errorf("soak: chunk out of range: %d", c.Chunk)
	}
	return nil
}

// NewQueue builds the queue a soak run with cfg exercises.
// The returned collector is nil unless the strategy is epoch.
func NewQueue(cfg Config) (msq.Queue[uint64], *epoch.Collector, error) {
	b := msq.New()
	if cfg.Chunk != 0 {
		b.Chunk(cfg.Chunk)
	}
	if cfg.Checked {
		b.Checked()
	}
	var c *epoch.Collector
	switch cfg.Strategy {
	case StrategyImmediate:
		b.Immediate()
	case StrategyRefCount:
		b.RefCounted()
	case StrategyEpoch:
		c = epoch.NewCollector(max(8, 2*(cfg.Producers+cfg.Consumers)))
		b.Epoch(c)
	case StrategyLocked:
		b.Locked()
	default:
		return nil, nil, fmt.Errorf("soak: unknown strategy %q", cfg.Strategy)
	}
	return msq.Build[uint64](b), c, nil
}

// Run executes one soak run and reports what it observed.
//
// Run returns an error only for an invalid configuration. Property
// violations are carried by the report; see [Report.Err].
func Run(ctx context.Context, cfg Config) (Report, error) {
	if err := cfg.validate(); err != nil {
		return Report{}, err
	}
	if cfg.Limit == 0 {
		cfg.Limit = 1 << 20
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	q, collector, err := NewQueue(cfg)
	if err != nil {
		return Report{}, err
	}
	log.Info("soak starting",
		"strategy", cfg.Strategy,
		"producers", cfg.Producers,
		"consumers", cfg.Consumers,
		"duration", cfg.Duration,
		"checked", cfg.Checked)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	start := time.Now()
	produced := make([]int, cfg.Producers)
	var prodWg sync.WaitGroup
	for p := range cfg.Producers {
		prodWg.Add(1)
		go func(p int) {
			defer prodWg.Done()
			base := uint64(p) << producerShift
			n := 0
			for ; n < cfg.Limit; n++ {
				if n&0xff == 0 && runCtx.Err() != nil {
					break
				}
				v := base | uint64(n)
				q.Enqueue(&v)
			}
			produced[p] = n
		}(p)
	}

	var (
		producing atomix.Bool
		timedOut  atomix.Bool
	)
	producing.Store(true)

	received := make([][]uint64, cfg.Consumers)
	var consWg sync.WaitGroup
	for c := range cfg.Consumers {
		consWg.Add(1)
		go func(c int) {
			defer consWg.Done()
			backoff := iox.Backoff{}
			var got []uint64
			for !timedOut.Load() {
				// Sampled before Dequeue: an empty queue seen after the
				// producers stopped stays empty.
				stopping := !producing.Load()
				v, err := q.Dequeue()
				if err == nil {
					got = append(got, v)
					backoff.Reset()
					continue
				}
				if stopping {
					break
				}
				backoff.Wait()
			}
			received[c] = got
		}(c)
	}

	prodWg.Wait()
	producing.Store(false)
	log.Debug("producers stopped", "elapsed", time.Since(start))

	done := make(chan struct{})
	go func() {
		consWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.DrainTimeout):
		timedOut.Store(true)
		<-done
	}

	rep := check(cfg, produced, received)
	rep.Elapsed = time.Since(start)
	rep.DrainTimedOut = timedOut.Load()

	// Nonzero only if an element became visible after an empty Dequeue.
	rep.Leftover = drainLeftover(q)
	q.Close()
	if lf, ok := q.(*msq.LockFree[uint64]); ok {
		st := lf.Stats()
		rep.Stats = &st
	}
	if collector != nil {
		rep.Pending = collector.Pending()
	}

	attrs := []any{
		"produced", rep.Produced,
		"consumed", rep.Consumed,
		"duplicates", rep.Duplicates,
		"missing", rep.Missing,
		"elapsed", rep.Elapsed,
	}
	if rep.Stats != nil {
		attrs = append(attrs,
			"allocs", rep.Stats.Allocs,
			"frees", rep.Stats.Frees,
			"use_after_free", rep.Stats.UseAfterFree,
			"double_frees", rep.Stats.DoubleFrees)
	}
	if err := rep.Err(); err != nil {
		log.Error("soak failed", append(attrs, "error", err)...)
	} else {
		log.Info("soak passed", attrs...)
	}
	return rep, nil
}

// drainLeftover counts elements still queued after the consumers exit.
func drainLeftover(q msq.Queue[uint64]) int {
	n := 0
	for {
		if _, err := q.Dequeue(); err != nil {
			return n
		}
		n++
	}
}
