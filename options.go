// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import "code.hybscloud.com/msq/epoch"

const (
	// defaultChunk is the node count of the first arena segment.
	defaultChunk = 64

	// maxChunk bounds the first arena segment.
	maxChunk = 1 << 20
)

// Options configures queue creation and strategy selection.
type Options struct {
	// Reclamation strategy (nil selects RefCounted)
	strategy Strategy

	// Mutex baseline instead of the lock-free queue
	locked bool

	// First arena segment size (rounds up to next power of 2)
	chunk int

	// Count touches of freed nodes
	checked bool
}

// Builder creates queues with fluent configuration.
//
// Builder selects the reclamation strategy and tunes the node arena.
// Without a strategy call, queues use [RefCounted].
//
// Example:
//
//	// Default lock-free queue (RefCounted)
//	q := msq.Build[Event](msq.New())
//
//	// Epoch-based reclamation on a private collector
//	q := msq.BuildLockFree[Request](msq.New().Epoch(epoch.NewCollector(64)))
//
//	// Mutex baseline
//	q := msq.Build[Event](msq.New().Locked())
type Builder struct {
	opts Options
}

// New creates a queue builder with default options.
func New() *Builder {
	return &Builder{opts: Options{chunk: defaultChunk}}
}

// Immediate selects the [Immediate] strategy.
// Only sound with a single producer and a single consumer.
func (b *Builder) Immediate() *Builder {
	b.opts.strategy = Immediate
	b.opts.locked = false
	return b
}

// RefCounted selects the [RefCounted] strategy (default).
func (b *Builder) RefCounted() *Builder {
	b.opts.strategy = RefCounted
	b.opts.locked = false
	return b
}

// Epoch selects [EpochDeferred] on collector c.
// A nil collector selects [epoch.Default].
func (b *Builder) Epoch(c *epoch.Collector) *Builder {
	b.opts.strategy = EpochDeferred(c)
	b.opts.locked = false
	return b
}

// Strategy selects a custom reclamation strategy.
// Panics if s is nil.
func (b *Builder) Strategy(s Strategy) *Builder {
	if s == nil {
		panic("msq: nil reclamation strategy")
	}
	b.opts.strategy = s
	b.opts.locked = false
	return b
}

// Locked selects the mutex baseline [Locked].
func (b *Builder) Locked() *Builder {
	b.opts.locked = true
	return b
}

// Chunk sets the node count of the first arena segment.
// Each further segment doubles. Rounds up to the next power of 2.
//
// Panics if n < 2 or n > 1<<20.
func (b *Builder) Chunk(n int) *Builder {
	if n < 2 {
		panic("msq: chunk must be >= 2")
	}
	if n > maxChunk {
		panic("msq: chunk must be <= 1<<20")
	}
	b.opts.chunk = n
	return b
}

// Checked enables use-after-free accounting on every node touch.
// See [Stats.UseAfterFree].
func (b *Builder) Checked() *Builder {
	b.opts.checked = true
	return b
}

// Build creates a Queue[T] for the configured strategy.
//
//	Locked   → *Locked[T]
//	Otherwise → *LockFree[T] with the selected strategy
func Build[T any](b *Builder) Queue[T] {
	if b.opts.locked {
		return NewLocked[T]()
	}
	return BuildLockFree[T](b)
}

// BuildLockFree creates a *LockFree[T] with compile-time type safety.
// Panics if builder is configured with Locked().
func BuildLockFree[T any](b *Builder) *LockFree[T] {
	if b.opts.locked {
		panic("msq: BuildLockFree requires a reclamation strategy, not Locked()")
	}
	s := b.opts.strategy
	if s == nil {
		s = RefCounted
	}
	return newLockFree[T](s, b.opts.chunk, b.opts.checked)
}

// NewImmediate creates a lock-free queue with the [Immediate] strategy.
func NewImmediate[T any]() *LockFree[T] {
	return newLockFree[T](Immediate, defaultChunk, false)
}

// NewRefCounted creates a lock-free queue with the [RefCounted] strategy.
func NewRefCounted[T any]() *LockFree[T] {
	return newLockFree[T](RefCounted, defaultChunk, false)
}

// NewEpoch creates a lock-free queue with the [EpochDeferred] strategy.
// A nil collector selects [epoch.Default].
func NewEpoch[T any](c *epoch.Collector) *LockFree[T] {
	return newLockFree[T](EpochDeferred(c), defaultChunk, false)
}

// NewLockFree creates a lock-free queue with strategy s.
// Panics if s is nil.
func NewLockFree[T any](s Strategy) *LockFree[T] {
	return newLockFree[T](s, defaultChunk, false)
}

// NewLocked creates a mutex baseline queue.
func NewLocked[T any]() *Locked[T] {
	return &Locked[T]{}
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte
