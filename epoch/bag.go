// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package epoch

import "sync"

// Destroyer releases objects identified by a key.
//
// Node stores addressed by index implement Destroyer so that retiring a
// node does not allocate a closure.
type Destroyer interface {
	Destroy(key uint64)
}

// bagSize is the number of deferred items a participant buffers before
// sealing its bag.
const bagSize = 64

type deferred struct {
	d   Destroyer
	key uint64
	fn  func()
}

type bag struct {
	items []deferred
}

var bagPool = sync.Pool{
	New: func() any { return &bag{items: make([]deferred, 0, bagSize)} },
}

func getBag() *bag {
	return bagPool.Get().(*bag)
}

func putBag(b *bag) {
	b.items = b.items[:0]
	bagPool.Put(b)
}

// destroy runs every deferred item and returns how many ran.
func (b *bag) destroy() int {
	for i := range b.items {
		it := &b.items[i]
		if it.fn != nil {
			it.fn()
		} else {
			it.d.Destroy(it.key)
		}
		*it = deferred{}
	}
	n := len(b.items)
	b.items = b.items[:0]
	return n
}
