// File: pool/objpool.go
// Package pool
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
//
// RingPool is a fixed-capacity, preallocated free list. sync.Pool
// cannot give the exact preallocation count and constant-space
// guarantee the service handler pool needs (its contents may be
// evicted by the runtime at any GC), so this keeps a Get/Put shape but
// backs it with an explicit slice guarded by a mutex, with an atomic
// in-use counter for load reporting.

package pool

import (
	"sync"
	"sync/atomic"
)

// RingPool implements api.ObjectPool[T] over a fixed-capacity,
// preallocated free list.
type RingPool[T any] struct {
	mu       sync.Mutex
	free     []T
	inUse    int32
	create   func() T
	prealloc int
}

// NewRingPool preallocates n objects via create.
func NewRingPool[T any](n int, create func() T) *RingPool[T] {
	free := make([]T, 0, n)
	for i := 0; i < n; i++ {
		free = append(free, create())
	}
	return &RingPool[T]{free: free, create: create, prealloc: n}
}

// Get removes and returns an object from the free list. If the free
// list is exhausted a new object is constructed, matching sync.Pool's
// own overflow behavior; callers that must enforce a strict high
// watermark check InUse() themselves before calling Get.
func (p *RingPool[T]) Get() T {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		atomic.AddInt32(&p.inUse, 1)
		return p.create()
	}
	obj := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()
	atomic.AddInt32(&p.inUse, 1)
	return obj
}

// Put returns obj to the free list.
func (p *RingPool[T]) Put(obj T) {
	p.mu.Lock()
	p.free = append(p.free, obj)
	p.mu.Unlock()
	atomic.AddInt32(&p.inUse, -1)
}

// InUse reports the number of objects currently checked out.
func (p *RingPool[T]) InUse() int { return int(atomic.LoadInt32(&p.inUse)) }

// Cap reports the pool's initial preallocated capacity. This is fixed
// at construction and does not track slice capacity, which can grow
// once overflow-allocated objects (built past prealloc by Get) are
// later returned via Put.
func (p *RingPool[T]) Cap() int { return p.prealloc }
