// File: internal/loop/queue.go
// Package loop implements the event-loop pool machinery (spec §3, §4.1,
// §4.2): fixed-size loop pools with round-robin selection, and an
// elastic work pool that grows under load.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// taskQueue is a growable multi-producer/single-consumer ring buffer
// of tasks. Many handler goroutines Submit() concurrently onto a Loop;
// only the Loop's own worker goroutine ever Dequeues. Producers
// serialize the tail claim with a mutex, and the consumer takes the
// same mutex, because a full queue's grow rebases head and tail onto
// a new backing array.
package loop

import (
	"sync"
	"sync/atomic"
)

type taskQueue struct {
	mu   sync.Mutex // guards producer-side tail claims
	data []func()
	mask uint64
	head atomic.Uint64
	tail atomic.Uint64
}

func newTaskQueue(capacity int) *taskQueue {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &taskQueue{
		data: make([]func(), size),
		mask: uint64(size - 1),
	}
}

// enqueue appends task, growing the backing array if the queue is full.
func (q *taskQueue) enqueue(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tail := q.tail.Load()
	head := q.head.Load()
	if tail-head >= uint64(len(q.data)) {
		q.grow()
	}
	q.data[tail&q.mask] = task
	q.tail.Store(tail + 1)
}

// grow doubles capacity. Caller must hold q.mu.
func (q *taskQueue) grow() {
	head := q.head.Load()
	tail := q.tail.Load()
	n := tail - head
	newData := make([]func(), (len(q.data))*2)
	newMask := uint64(len(newData) - 1)
	for i := uint64(0); i < n; i++ {
		newData[i] = q.data[(head+i)&q.mask]
	}
	q.data = newData
	q.mask = newMask
	q.head.Store(0)
	q.tail.Store(n)
}

// dequeue removes and returns the oldest task. Only safe to call from
// the single consumer goroutine.
func (q *taskQueue) dequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	head := q.head.Load()
	tail := q.tail.Load()
	if head >= tail {
		return nil, false
	}
	task := q.data[head&q.mask]
	q.data[head&q.mask] = nil
	q.head.Store(head + 1)
	return task, true
}

// len reports the number of pending tasks.
func (q *taskQueue) len() int {
	return int(q.tail.Load() - q.head.Load())
}
