// File: api/loop.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event loop and loop pool contracts (spec §3, §4.1, §4.2).

package api

import "errors"

// ErrClosed is returned by Submit once a Loop has been stopped.
var ErrClosed = errors.New("bas: loop closed")

// Loop is a single-threaded task executor: an opaque queue plus one
// dedicated worker goroutine draining it.
type Loop interface {
	// Submit enqueues task for execution on this loop's worker.
	// Returns ErrClosed if the loop has already stopped.
	Submit(task func()) error
	// Start launches the worker goroutine. Non-blocking. Starting an
	// already-started loop is a no-op.
	Start()
	// Stop requests cooperative exit: the worker returns once its
	// queue has drained of non-persistent work. If force is true,
	// outstanding tasks are abandoned and the worker returns promptly.
	// Stopping an already-stopped loop is a no-op.
	Stop(force bool)
	// IsIdle reports whether the queue is empty and no task is
	// currently executing.
	IsIdle() bool
}

// Pool is a fixed-size, ordered sequence of loops selected round-robin.
type Pool interface {
	// Next returns the next loop in round-robin order.
	Next() Loop
	// Start starts every loop's worker goroutine.
	Start()
	// Stop stops every loop.
	Stop(force bool)
	// IsIdle reports whether every loop in the pool is idle.
	IsIdle() bool
	// Size returns the current number of loops in the pool.
	Size() int
}

// Scheduler abstracts timer scheduling used for session timeouts.
type Scheduler interface {
	// Schedule invokes fn once after d elapses, returning a handle
	// that Cancel can use to abort it before it fires.
	Schedule(d int64, fn func()) Cancelable
	// Cancel aborts a previously scheduled callback. Canceling an
	// already-fired or already-canceled callback is a no-op.
	Cancel(c Cancelable)
}

// Cancelable is an opaque handle to a scheduled callback.
type Cancelable interface {
	CancelToken()
}
