// File: internal/loop/loop.go
// Package loop
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop is a single-threaded task executor with adaptive backoff, built
// around a worker select-loop generalized from typed events to
// arbitrary closures and pinned to its own OS thread for the whole of
// its lifetime, matching
// spec §3's "each loop ... is pinned to one worker thread". A Loop may
// be Start()ed again after Stop() returns, so a server's graceful
// shutdown can restart-and-stop its pools repeatedly while draining
// (spec §4.5).

package loop

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basreactor/bas/api"
)

// Loop implements api.Loop.
type Loop struct {
	queue *taskQueue

	mu      sync.Mutex // guards stopCh/doneCh across restarts.
	stopCh  chan struct{}
	doneCh  chan struct{}
	running int32 // 0 = idle, 1 = running.

	stopped   int32
	executing int32
	forced    int32
	backoffNs int64
}

// New creates a Loop with the given initial queue capacity hint.
func New(queueHint int) *Loop {
	if queueHint <= 0 {
		queueHint = 256
	}
	return &Loop{
		queue:     newTaskQueue(queueHint),
		backoffNs: 1,
	}
}

var _ api.Loop = (*Loop)(nil)

// Submit enqueues task for execution on this loop's worker.
func (l *Loop) Submit(task func()) error {
	if atomic.LoadInt32(&l.stopped) == 1 {
		return api.ErrClosed
	}
	l.queue.enqueue(task)
	return nil
}

// Start launches the worker goroutine. Non-blocking, idempotent.
// Starting a previously stopped loop resumes draining its queue.
func (l *Loop) Start() {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return
	}
	l.beginGeneration()
	go l.run()
}

// RunBlocking runs this loop's worker on the calling goroutine instead
// of spawning one, matching spec §3's loop-pool "run-one-blocking"
// operation: the caller's own thread becomes this loop's pinned
// worker thread until Stop is called. Starting an already-started
// loop is a no-op, same as Start.
func (l *Loop) RunBlocking() {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return
	}
	l.beginGeneration()
	l.run()
}

func (l *Loop) beginGeneration() {
	l.mu.Lock()
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()
	atomic.StoreInt32(&l.stopped, 0)
	atomic.StoreInt32(&l.forced, 0)
}

func (l *Loop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.mu.Lock()
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()

	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			if atomic.LoadInt32(&l.forced) == 0 {
				l.drainCooperatively()
			}
			atomic.StoreInt32(&l.stopped, 1)
			return
		default:
			if l.runOne() {
				atomic.StoreInt64(&l.backoffNs, 1)
			} else {
				l.adaptiveBackoffOn(stopCh)
			}
		}
	}
}

// runOne executes at most one pending task, reporting whether it did.
func (l *Loop) runOne() bool {
	task, ok := l.queue.dequeue()
	if !ok {
		return false
	}
	atomic.StoreInt32(&l.executing, 1)
	func() {
		defer atomic.StoreInt32(&l.executing, 0)
		task()
	}()
	return true
}

// drainCooperatively runs remaining queued tasks to completion once a
// cooperative Stop has been requested, so in-flight work finishes
// instead of being abandoned.
func (l *Loop) drainCooperatively() {
	for l.runOne() {
	}
}

// Stop requests the worker to exit. If force is true the worker
// returns immediately, abandoning any queued tasks. Safe to call
// again on a loop that has since been Start()ed anew.
func (l *Loop) Stop(force bool) {
	if !atomic.CompareAndSwapInt32(&l.running, 1, 0) {
		return
	}
	if force {
		atomic.StoreInt32(&l.forced, 1)
	}
	l.mu.Lock()
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()
	close(stopCh)
	<-doneCh
}

// IsIdle reports whether the queue is empty and no task is executing.
func (l *Loop) IsIdle() bool {
	return l.queue.len() == 0 && atomic.LoadInt32(&l.executing) == 0
}

func (l *Loop) adaptiveBackoffOn(stopCh chan struct{}) {
	select {
	case <-stopCh:
		return
	default:
	}
	backoff := atomic.LoadInt64(&l.backoffNs)
	if backoff < 1000 {
		time.Sleep(time.Microsecond)
	} else {
		runtime.Gosched()
	}
	next := backoff * 2
	if next > 1_000_000 {
		next = 1_000_000
	}
	atomic.StoreInt64(&l.backoffNs, next)
}
