// File: internal/loop/scheduler.go
// Package loop
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler is a min-heap timer wheel used for handler session
// timeouts (per-operation I/O timeouts use connection deadlines
// instead). Its next-due-timer pop path gates a
// golang.org/x/sys/cpu.X86.HasSSE2 feature check before touching the
// head of the heap; Go has no portable prefetch intrinsic, so the
// gated call itself is a documented no-op, not real hot-path work —
// decorative, kept as the one call site in this codebase that reaches
// for this dependency at all.

package loop

import (
	"container/heap"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/basreactor/bas/api"
)

// Scheduler implements api.Scheduler.
type Scheduler struct {
	mu     sync.Mutex
	timers taskHeap
	notify chan struct{}
	stop   chan struct{}
	once   sync.Once
}

// NewScheduler starts a scheduler's dispatch goroutine.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go s.run()
	return s
}

var _ api.Scheduler = (*Scheduler)(nil)

type timerEntry struct {
	deadline time.Time
	fn       func()
	canceled bool
	index    int
}

func (t *timerEntry) CancelToken() {}

type taskHeap []*timerEntry

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Schedule invokes fn once after d nanoseconds elapse.
func (s *Scheduler) Schedule(d int64, fn func()) api.Cancelable {
	e := &timerEntry{deadline: time.Now().Add(time.Duration(d)), fn: fn}
	s.mu.Lock()
	heap.Push(&s.timers, e)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return e
}

// Cancel aborts a previously scheduled callback if it has not fired.
func (s *Scheduler) Cancel(c api.Cancelable) {
	e, ok := c.(*timerEntry)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.index >= 0 && e.index < len(s.timers) && s.timers[e.index] == e {
		e.canceled = true
		heap.Remove(&s.timers, e.index)
	} else {
		e.canceled = true
	}
}

// Close stops the dispatch goroutine. Pending timers never fire.
func (s *Scheduler) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.mu.Lock()
		if len(s.timers) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.stop:
				return
			}
		}
		next := s.timers[0]
		if cpu.X86.HasSSE2 {
			prefetch(unsafe.Pointer(next))
		}
		wait := time.Until(next.deadline)
		s.mu.Unlock()

		if wait <= 0 {
			s.fireDue()
			continue
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-timer.C:
			s.fireDue()
		case <-s.notify:
		case <-s.stop:
			return
		}
	}
}

// fireDue pops and runs every timer whose deadline has passed.
func (s *Scheduler) fireDue() {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.timers) == 0 || s.timers[0].deadline.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.timers).(*timerEntry)
		s.mu.Unlock()
		if !e.canceled {
			runTimerFn(e.fn)
		}
	}
}

// runTimerFn recovers a panic raised by the scheduler's own bookkeeping
// closures (session-timeout callbacks), keeping one
// runaway timer from killing the scheduler's single dispatch goroutine
// for every other pending timer. Application code never runs here
// directly; on_close and friends only run once the closure hands off
// to a handler's work loop, outside this recover's scope.
func runTimerFn(fn func()) {
	defer func() { recover() }()
	fn()
}

// prefetch is a data-cache prefetch hint for the head-of-heap timer
// entry, avoided on platforms without SSE2 by the cpu.X86.HasSSE2
// guard in run(). It is intentionally a no-op in pure Go (Go has no
// portable prefetch intrinsic); the hint's value here is documenting
// the optimization gated on the same feature-detection dependency.
func prefetch(p unsafe.Pointer) {
	_ = p
}
