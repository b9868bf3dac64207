// File: handler/pool_test.go
package handler

import (
	"net"
	"testing"

	"github.com/basreactor/bas/api"
	"github.com/basreactor/bas/internal/loop"
)

type noopWork struct{}

func (noopWork) OnOpen(h api.HandlerRef)                 {}
func (noopWork) OnRead(h api.HandlerRef, n int)          {}
func (noopWork) OnWrite(h api.HandlerRef, n int)         {}
func (noopWork) OnClose(h api.HandlerRef, err error)     {}
func (noopWork) OnParent(h api.HandlerRef, ev api.Event) {}
func (noopWork) OnChild(h api.HandlerRef, ev api.Event)  {}
func (noopWork) OnClear(h api.HandlerRef)                {}

type noopAllocator struct{ freed int }

func (a *noopAllocator) New() api.Work { return noopWork{} }
func (a *noopAllocator) Free(api.Work) { a.freed++ }

func newTestPool(t *testing.T, count int) (*Pool, *noopAllocator) {
	t.Helper()
	sched := loop.NewScheduler()
	t.Cleanup(sched.Close)
	alloc := &noopAllocator{}
	p := NewPool(Config{
		Count:          count,
		ReadBufferSize: 64,
		Allocator:      alloc,
		Scheduler:      sched,
	})
	return p, alloc
}

func pipeConnPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return server, client
}

func newBoundLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New(16)
	l.Start()
	t.Cleanup(func() { l.Stop(true) })
	return l
}

// TestPoolGetOverflowsPastPreallocatedCount exercises spec §4.4's "no
// hard ceiling" rule directly: checking out more handlers than Count
// preallocated must succeed by allocating fresh ones rather than
// blocking or returning nil.
func TestPoolGetOverflowsPastPreallocatedCount(t *testing.T) {
	p, _ := newTestPool(t, 2)
	ioLoop := newBoundLoop(t)
	workLoop := newBoundLoop(t)

	var checked []*Handler
	for i := 0; i < 5; i++ {
		conn, _ := pipeConnPair(t)
		h := p.Get(conn, ioLoop, workLoop)
		if h == nil {
			t.Fatalf("Get #%d returned nil, want overflow allocation", i)
		}
		checked = append(checked, h)
	}

	if got, want := p.Load(), 5; got != want {
		t.Fatalf("Load() = %d, want %d", got, want)
	}
	if got, want := p.Cap(), 2; got != want {
		t.Fatalf("Cap() = %d, want %d (preallocated count is unaffected by overflow)", got, want)
	}

	for _, h := range checked {
		p.recycle(h)
	}
}

// TestPoolCloseReleasesOverflowAllocatedHandlers verifies Close reaches
// every handler this Pool ever constructed, including ones built as
// overflow beyond the preallocated count, not just the initial batch.
func TestPoolCloseReleasesOverflowAllocatedHandlers(t *testing.T) {
	p, alloc := newTestPool(t, 1)
	ioLoop := newBoundLoop(t)
	workLoop := newBoundLoop(t)

	conn1, _ := pipeConnPair(t)
	conn2, _ := pipeConnPair(t)
	h1 := p.Get(conn1, ioLoop, workLoop)
	h2 := p.Get(conn2, ioLoop, workLoop)
	if h1 == nil || h2 == nil {
		t.Fatal("Get returned nil")
	}

	p.Close()

	if alloc.freed != 2 {
		t.Fatalf("Allocator.Free called %d times, want 2 (one preallocated, one overflow)", alloc.freed)
	}
}
