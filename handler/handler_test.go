// File: handler/handler_test.go
package handler

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/basreactor/bas/api"
	"github.com/basreactor/bas/internal/loop"
)

// recordingWork counts callback invocations and captures the last
// read/write/close payloads for assertions.
type recordingWork struct {
	mu       sync.Mutex
	opened   int32
	closed   int32
	closeErr error
	reads    []int
	writes   []int
	cleared  int32
	onOpen   func(h api.HandlerRef)
	onRead   func(h api.HandlerRef, n int)
}

func (w *recordingWork) OnOpen(h api.HandlerRef) {
	atomic.AddInt32(&w.opened, 1)
	if w.onOpen != nil {
		w.onOpen(h)
	}
}
func (w *recordingWork) OnRead(h api.HandlerRef, n int) {
	w.mu.Lock()
	w.reads = append(w.reads, n)
	w.mu.Unlock()
	if w.onRead != nil {
		w.onRead(h, n)
	}
}
func (w *recordingWork) OnWrite(h api.HandlerRef, n int) {
	w.mu.Lock()
	w.writes = append(w.writes, n)
	w.mu.Unlock()
}
func (w *recordingWork) OnClose(h api.HandlerRef, err error) {
	atomic.AddInt32(&w.closed, 1)
	w.mu.Lock()
	w.closeErr = err
	w.mu.Unlock()
}
func (w *recordingWork) OnParent(h api.HandlerRef, ev api.Event) {}
func (w *recordingWork) OnChild(h api.HandlerRef, ev api.Event)  {}
func (w *recordingWork) OnClear(h api.HandlerRef)                { atomic.AddInt32(&w.cleared, 1) }

func newTestHandler(t *testing.T, sched *loop.Scheduler, work api.Work, sessionTimeout, ioTimeout time.Duration) (*Handler, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	ioLoop := loop.New(16)
	workLoop := loop.New(16)
	ioLoop.Start()
	workLoop.Start()
	t.Cleanup(func() {
		ioLoop.Stop(true)
		workLoop.Stop(true)
	})

	h := newHandler(make([]byte, 256), make([]byte, 256), sched, work, nil)
	h.bind(server, ioLoop, workLoop, sessionTimeout, ioTimeout)
	return h, client
}

func TestHandlerStartInvokesOnOpen(t *testing.T) {
	sched := loop.NewScheduler()
	defer sched.Close()
	work := &recordingWork{}
	h, client := newTestHandler(t, sched, work, 0, 0)
	defer client.Close()

	h.Start()
	waitFor(t, func() bool { return atomic.LoadInt32(&work.opened) == 1 })
}

func TestHandlerAsyncReadSomeDeliversOnRead(t *testing.T) {
	sched := loop.NewScheduler()
	defer sched.Close()
	work := &recordingWork{}
	h, client := newTestHandler(t, sched, work, 0, 0)
	defer client.Close()

	h.Start()
	h.AsyncReadSome()
	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	waitFor(t, func() bool {
		work.mu.Lock()
		defer work.mu.Unlock()
		return len(work.reads) == 1 && work.reads[0] == 5
	})
}

func TestHandlerAsyncWriteDeliversOnWrite(t *testing.T) {
	sched := loop.NewScheduler()
	defer sched.Close()
	work := &recordingWork{}
	h, client := newTestHandler(t, sched, work, 0, 0)
	defer client.Close()

	h.Start()
	buf := h.WriteBuffer()
	copy(buf, []byte("hi"))

	readDone := make(chan struct{})
	got := make([]byte, 2)
	go func() {
		client.Read(got)
		close(readDone)
	}()

	h.AsyncWrite(buf[:2])
	<-readDone
	if string(got) != "hi" {
		t.Fatalf("client received %q, want %q", got, "hi")
	}
	waitFor(t, func() bool {
		work.mu.Lock()
		defer work.mu.Unlock()
		return len(work.writes) == 1 && work.writes[0] == 2
	})
}

// TestHandlerReadIdlePeerDoesNotStallSiblingOnSameIOLoop covers spec
// §5's "I/O completions do nothing but post events" discipline
// directly: two handlers share one ioLoop (as they do whenever
// IOPoolSize is smaller than the connection count, spec §4.1). One
// handler's peer never writes and IOTimeout is disabled (0, the
// default everywhere in this repository), so its AsyncReadSome blocks
// forever inside conn.Read. The other handler sharing the same ioLoop
// must still have its own AsyncReadSome serviced promptly — if the
// blocking Read ever ran on the loop's own worker goroutine instead of
// its own goroutine, this second read would never complete.
func TestHandlerReadIdlePeerDoesNotStallSiblingOnSameIOLoop(t *testing.T) {
	sched := loop.NewScheduler()
	defer sched.Close()

	ioLoop := loop.New(16)
	workLoop := loop.New(16)
	ioLoop.Start()
	workLoop.Start()
	defer ioLoop.Stop(true)
	defer workLoop.Stop(true)

	idleServer, idleClient := net.Pipe()
	defer idleClient.Close()
	idleWork := &recordingWork{}
	idle := newHandler(make([]byte, 64), make([]byte, 64), sched, idleWork, nil)
	idle.bind(idleServer, ioLoop, workLoop, 0, 0)
	idle.Start()
	waitFor(t, func() bool { return atomic.LoadInt32(&idleWork.opened) == 1 })
	idle.AsyncReadSome() // never completes: idleClient never writes.

	busyServer, busyClient := net.Pipe()
	defer busyClient.Close()
	busyWork := &recordingWork{}
	busy := newHandler(make([]byte, 64), make([]byte, 64), sched, busyWork, nil)
	busy.bind(busyServer, ioLoop, workLoop, 0, 0)
	busy.Start()
	waitFor(t, func() bool { return atomic.LoadInt32(&busyWork.opened) == 1 })

	busy.AsyncReadSome()
	if _, err := busyClient.Write([]byte("hi")); err != nil {
		t.Fatalf("busyClient write: %v", err)
	}

	waitForTimeout(t, func() bool {
		busyWork.mu.Lock()
		defer busyWork.mu.Unlock()
		return len(busyWork.reads) == 1 && busyWork.reads[0] == 2
	}, 2*time.Second)
}

func TestHandlerCloseIsIdempotentAndRecycles(t *testing.T) {
	sched := loop.NewScheduler()
	defer sched.Close()
	work := &recordingWork{}

	server, client := net.Pipe()
	defer client.Close()
	ioLoop := loop.New(16)
	workLoop := loop.New(16)
	ioLoop.Start()
	workLoop.Start()
	defer ioLoop.Stop(true)
	defer workLoop.Stop(true)

	pool := &fakeRecycler{}
	h := newHandler(make([]byte, 64), make([]byte, 64), sched, work, pool)
	h.bind(server, ioLoop, workLoop, 0, 0)
	h.Start()
	waitFor(t, func() bool { return atomic.LoadInt32(&work.opened) == 1 })

	h.Close()
	h.Close() // idempotent: must not panic or double-invoke on_close.

	waitFor(t, func() bool { return atomic.LoadInt32(&work.closed) == 1 })
	waitFor(t, func() bool { return h.State() == StateClosed })
	waitFor(t, func() bool { return atomic.LoadInt32(&pool.recycled) == 1 })
}

func TestHandlerSessionTimeoutClosesWithTimedOut(t *testing.T) {
	sched := loop.NewScheduler()
	defer sched.Close()
	work := &recordingWork{}
	h, client := newTestHandler(t, sched, work, 20*time.Millisecond, 0)
	defer client.Close()

	h.Start()
	waitForTimeout(t, func() bool { return atomic.LoadInt32(&work.closed) == 1 }, 2*time.Second)

	work.mu.Lock()
	err := work.closeErr
	work.mu.Unlock()
	if !api.IsTimeout(err) {
		t.Fatalf("close err = %v, want a timeout", err)
	}
}

type fakeRecycler struct {
	recycled int32
}

func (f *fakeRecycler) recycle(h *Handler) {
	atomic.AddInt32(&f.recycled, 1)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	waitForTimeout(t, cond, time.Second)
}

func waitForTimeout(t *testing.T, cond func() bool, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before deadline")
	}
}
