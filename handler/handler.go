// File: handler/handler.go
// Package handler
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handler is the per-connection service handler (spec §3, §4.3):
// socket, two fixed-size buffers, timers, owning work object,
// references to its I/O loop and work loop, parent/child pointers,
// and a close latch. Socket operations (AsyncReadSome, AsyncWrite,
// the underlying net.Conn.Close) are armed through the I/O loop. The
// blocking Read or Write each read/write makes runs on its own
// goroutine, never on the loop's single worker (net.Conn.Close itself
// runs as the loop task) — an ioLoop is shared by several
// handlers, and the worker goroutine must stay free to arm the next
// one instead of parking inside an undeadlined Read (spec §5: I/O
// completions only post events, they never block the loop that queued
// them). Work callbacks (OnOpen/OnRead/OnWrite/OnClose/OnParent/
// OnChild) run exclusively on the work loop, serialized per handler
// because a single-threaded loop only ever runs one submitted task at
// a time.
//
// Follows a service_handler-shaped lifecycle (state machine +
// recyclable buffers), completed here against the paired-handler
// protocol from original_source's client_work.hpp and server_work.hpp.

package handler

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basreactor/bas/api"
	"github.com/basreactor/bas/internal/loop"
)

// State is the handler's lifecycle stage (spec §3).
type State int32

const (
	StateIdle State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// recycler is implemented by Pool; a Handler returns itself to its
// owning pool once fully closed.
type recycler interface {
	recycle(h *Handler)
}

// Handler is a preallocated, recyclable per-connection state object.
// Handlers are never constructed directly by applications; obtain one
// from a Pool.
type Handler struct {
	readBuf  []byte
	writeBuf []byte

	conn net.Conn

	ioLoop   *loop.Loop
	workLoop *loop.Loop

	work      api.Work
	scheduler *loop.Scheduler

	sessionTimeout time.Duration
	ioTimeout      time.Duration
	sessionTimer   api.Cancelable

	mu     sync.Mutex
	parent api.HandlerRef
	child  api.HandlerRef

	state        int32 // atomic State
	closeOnce    sync.Once
	lastCloseErr error

	owner recycler
}

var _ api.HandlerRef = (*Handler)(nil)

// newHandler constructs an idle handler over caller-supplied fixed-size
// buffers (drawn from the pool's byte-buffer arenas). Only called by
// Pool during preallocation.
func newHandler(readBuf, writeBuf []byte, sched *loop.Scheduler, work api.Work, owner recycler) *Handler {
	return &Handler{
		readBuf:   readBuf,
		writeBuf:  writeBuf,
		scheduler: sched,
		work:      work,
		owner:     owner,
		state:     int32(StateIdle),
	}
}

// bind attaches a live socket and loop pair to an idle handler,
// transitioning it toward open. Called by Pool.Get.
func (h *Handler) bind(conn net.Conn, ioLoop, workLoop *loop.Loop, sessionTimeout, ioTimeout time.Duration) {
	h.conn = conn
	h.ioLoop = ioLoop
	h.workLoop = workLoop
	h.sessionTimeout = sessionTimeout
	h.ioTimeout = ioTimeout
	h.closeOnce = sync.Once{}
	atomic.StoreInt32(&h.state, int32(StateOpen))
}

// State reports the handler's current lifecycle stage.
func (h *Handler) State() State { return State(atomic.LoadInt32(&h.state)) }

func (h *Handler) isOpen() bool { return h.State() == StateOpen }

// Conn exposes the underlying connection, e.g. so a server can inspect
// RemoteAddr for logging.
func (h *Handler) Conn() net.Conn { return h.conn }

// ReadBuffer returns the handler's fixed-size read buffer.
func (h *Handler) ReadBuffer() []byte { return h.readBuf }

// WriteBuffer returns the handler's fixed-size write buffer.
func (h *Handler) WriteBuffer() []byte { return h.writeBuf }

// SetParent records h's parent reference and, if the work object opts
// in, notifies it (mirrors the original library's on_set_parent hook).
func (h *Handler) SetParent(parent api.HandlerRef) {
	h.mu.Lock()
	h.parent = parent
	h.mu.Unlock()
	if setter, ok := h.work.(api.OptionalParentSetter); ok {
		setter.OnSetParent(h, parent)
	}
}

// SetChild records h's child reference and, if the work object opts
// in, notifies it (mirrors the original library's on_set_child hook).
func (h *Handler) SetChild(child api.HandlerRef) {
	h.mu.Lock()
	h.child = child
	h.mu.Unlock()
	if setter, ok := h.work.(api.OptionalChildSetter); ok {
		setter.OnSetChild(h, child)
	}
}

// Parent returns h's current parent reference, or nil.
func (h *Handler) Parent() api.HandlerRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.parent
}

// Child returns h's current child reference, or nil.
func (h *Handler) Child() api.HandlerRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.child
}

// Start is called by the server (or client) immediately after accept
// or connect: it arms the session timer if configured, then posts
// on_open to the work loop.
func (h *Handler) Start() {
	if h.sessionTimeout > 0 {
		h.sessionTimer = h.scheduler.Schedule(int64(h.sessionTimeout), func() {
			h.CloseErr(api.TimedOutSentinel)
		})
	}
	h.workLoop.Submit(func() {
		if h.isOpen() {
			h.work.OnOpen(h)
		}
	})
}

// AsyncReadSome arms a single-shot read through the I/O loop. The
// blocking conn.Read call itself never runs on the loop's own worker
// goroutine — the loop task only spawns it, and the spawned goroutine's
// sole job afterward is to post its outcome back via Submit — because
// an ioLoop is shared by several handlers (spec §4.1) and a read with
// no IOTimeout on one read-idle connection must never stall every
// other handler queued on the same loop (spec §5). On success, OnRead
// is dispatched to the work loop; on failure the handler enters its
// close path and OnRead is never called for this attempt.
func (h *Handler) AsyncReadSome() {
	if !h.isOpen() {
		return
	}
	_ = h.ioLoop.Submit(func() {
		if !h.isOpen() {
			return
		}
		go h.readOnce()
	})
}

func (h *Handler) readOnce() {
	if h.ioTimeout > 0 {
		_ = h.conn.SetReadDeadline(time.Now().Add(h.ioTimeout))
	}
	n, err := h.conn.Read(h.readBuf)
	if n > 0 {
		_ = h.workLoop.Submit(func() {
			if h.isOpen() {
				h.work.OnRead(h, n)
			}
		})
	}
	if err != nil {
		h.CloseErr(err)
	}
}

// AsyncWrite arms a write of p through the I/O loop, off the loop's own
// worker goroutine for the same reason AsyncReadSome is (spec §5). p
// must be backed by, or copied from, the handler's own read/write
// buffers, per spec invariant that buffers stay under the owning
// handler's exclusive control.
func (h *Handler) AsyncWrite(p []byte) {
	if !h.isOpen() {
		return
	}
	_ = h.ioLoop.Submit(func() {
		if !h.isOpen() {
			return
		}
		go h.writeOnce(p)
	})
}

func (h *Handler) writeOnce(p []byte) {
	if h.ioTimeout > 0 {
		_ = h.conn.SetWriteDeadline(time.Now().Add(h.ioTimeout))
	}
	n, err := h.conn.Write(p)
	if err != nil {
		h.CloseErr(err)
		return
	}
	_ = h.workLoop.Submit(func() {
		if h.isOpen() {
			h.work.OnWrite(h, n)
		}
	})
}

// PostParent enqueues ev for delivery through h's own OnParent.
func (h *Handler) PostParent(ev api.Event) {
	h.workLoop.Submit(func() {
		if h.isOpen() {
			h.work.OnParent(h, ev)
		}
	})
}

// PostChild enqueues ev for delivery through h's own OnChild.
func (h *Handler) PostChild(ev api.Event) {
	h.workLoop.Submit(func() {
		if h.isOpen() {
			h.work.OnChild(h, ev)
		}
	})
}

// Close initiates idempotent shutdown with no reported error.
func (h *Handler) Close() { h.CloseErr(nil) }

// CloseErr initiates idempotent shutdown, reporting err to OnClose.
// Safe to call from any goroutine, any number of times, and from
// either the I/O loop or the work loop.
func (h *Handler) CloseErr(err error) {
	h.closeOnce.Do(func() {
		atomic.StoreInt32(&h.state, int32(StateClosing))
		if h.sessionTimer != nil {
			h.scheduler.Cancel(h.sessionTimer)
			h.sessionTimer = nil
		}
		conn := h.conn
		_ = h.ioLoop.Submit(func() {
			_ = conn.Close()
		})
		h.workLoop.Submit(func() {
			h.work.OnClose(h, err)
			h.finish(err)
		})
	})
}

// finish transitions closing -> closed and recycles the handler.
// Called on the work loop, after on_close has returned, satisfying
// the closing -> closed transition condition in spec §3.
func (h *Handler) finish(closeErr error) {
	h.lastCloseErr = closeErr
	h.mu.Lock()
	h.parent = nil
	h.child = nil
	h.mu.Unlock()
	atomic.StoreInt32(&h.state, int32(StateClosed))
	if h.owner != nil {
		h.owner.recycle(h)
	}
}
