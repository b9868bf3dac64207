// File: handler/pool.go
// Package handler
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool preallocates a fixed number of Handlers plus one Work object
// per handler (via the configured WorkAllocator), and recycles both
// across sessions (spec §4.4). The free list is a pool.RingPool, which
// overflows past its preallocated count under load rather than
// enforcing a hard ceiling, matching spec §4.4's own growth rule; read
// and write buffers are drawn from a pair of pool.BytePool arenas
// sized to Config.ReadBufferSize/WriteBufferSize and returned to those
// arenas only when the whole Pool closes, since a handler's own
// buffers live for its entire checked-out-or-idle lifetime (spec
// invariant 5).

package handler

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basreactor/bas/api"
	"github.com/basreactor/bas/internal/loop"
	"github.com/basreactor/bas/pool"
)

// Config controls handler preallocation.
type Config struct {
	Count          int
	ReadBufferSize int
	// WriteBufferSize, if zero, defaults to ReadBufferSize (spec §6).
	WriteBufferSize int
	SessionTimeout  time.Duration
	IOTimeout       time.Duration
	Allocator       api.WorkAllocator
	Scheduler       *loop.Scheduler
}

// Pool is the preallocated, recyclable handler pool (C4).
type Pool struct {
	cfg Config

	ring *pool.RingPool[*Handler]

	readArena  *pool.BytePool
	writeArena *pool.BytePool

	mu  sync.Mutex
	all []*Handler

	closeHook func(h *Handler, err error)
}

// SetCloseHook registers fn to run after a handler finishes closing but
// before it is returned to the free list, so callers can observe every
// close (e.g. forward it to a liveness counter) without participating
// in the recycle path itself.
func (p *Pool) SetCloseHook(fn func(h *Handler, err error)) {
	p.mu.Lock()
	p.closeHook = fn
	p.mu.Unlock()
}

// NewPool preallocates cfg.Count handlers with fixed buffer sizes,
// constructing one work object per handler via cfg.Allocator. Beyond
// this preallocated count, Get grows the pool on demand (spec §4.4:
// "if the pool is empty it allocates one beyond the preallocated set,
// up to no hard ceiling"), so every handler this Pool ever hands out —
// preallocated or overflow — is tracked in p.all under p.mu, not just
// the ones built during NewPool.
func NewPool(cfg Config) *Pool {
	if cfg.Count <= 0 {
		panic("handler: Pool Count must be positive")
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = cfg.ReadBufferSize
	}
	p := &Pool{
		cfg:        cfg,
		readArena:  pool.NewBytePool(cfg.ReadBufferSize),
		writeArena: pool.NewBytePool(cfg.WriteBufferSize),
		all:        make([]*Handler, 0, cfg.Count),
	}
	p.ring = pool.NewRingPool(cfg.Count, p.newHandler)
	return p
}

// newHandler constructs one handler plus its work object and buffers,
// recording it in p.all so Close reaches it regardless of whether it
// was built during preallocation or as overflow under load.
func (p *Pool) newHandler() *Handler {
	readBuf := p.readArena.Acquire(p.cfg.ReadBufferSize)
	writeBuf := p.writeArena.Acquire(p.cfg.WriteBufferSize)
	work := p.cfg.Allocator.New()
	h := newHandler(readBuf, writeBuf, p.cfg.Scheduler, work, p)
	p.mu.Lock()
	p.all = append(p.all, h)
	p.mu.Unlock()
	return h
}

// Get checks out an idle handler and binds it to a live connection and
// its I/O/work loop pair, growing the pool beyond its preallocated
// count if none are idle (spec §4.4: no hard ceiling on handler
// count — callers throttle indirectly through the elastic work pool).
func (p *Pool) Get(conn net.Conn, ioLoop, workLoop *loop.Loop) *Handler {
	h := p.ring.Get()
	h.bind(conn, ioLoop, workLoop, p.cfg.SessionTimeout, p.cfg.IOTimeout)
	return h
}

// Load reports the number of handlers currently checked out.
func (p *Pool) Load() int { return p.ring.InUse() }

// Cap reports the pool's fixed preallocated capacity.
func (p *Pool) Cap() int { return p.ring.Cap() }

// recycle implements the recycler interface Handler calls once it has
// fully transitioned to closed. It is the sole path back to idle.
func (p *Pool) recycle(h *Handler) {
	p.mu.Lock()
	hook := p.closeHook
	p.mu.Unlock()
	if hook != nil {
		hook(h, h.lastCloseErr)
	}

	h.work.OnClear(h)
	h.conn = nil
	h.ioLoop = nil
	h.workLoop = nil
	h.lastCloseErr = nil
	atomic.StoreInt32(&h.state, int32(StateIdle))

	p.ring.Put(h)
}

// Close frees every work object via the allocator and returns every
// handler's read/write buffers to their byte-buffer arenas. Callers
// must ensure no handler is checked out (state == idle for all) before
// calling.
func (p *Pool) Close() {
	p.mu.Lock()
	all := p.all
	p.mu.Unlock()
	for _, h := range all {
		p.cfg.Allocator.Free(h.work)
		p.readArena.Release(h.readBuf)
		p.writeArena.Release(h.writeBuf)
	}
}
