// File: client/client.go
// Package client
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client is the outbound counterpart of server.Server (C6): it owns
// its own I/O pool, elastic work pool, and preallocated handler pool,
// sized independently of any server, and exposes Connect to pair an
// outbound handler with an existing inbound one for proxying. Follows
// server.Server's own orchestrator shape, and mirrors
// original_source's client_work.hpp, which drives the outbound half of
// the same paired parent/child protocol server_work.hpp drives inbound.

package client

import (
	"log"
	"net"
	"sync"

	"github.com/basreactor/bas/api"
	"github.com/basreactor/bas/control"
	"github.com/basreactor/bas/handler"
	"github.com/basreactor/bas/internal/loop"
)

// Client owns the reactor pools and handler pool backing outbound
// connections.
type Client struct {
	cfg      Config
	handlers *handler.Pool

	ioPool   *loop.Pool
	workPool *loop.ElasticPool

	logger   *log.Logger
	liveness *control.Liveness

	mu      sync.Mutex
	started bool
}

// New constructs a Client bound to cfg and handlers. Its pools are not
// started until Start is called.
func New(cfg Config, handlers *handler.Pool, opts ...Option) *Client {
	if cfg.IOPoolSize <= 0 {
		cfg.IOPoolSize = 1
	}
	c := &Client{
		cfg:      cfg,
		handlers: handlers,
		ioPool:   loop.NewPool(cfg.IOPoolSize, cfg.QueueHint),
		workPool: loop.NewElasticPool(cfg.WorkPoolInitSize, cfg.WorkPoolHighWatermark, cfg.WorkPoolThreadLoad, cfg.QueueHint),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start spins up the I/O pool and work pool in the background. Unlike
// Server.Run, Start never blocks: a client has no listener to accept
// on, only outbound connects driven by Connect calls.
func (c *Client) Start() {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	c.ioPool.Start()
	c.workPool.Start()
}

// Connect checks out an I/O loop and work loop for a new outbound
// connection to addr, then dials asynchronously: the I/O loop task only
// arms the dial, and the actual blocking net.Dialer.Dial call runs on
// its own goroutine spawned from that task, never on the loop's single
// worker — an ioLoop is shared by several handlers, and one slow or
// unreachable target must not stall every other Connect/read/write
// queued on the same loop for up to DialTimeout (spec §5, same
// discipline AsyncReadSome/AsyncWrite follow in handler.Handler).
//
// On success, the new child handler is wired to parent and started;
// its own OnOpen fires exactly as accepted handlers' does. Posting
// ChildOpen onward to the parent from there is the child work object's
// own job (mirrors original_source's client_work.hpp on_open, which
// posts child_open through the parent reference on_set_parent handed
// it) — Connect does not do it on the framework's behalf, so a work
// object that never wires up on_set_parent simply never notifies its
// parent, same as the original.
//
// On failure (the dial itself erroring), no handler is ever checked
// out — so there is nothing to recycle and no work object to delegate
// to — and Connect itself posts a ChildClose event through parent's
// OnChild, letting the application's work object decide whether to
// close the parent (spec's proxy-refusal scenario). The handler pool
// itself never fails Get: like the server's dispatch, it grows past
// its preallocated count rather than rejecting (spec §4.4, no hard
// ceiling).
func (c *Client) Connect(parent api.HandlerRef, addr string) {
	ioLoop := c.ioPool.Next()
	load := c.handlers.Load()
	workLoop := c.workPool.Next(load)
	if c.liveness != nil {
		c.liveness.SetWorkPoolSize(c.workPool.Size())
	}

	_ = ioLoop.Submit(func() {
		go c.dial(parent, ioLoop, workLoop, addr)
	})
}

// dial runs the blocking net.Dialer.Dial call on its own goroutine, off
// ioLoop's worker, then posts only the outcome back through workLoop's
// Submit (or, on success, through h.Start, which itself submits OnOpen
// to workLoop).
func (c *Client) dial(parent api.HandlerRef, ioLoop, workLoop *loop.Loop, addr string) {
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout, Control: controlNoDelay}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		c.logger.Printf("bas: client dial %s failed: %v", addr, err)
		_ = workLoop.Submit(func() {
			parent.PostChild(api.Event{Kind: api.ChildClose})
		})
		return
	}

	h := c.handlers.Get(conn, ioLoop, workLoop)
	h.SetParent(parent)
	parent.SetChild(h)
	if c.liveness != nil {
		c.liveness.RecordOpen()
	}
	h.Start()
}

// Stop requests graceful shutdown: both pools are repeatedly restarted
// and stopped cooperatively until idle, draining in-flight completions
// (mirrors Server.Stop).
func (c *Client) Stop() {
	c.shutdown(false)
}

// StopForce stops both pools with force=true; outstanding completions
// may be abandoned.
func (c *Client) StopForce() {
	c.shutdown(true)
}

func (c *Client) shutdown(force bool) {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return
	}
	if force {
		c.ioPool.Stop(true)
		c.workPool.Stop(true)
		return
	}
	loop.DrainUntilIdle(c.ioPool, c.workPool)
}
