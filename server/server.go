// File: server/server.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server is the acceptor orchestrator (C5): it owns the acceptor pool,
// the I/O pool, and the elastic work pool, binds listening sockets,
// drives accept-and-dispatch, and performs graceful or forceful
// shutdown (spec §4.5). Follows a Config/mutex-guarded started-flag/
// Start-Stop-Shutdown facade shape, and mirrors
// original_source/bas/server.hpp's accept-then-arm loop and
// repeated-restart-until-idle graceful stop.

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/basreactor/bas/control"
	"github.com/basreactor/bas/handler"
	"github.com/basreactor/bas/internal/loop"
)

// Server owns the three reactor pools and the shared handler pool for
// one listening endpoint.
type Server struct {
	cfg      Config
	handlers *handler.Pool

	acceptorPool *loop.Pool
	ioPool       *loop.Pool
	workPool     *loop.ElasticPool

	logger   *log.Logger
	liveness *control.Liveness

	mu        sync.Mutex
	listeners []net.Listener
	started   bool
	stopping  bool
}

// New constructs a Server bound to cfg and handlers. It does not bind
// any socket until Run is called.
func New(cfg Config, handlers *handler.Pool, opts ...Option) *Server {
	if cfg.IOPoolSize <= 0 {
		cfg.IOPoolSize = 1
	}
	s := &Server{
		cfg:          cfg,
		handlers:     handlers,
		acceptorPool: loop.NewPool(cfg.IOPoolSize, cfg.QueueHint),
		ioPool:       loop.NewPool(cfg.IOPoolSize, cfg.QueueHint),
		workPool:     loop.NewElasticPool(cfg.WorkPoolInitSize, cfg.WorkPoolHighWatermark, cfg.WorkPoolThreadLoad, cfg.QueueHint),
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the address of the first bound listener, valid only
// after a successful Run has started listening (e.g. to read back a
// kernel-assigned port when Config.Addr ends in ":0").
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// Run opens and listens on every acceptor, starts the work pool and
// I/O pool non-blocking, then runs the acceptor pool on the calling
// goroutine. It blocks until Stop or StopForce is called.
func (s *Server) Run() error {
	lc := net.ListenConfig{Control: controlReusePort}
	s.mu.Lock()
	for i := 0; i < s.cfg.IOPoolSize; i++ {
		ln, err := lc.Listen(context.Background(), "tcp", s.cfg.Addr)
		if err != nil {
			for _, prev := range s.listeners {
				prev.Close()
			}
			s.listeners = nil
			s.mu.Unlock()
			return fmt.Errorf("bas: listen %s: %w", s.cfg.Addr, err)
		}
		s.listeners = append(s.listeners, ln)
	}
	listeners := s.listeners
	s.started = true
	s.mu.Unlock()

	s.ioPool.Start()
	s.workPool.Start()

	if len(listeners) == 0 {
		return nil
	}
	// One acceptor loop per listener (spec: "acceptors are partitioned
	// one-per-loop and are not shared"). The pool is freshly
	// constructed with exactly len(listeners) loops and no prior Next()
	// calls, so this walks them in index order.
	for _, ln := range listeners {
		s.submitAcceptLoop(ln, s.acceptorPool.Next())
	}
	// Acceptors 2..N run on their own background goroutine; the first
	// runs on the calling goroutine, so Run blocks here until shutdown.
	s.acceptorPool.RunFirstBlocking()
	return nil
}

// submitAcceptLoop enqueues the accept-forever task onto acceptorLoop's
// queue, so the accept call itself participates in that loop's task
// queue discipline instead of racing the loop's own control flow. A
// transient accept error (e.g. a per-process file-descriptor limit)
// backs off and retries rather than tearing the acceptor down,
// mirroring the original library's handle_accept, which re-arms
// immediately instead of giving up on the listener; only a permanent
// error (the listener itself closing during shutdown) ends the loop.
func (s *Server) submitAcceptLoop(ln net.Listener, acceptorLoop *loop.Loop) {
	_ = acceptorLoop.Submit(func() {
		var backoff time.Duration
		for {
			conn, err := ln.Accept()
			if err != nil {
				if isTransientAcceptErr(err) {
					backoff = nextAcceptBackoff(backoff)
					s.logger.Printf("bas: accept on %s: %v; retrying in %v", ln.Addr(), err, backoff)
					time.Sleep(backoff)
					continue
				}
				return
			}
			backoff = 0
			s.dispatch(conn)
		}
	})
}

// isTransientAcceptErr reports whether err represents per-process
// resource exhaustion (too many open files) rather than the listener
// itself having been closed, so the caller can retry instead of
// exiting the acceptor.
func isTransientAcceptErr(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}

// nextAcceptBackoff doubles from a 5ms floor up to a 1s ceiling,
// matching the accept-retry backoff net/http.Server.Serve uses for the
// same class of transient accept errors.
func nextAcceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	next := prev * 2
	if next > time.Second {
		next = time.Second
	}
	return next
}

func (s *Server) dispatch(conn net.Conn) {
	if s.cfg.TLSConfig != nil {
		conn = tls.Server(conn, s.cfg.TLSConfig)
	}
	load := s.handlers.Load()
	ioLoop := s.ioPool.Next()
	workLoop := s.workPool.Next(load)
	if s.liveness != nil {
		s.liveness.SetWorkPoolSize(s.workPool.Size())
	}
	h := s.handlers.Get(conn, ioLoop, workLoop)
	if s.liveness != nil {
		s.liveness.RecordOpen()
	}
	h.Start()
}

// Stop requests graceful shutdown: the listeners are closed from the
// calling goroutine (not on the acceptor loops), which ends each
// acceptor's pending Accept, the acceptor pool exits, then the I/O and
// work pools are repeatedly
// restarted and stopped cooperatively until both report idle. This
// drains callbacks that were in flight when the first stop was
// issued (each may post a successor task into the other pool).
func (s *Server) Stop() {
	s.shutdown(false)
}

// StopForce stops both pools with force=true; outstanding completions
// may be abandoned.
func (s *Server) StopForce() {
	s.shutdown(true)
}

func (s *Server) shutdown(force bool) {
	s.mu.Lock()
	if s.stopping || !s.started {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	listeners := s.listeners
	s.mu.Unlock()

	for _, ln := range listeners {
		ln.Close()
	}
	s.acceptorPool.Stop(force)

	if force {
		s.ioPool.Stop(true)
		s.workPool.Stop(true)
		return
	}

	s.drainUntilIdle()
}

// drainUntilIdle implements the "repeatedly restart-and-stop until
// idle" graceful drain: each cooperative stop may surface a successor
// task posted into the other pool, so this restarts both pools and
// stops them again until a full round leaves both idle.
func (s *Server) drainUntilIdle() {
	loop.DrainUntilIdle(s.ioPool, s.workPool)
}
