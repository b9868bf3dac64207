// File: server/config.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Config and functional options, following a Config/DefaultConfig pair
// plus a ServerOption functional-options pattern.

package server

import (
	"crypto/tls"
	"log"

	"github.com/basreactor/bas/control"
	"github.com/basreactor/bas/handler"
)

// Config carries the acceptor orchestrator's construction parameters
// (spec §4.5, §6).
type Config struct {
	// Addr is the listening address, e.g. ":8080".
	Addr string
	// IOPoolSize is the number of acceptors and the number of I/O
	// loops (io_n ≥ 1); each acceptor runs on its own acceptor-pool
	// loop, and I/O loops are assigned round-robin per connection.
	IOPoolSize int
	// WorkPoolInitSize is the elastic work pool's initial size (w0 ≥ 1).
	WorkPoolInitSize int
	// WorkPoolHighWatermark is the work pool's growth ceiling (wmax ≥ w0).
	WorkPoolHighWatermark int
	// WorkPoolThreadLoad is the target handlers-per-work-thread (L > 0).
	WorkPoolThreadLoad int
	// QueueHint sizes each loop's initial task queue capacity.
	QueueHint int
	// TLSConfig, if non-nil, wraps every accepted connection with
	// tls.Server before it is bound to a handler. The handshake itself
	// is not reimplemented; this is a pass-through hook (spec §1, §6).
	TLSConfig *tls.Config
}

// DefaultConfig returns baseline construction parameters.
func DefaultConfig() Config {
	return Config{
		Addr:                  ":0",
		IOPoolSize:            4,
		WorkPoolInitSize:      2,
		WorkPoolHighWatermark: 16,
		WorkPoolThreadLoad:    64,
		QueueHint:             256,
	}
}

// Option customizes a Server beyond its Config.
type Option func(*Server)

// WithLogger overrides the default logger (log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithLiveness attaches a liveness counter set the server updates as
// handlers open and close and as the work pool grows. It also installs
// a close hook on the server's handler pool so RecordClose fires for
// every handler, not just the ones the server happens to observe
// directly in dispatch.
func WithLiveness(l *control.Liveness) Option {
	return func(s *Server) {
		s.liveness = l
		s.handlers.SetCloseHook(func(h *handler.Handler, err error) {
			l.RecordClose(err)
		})
	}
}
