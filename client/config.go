// File: client/config.go
// Package client
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Config and functional options, mirrored from server/config.go's
// shape since the client is the outbound counterpart of the server and
// shares the same construction idiom.

package client

import (
	"log"
	"time"

	"github.com/basreactor/bas/control"
	"github.com/basreactor/bas/handler"
)

// Config carries the client orchestrator's construction parameters
// (spec §4.6, §6).
type Config struct {
	// IOPoolSize is the number of I/O loops outbound connects and
	// socket ops are distributed across.
	IOPoolSize int
	// WorkPoolInitSize is the elastic work pool's initial size (w0 ≥ 1).
	WorkPoolInitSize int
	// WorkPoolHighWatermark is the work pool's growth ceiling (wmax ≥ w0).
	WorkPoolHighWatermark int
	// WorkPoolThreadLoad is the target handlers-per-work-thread (L > 0).
	WorkPoolThreadLoad int
	// QueueHint sizes each loop's initial task queue capacity.
	QueueHint int
	// DialTimeout bounds each outbound connect attempt. Zero means no
	// timeout beyond the OS default.
	DialTimeout time.Duration
}

// DefaultConfig returns baseline construction parameters.
func DefaultConfig() Config {
	return Config{
		IOPoolSize:            2,
		WorkPoolInitSize:      1,
		WorkPoolHighWatermark: 8,
		WorkPoolThreadLoad:    64,
		QueueHint:             256,
		DialTimeout:           10 * time.Second,
	}
}

// Option customizes a Client beyond its Config.
type Option func(*Client)

// WithLogger overrides the default logger (log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithLiveness attaches a liveness counter set the client updates as
// outbound handlers open and close and as its work pool grows.
func WithLiveness(l *control.Liveness) Option {
	return func(c *Client) {
		c.liveness = l
		c.handlers.SetCloseHook(func(_ *handler.Handler, err error) {
			l.RecordClose(err)
		})
	}
}
