// File: client/socket_other.go
// Package client
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !linux

package client

import "syscall"

// controlNoDelay is a no-op outside Linux, matching
// server/socket_other.go's rationale: this repository only wires the
// golang.org/x/sys/unix path for linux.
func controlNoDelay(network, address string, c syscall.RawConn) error {
	return nil
}
