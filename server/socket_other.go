// File: server/socket_other.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !linux

package server

import "syscall"

// controlReusePort is a no-op outside Linux: SO_REUSEPORT semantics
// differ enough across BSD/Darwin/Windows that this repository only
// wires the golang.org/x/sys/unix path for linux. No socket option is
// set here, so SO_REUSEPORT is not enabled and several acceptors on
// one fixed port are not load-balanced by the kernel on these
// platforms.
func controlReusePort(network, address string, c syscall.RawConn) error {
	return nil
}
