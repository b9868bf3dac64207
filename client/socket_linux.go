// File: client/socket_linux.go
// Package client
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Outbound socket tuning: every dial disables Nagle's algorithm so a
// proxied handler's small parent_write/child_write forwards go out
// promptly instead of coalescing behind the kernel's default ACK
// delay. Uses golang.org/x/sys/unix for the socket-level tuning, the
// same dependency server/socket_linux.go wires in for
// SO_REUSEADDR/SO_REUSEPORT.

//go:build linux

package client

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func controlNoDelay(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
