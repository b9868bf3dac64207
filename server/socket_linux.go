// File: server/socket_linux.go
// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared-listener socket options for the acceptor pool: every acceptor
// binds the same address with SO_REUSEADDR and SO_REUSEPORT so the
// kernel load-balances incoming connections among them, instead of one
// acceptor owning the listen queue alone. Uses golang.org/x/sys/unix
// for the socket-level tuning net.ListenConfig.Control exposes no
// portable equivalent for.

//go:build linux

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func controlReusePort(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
