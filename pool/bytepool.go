// File: pool/bytepool.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-size byte-buffer arena for handler read/write buffers, using a
// plain Get/Put shape with no NUMA-domain awareness (see DESIGN.md): a
// handler's buffers are never resized over its lifetime and never
// migrate between NUMA domains in this design, so the extra
// indirection would buy nothing here.

package pool

import (
	"sync"

	"github.com/basreactor/bas/api"
)

var _ api.BytePool = (*BytePool)(nil)

// BytePool hands out buffers of a single fixed size and recycles them
// through a sync.Pool. Release ignores a buffer whose capacity doesn't
// match the pool's size, since a mismatched buffer indicates a caller
// bug (spec invariant: buffers are never resized over their lifetime).
type BytePool struct {
	size int
	pool sync.Pool
}

// NewBytePool constructs a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		panic("pool: NewBytePool size must be positive")
	}
	bp := &BytePool{size: size}
	bp.pool.New = func() any {
		return make([]byte, bp.size)
	}
	return bp
}

// Acquire returns a buffer of exactly the pool's configured size, with
// logical length reset but backing storage possibly reused from a
// prior session.
func (b *BytePool) Acquire(size int) []byte {
	if size != b.size {
		return make([]byte, size)
	}
	buf := b.pool.Get().([]byte)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Release returns buf to the pool for reuse.
func (b *BytePool) Release(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	b.pool.Put(buf[:b.size])
}
