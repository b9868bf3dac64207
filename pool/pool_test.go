// File: pool/pool_test.go
package pool

import "testing"

func TestBytePoolAcquireReleaseSize(t *testing.T) {
	bp := NewBytePool(64)
	buf := bp.Acquire(64)
	if len(buf) != 64 {
		t.Fatalf("len = %d, want 64", len(buf))
	}
	buf[0] = 0xFF
	bp.Release(buf)

	buf2 := bp.Acquire(64)
	if buf2[0] != 0 {
		t.Fatal("Acquire returned a buffer with stale logical content")
	}
}

func TestBytePoolMismatchedSizeBypassesPool(t *testing.T) {
	bp := NewBytePool(32)
	buf := bp.Acquire(16)
	if len(buf) != 16 {
		t.Fatalf("len = %d, want 16", len(buf))
	}
}

func TestRingPoolPreallocatesExactCount(t *testing.T) {
	const n = 5
	p := NewRingPool(n, func() int { return 0 })
	if p.Cap() != n {
		t.Fatalf("Cap() = %d, want %d", p.Cap(), n)
	}
	if p.InUse() != 0 {
		t.Fatalf("InUse() = %d, want 0", p.InUse())
	}
}

func TestRingPoolGetPutTracksInUse(t *testing.T) {
	p := NewRingPool(2, func() int { return 7 })
	a := p.Get()
	b := p.Get()
	if p.InUse() != 2 {
		t.Fatalf("InUse() = %d, want 2", p.InUse())
	}
	p.Put(a)
	if p.InUse() != 1 {
		t.Fatalf("InUse() = %d, want 1", p.InUse())
	}
	p.Put(b)
	if p.InUse() != 0 {
		t.Fatalf("InUse() = %d, want 0", p.InUse())
	}
}

func TestRingPoolOverflowsPastCapacity(t *testing.T) {
	p := NewRingPool(1, func() int { return 1 })
	_ = p.Get()
	extra := p.Get() // free list exhausted, must fall back to create().
	if extra != 1 {
		t.Fatalf("overflow object = %d, want 1", extra)
	}
}

// TestRingPoolCapIsStableAcrossOverflow guards against deriving Cap
// from the free-list's slice capacity: once an overflow object is
// returned via Put, append can grow that backing array well past the
// original preallocated count, and Cap must not drift with it.
func TestRingPoolCapIsStableAcrossOverflow(t *testing.T) {
	const n = 1
	p := NewRingPool(n, func() int { return 9 })
	if p.Cap() != n {
		t.Fatalf("Cap() before overflow = %d, want %d", p.Cap(), n)
	}

	a := p.Get()
	b := p.Get() // overflow: free list was already empty.
	p.Put(a)
	p.Put(b) // free list now holds 2, likely reallocating its backing array.

	if p.Cap() != n {
		t.Fatalf("Cap() after overflow+Put = %d, want %d (preallocated count is fixed)", p.Cap(), n)
	}
}
