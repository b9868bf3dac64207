package loop

import "testing"

func TestElasticPoolGrowsWithLoad(t *testing.T) {
	e := NewElasticPool(1, 4, 10, 16)
	e.Start()
	defer e.Stop(true)

	if e.Size() != 1 {
		t.Fatalf("initial size = %d, want 1", e.Size())
	}
	// load 5 with L=10 requires ceil(5/10)=1 loop: no growth.
	e.Next(5)
	if e.Size() != 1 {
		t.Fatalf("size after low load = %d, want 1", e.Size())
	}
	// load 25 with L=10 requires ceil(25/10)=3 loops.
	e.Next(25)
	if e.Size() != 3 {
		t.Fatalf("size after load 25 = %d, want 3", e.Size())
	}
}

func TestElasticPoolClampsAtHighWatermark(t *testing.T) {
	e := NewElasticPool(1, 2, 1, 16)
	e.Start()
	defer e.Stop(true)

	e.Next(1000) // would require 1000 loops without a clamp.
	if e.Size() != 2 {
		t.Fatalf("size = %d, want clamped to wmax=2", e.Size())
	}
}

func TestElasticPoolGrowthIsMonotonic(t *testing.T) {
	e := NewElasticPool(1, 8, 1, 16)
	e.Start()
	defer e.Stop(true)

	e.Next(5)
	grown := e.Size()
	e.Next(1) // a lower load hint must never shrink the pool.
	if e.Size() != grown {
		t.Fatalf("size shrank from %d to %d on lower load", grown, e.Size())
	}
}
