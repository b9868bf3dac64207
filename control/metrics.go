// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Liveness counters for the reactor pools and handler pool: opens,
// closes broken down by api.ErrorKind, and the elastic work pool's
// current size. Deliberately not a general metrics system (spec
// non-goal) — a small fixed set of counters this repository actually
// needs, behind a snapshot-style read.

package control

import (
	"sync"
	"sync/atomic"

	"github.com/basreactor/bas/api"
)

// Liveness aggregates the counts spec's testable properties (P1, P6)
// are checked against: total opens, closes per api.ErrorKind, and the
// most recently observed work-pool size.
type Liveness struct {
	opens int64

	mu         sync.Mutex
	closes     map[api.ErrorKind]int64
	workPoolSz int64
}

// NewLiveness constructs an empty counter set.
func NewLiveness() *Liveness {
	return &Liveness{closes: make(map[api.ErrorKind]int64)}
}

// RecordOpen increments the total-opens counter.
func (l *Liveness) RecordOpen() {
	atomic.AddInt64(&l.opens, 1)
}

// RecordClose increments the counter for kind, classifying err first.
func (l *Liveness) RecordClose(err error) {
	kind := api.NewOpError(err).Kind
	l.mu.Lock()
	l.closes[kind]++
	l.mu.Unlock()
}

// SetWorkPoolSize records the elastic work pool's current loop count.
func (l *Liveness) SetWorkPoolSize(n int) {
	atomic.StoreInt64(&l.workPoolSz, int64(n))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Opens        int64
	Closes       map[api.ErrorKind]int64
	WorkPoolSize int64
}

// Snapshot returns a copy of the current counters.
func (l *Liveness) Snapshot() Snapshot {
	l.mu.Lock()
	closes := make(map[api.ErrorKind]int64, len(l.closes))
	for k, v := range l.closes {
		closes[k] = v
	}
	l.mu.Unlock()
	return Snapshot{
		Opens:        atomic.LoadInt64(&l.opens),
		Closes:       closes,
		WorkPoolSize: atomic.LoadInt64(&l.workPoolSz),
	}
}
