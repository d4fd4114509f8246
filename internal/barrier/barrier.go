// Package barrier releases a fixed set of workers simultaneously, the Go
// analogue of the reference's barrier(int which): an atomic counter every
// worker spins on, rather than a channel, so release carries no goroutine
// scheduling latency once the last worker arrives.
package barrier

import "sync/atomic"

// Barrier is single-use: build a new one per benchmark run.
type Barrier struct {
	n       int64
	arrived int64
}

// New returns a Barrier that releases once n goroutines have called Wait.
func New(n int) *Barrier {
	return &Barrier{n: int64(n)}
}

// Wait blocks the calling goroutine until n goroutines total have called
// Wait on this Barrier.
func (b *Barrier) Wait() {
	atomic.AddInt64(&b.arrived, 1)
	for atomic.LoadInt64(&b.arrived) < b.n {
	}
}
