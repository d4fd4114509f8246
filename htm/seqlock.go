// Package htm owns the global synchronisation state from spec section
// 4.A: the sequence lock and the hardware commit counter array. It is the
// single source of truth for "who is writing" and "how many hardware
// transactions have committed"; the sequence lock is the only lock the
// transactional protocol uses.
package htm

import (
	"sync/atomic"

	"hytm/internal/config"
)

// SeqLock is the sequence lock from spec section 3: an even value means
// no software transaction is in its commit write-back phase, an odd
// value means exactly one holds the lock. It is padded to its own cache
// line the way the reference's pad_word_t pads seqlock, so a software
// commit's CAS traffic never bounces a reader's line.
type SeqLock struct {
	word uint64
	_    [config.CacheLineSize - 8]byte

	observe func(before, after uint64)
}

// NewSeqLock returns a lock initialised to 0 (even, free).
func NewSeqLock() *SeqLock {
	return &SeqLock{}
}

// Sample performs the atomic word read from spec section 4.A.
func (l *SeqLock) Sample() uint64 {
	return atomic.LoadUint64(&l.word)
}

// TryAcquire attempts the compare-and-set from v to v+1. It succeeds only
// if v is even (free) and the lock is still at v.
func (l *SeqLock) TryAcquire(v uint64) bool {
	if v&1 != 0 {
		return false
	}
	ok := atomic.CompareAndSwapUint64(&l.word, v, v+1)
	if ok && l.observe != nil {
		l.observe(v, v+1)
	}
	return ok
}

// Release increments the lock from odd back to even. The observer, if
// any, is called while the lock is still held, so the release is recorded
// before another thread can acquire.
func (l *SeqLock) Release() {
	if l.observe != nil {
		v := atomic.LoadUint64(&l.word)
		l.observe(v, v+1)
	}
	atomic.AddUint64(&l.word, 1)
}

// Observe installs a callback invoked on every state transition. Only the
// instrumented test build (spec section 8 property S6) sets one;
// production callers never do.
func (l *SeqLock) Observe(fn func(before, after uint64)) {
	l.observe = fn
}
