package htm

import (
	"sync/atomic"

	"hytm/internal/config"
)

type paddedCounter struct {
	val uint64
	_   [config.CacheLineSize - 8]byte
}

// CounterTable is the hardware commit counter array (HCC) from spec
// section 3: one single-writer, multi-reader slot per thread, padded past
// a cache line the way the reference's `pad_word_t counter[72]` is, so
// one thread's hardware commit never invalidates another's line.
type CounterTable struct {
	slots []paddedCounter
}

// NewCounterTable provisions n slots. Per spec section 4.A, n must be at
// least the maximum configured thread count.
func NewCounterTable(n int) *CounterTable {
	return &CounterTable{slots: make([]paddedCounter, n)}
}

// Len reports the number of provisioned slots.
func (c *CounterTable) Len() int {
	return len(c.slots)
}

// Inc bumps the calling thread's own slot by one. Only the owning thread
// may call this; spec section 5 requires HCC to stay single-writer per
// slot.
func (c *CounterTable) Inc(slot int) {
	atomic.AddUint64(&c.slots[slot].val, 1)
}

// Get reads slot's current value. Any thread may read any slot.
func (c *CounterTable) Get(slot int) uint64 {
	return atomic.LoadUint64(&c.slots[slot].val)
}

// Snapshot copies every slot into buf, reusing its backing array when it
// is already large enough, and returns the resulting slice. Reuse avoids
// an allocation on every software-transaction begin, the same role the
// reference's fixed-size snap_counter array plays.
func (c *CounterTable) Snapshot(buf []uint64) []uint64 {
	if cap(buf) < len(c.slots) {
		buf = make([]uint64, len(c.slots))
	}
	buf = buf[:len(c.slots)]
	for i := range c.slots {
		buf[i] = atomic.LoadUint64(&c.slots[i].val)
	}
	return buf
}
