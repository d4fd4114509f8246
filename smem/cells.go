// Package smem is the shared memory from spec section 3: an ordered
// sequence of word-sized cells that every transactional path reads and
// writes through atomic, word-granular loads and stores. The reference
// workload treats cells as account balances; nothing here assumes that --
// Cells is agnostic to what the words mean.
package smem

import "sync/atomic"

// Cells is the shared memory array (SM).
type Cells struct {
	words []uint64
}

// New allocates n zero-valued cells.
func New(n int) *Cells {
	return &Cells{words: make([]uint64, n)}
}

// Len reports the number of cells.
func (c *Cells) Len() int {
	return len(c.words)
}

// Load atomically reads the cell at addr.
func (c *Cells) Load(addr int) uint64 {
	return atomic.LoadUint64(&c.words[addr])
}

// Store atomically writes value into the cell at addr.
func (c *Cells) Store(addr int, value uint64) {
	atomic.StoreUint64(&c.words[addr], value)
}

// Fill sets every cell to v. Meant to run once before any worker starts.
func (c *Cells) Fill(v uint64) {
	for i := range c.words {
		atomic.StoreUint64(&c.words[i], v)
	}
}

// Sum totals every cell -- the conservation witness from spec section 8.
func (c *Cells) Sum() uint64 {
	var total uint64
	for i := range c.words {
		total += atomic.LoadUint64(&c.words[i])
	}
	return total
}
