// Package swtx is the software path from spec section 4.C: a NOrec-style
// software transaction that buffers reads and writes, validates its read
// set against concurrent commits, and writes back its buffer under the
// sequence lock.
package swtx

import (
	"hytm/htm"
	"hytm/smem"
)

// Outcome is the explicit result-or-abort signal spec section 9 asks for
// in place of exceptions: Commit always returns one, and nothing in this
// package panics or unwinds the caller's stack to signal an abort.
type Outcome int

const (
	// Committed means every buffered write is now visible in smem.
	Committed Outcome = iota
	// Aborted means no buffered write took effect; the caller should
	// retry the whole attempt.
	Aborted
)

type entry struct {
	addr  int
	value uint64
}

// Context is one software transaction attempt. It is reused across
// attempts by the same thread via Begin, the way the reference reuses a
// single thread-local tx struct across th_run's retry loop.
type Context struct {
	cells    *smem.Cells
	sl       *htm.SeqLock
	counters *htm.CounterTable

	startSeq uint64
	snapshot []uint64
	reads    []entry
	writes   []entry
	aborted  bool
}

// New builds a software-transaction context bound to the runtime's shared
// state. One Context is allocated per thread and reused across attempts.
func New(cells *smem.Cells, sl *htm.SeqLock, counters *htm.CounterTable) *Context {
	return &Context{
		cells:    cells,
		sl:       sl,
		counters: counters,
		snapshot: make([]uint64, counters.Len()),
	}
}

// Begin resets the context for a fresh attempt and records the starting
// sequence lock value and hardware commit counter snapshot, per spec
// section 4.C.
func (c *Context) Begin() {
	c.reads = c.reads[:0]
	c.writes = c.writes[:0]
	c.aborted = false

	for {
		v := c.sl.Sample()
		if v&1 != 0 {
			continue
		}
		c.startSeq = v
		break
	}
	c.snapshot = c.counters.Snapshot(c.snapshot)
}

// Read implements spec section 4.C's read rule: consult the write set
// first (newest write wins); otherwise load smem and confirm the load is
// consistent with the read set built up so far. If the sequence lock has
// moved on since the last confirmed snapshot, that alone is not a
// conflict -- validate re-checks the existing read set against current
// memory and, so long as nothing this transaction actually read has
// changed, refreshes the snapshot and the read continues. Only a genuine
// mismatch in the read set aborts the transaction. Once aborted, Read is
// a no-op that returns 0, so the caller's transaction body can run to
// completion without checking a per-call error, matching the
// tx_read(addr) -> value signature from spec section 6.
func (c *Context) Read(addr int) uint64 {
	if c.aborted {
		return 0
	}

	for i := len(c.writes) - 1; i >= 0; i-- {
		if c.writes[i].addr == addr {
			return c.writes[i].value
		}
	}

	for {
		value := c.cells.Load(addr)
		v := c.sl.Sample()
		if v&1 == 0 && v == c.startSeq {
			c.reads = append(c.reads, entry{addr: addr, value: value})
			return value
		}
		if !c.validate() {
			c.aborted = true
			return 0
		}
		// validate refreshed startSeq to a consistent snapshot; reload
		// addr against it rather than trust the stale value above.
	}
}

// Write implements spec section 4.C's deferred-write rule: buffer the
// value, do not touch smem yet.
func (c *Context) Write(addr int, value uint64) {
	if c.aborted {
		return
	}
	c.writes = append(c.writes, entry{addr: addr, value: value})
}

// validate re-establishes consistency after the sequence lock has moved
// since the last confirmed snapshot: it waits out any in-flight writer,
// checks the read set built up so far against current memory, and -- if
// nothing in it has actually changed -- adopts the newly observed lock
// value as the current snapshot. It reports false only when the read set
// itself no longer matches memory, i.e. a genuine conflict; mere
// contention or an unrelated commit is not a reason to fail.
func (c *Context) validate() bool {
	for {
		v := c.sl.Sample()
		if v&1 != 0 {
			continue
		}
		if !c.checkReadSet() {
			return false
		}
		if c.sl.Sample() != v {
			continue
		}
		c.startSeq = v
		return true
	}
}

// checkReadSet re-checks every buffered read against smem without
// touching the sequence lock. validate uses it to confirm a snapshot;
// Commit uses it, after acquiring the lock itself, to make the same
// check one last time before writing back.
func (c *Context) checkReadSet() bool {
	for _, r := range c.reads {
		if c.cells.Load(r.addr) != r.value {
			return false
		}
	}
	return true
}

// hccChanged reports whether any thread's hardware commit counter has
// moved since Begin's snapshot. A hardware transaction writes smem
// directly without ever touching the sequence lock, so this is the only
// signal a software transaction has that such a commit happened at all;
// spec section 4.C's commit step folds it into the same post-acquisition
// check as checkReadSet, not into every read.
func (c *Context) hccChanged() bool {
	for slot := 0; slot < c.counters.Len(); slot++ {
		if c.counters.Get(slot) != c.snapshot[slot] {
			return true
		}
	}
	return false
}

// Commit implements spec section 4.C's commit protocol: a read-only
// transaction commits for free. A transaction with writes acquires the
// sequence lock, retrying acquisition (via validate, which refreshes the
// snapshot) on mere CAS contention rather than aborting outright; once
// held, a moved hardware commit counter is what decides whether the read
// set needs re-checking at all -- the counters are the only sign a
// hardware transaction (which never touches the sequence lock) might have
// changed something -- and only an actual mismatch in that re-check
// aborts the commit. A hardware commit to cells this transaction never
// read still writes back and commits.
func (c *Context) Commit() Outcome {
	if c.aborted {
		return Aborted
	}
	if len(c.writes) == 0 {
		return Committed
	}

	for !c.sl.TryAcquire(c.startSeq) {
		if !c.validate() {
			return Aborted
		}
	}

	if c.hccChanged() && !c.checkReadSet() {
		c.sl.Release()
		return Aborted
	}

	for _, w := range c.writes {
		c.cells.Store(w.addr, w.value)
	}

	c.sl.Release()
	return Committed
}
