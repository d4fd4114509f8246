// Package dispatch implements spec section 4.D: the per-thread policy
// that tries the hardware path a bounded number of times before
// escalating to the software path, restarting the whole attempt -- budget
// included -- on any software abort.
package dispatch

import (
	"hytm/htm"
	"hytm/hwtx"
	"hytm/smem"
	"hytm/swtx"
)

// Tx is the handle a transaction body operates on. Its Read and Write
// dispatch to whichever path the current attempt is running on: direct
// cell access on the hardware path, buffered access through a
// swtx.Context on the software path.
type Tx struct {
	cells *smem.Cells
	sw    *swtx.Context
	hw    bool
}

// Body is the caller-supplied transaction logic, run once per attempt.
// Returning a non-nil error asks the dispatcher to abort and retry the
// whole attempt; spec section 9 treats this the same as a software
// validation failure, not as a distinct error class.
type Body func(tx *Tx) error

// Read dispatches to whichever path this attempt is running on.
func (tx *Tx) Read(addr int) uint64 {
	if tx.hw {
		return tx.cells.Load(addr)
	}
	return tx.sw.Read(addr)
}

// Write dispatches to whichever path this attempt is running on. On the
// hardware path a write lands directly in smem, protected by the
// enclosing hardware transaction; on the software path it is buffered
// until Commit writes it back.
func (tx *Tx) Write(addr int, value uint64) {
	if tx.hw {
		tx.cells.Store(addr, value)
		return
	}
	tx.sw.Write(addr, value)
}

// Stats reports how many attempts and commits a dispatcher has run on
// each path.
type Stats struct {
	HardwareAttempts int
	HardwareCommits  int
	SoftwareAttempts int
	SoftwareCommits  int
}

// Dispatcher runs one thread's transactions against the shared runtime
// state, per spec section 4.D. It is not safe for concurrent use by more
// than one goroutine: each thread owns exactly one Dispatcher, matching
// its one HCC slot.
type Dispatcher struct {
	slot     int
	cells    *smem.Cells
	sl       *htm.SeqLock
	counters *htm.CounterTable
	sw       *swtx.Context
	hwBudget int

	stats Stats
}

// New builds a dispatcher bound to thread slot. sw must already be scoped
// to the same cells, sl and counters passed here. hwBudget is the number
// of hardware-path attempts made before escalating to software, per spec
// section 4.D's tunable retry budget; hwBudget <= 0 means every attempt
// escalates straight to software.
func New(slot int, cells *smem.Cells, sl *htm.SeqLock, counters *htm.CounterTable, sw *swtx.Context, hwBudget int) *Dispatcher {
	return &Dispatcher{slot: slot, cells: cells, sl: sl, counters: counters, sw: sw, hwBudget: hwBudget}
}

// Stats snapshots the dispatcher's running counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats
}

// Run executes body to completion exactly once, per spec section 4.D's
// policy: try the hardware path up to the dispatcher's hardware retry
// budget times, then fall through to the software path. Any software
// validation failure or body-returned error restarts the entire attempt,
// hardware budget included -- this is the "goto again" of the reference's
// th_run.
func (d *Dispatcher) Run(body Body) {
	for {
		if d.runHardware(body) {
			return
		}
		if d.runSoftware(body) {
			return
		}
	}
}

func (d *Dispatcher) runHardware(body Body) bool {
	tx := &Tx{cells: d.cells, hw: true}
	for attempt := 0; attempt < d.hwBudget; attempt++ {
		d.stats.HardwareAttempts++
		committed := hwtx.RunHW(d.sl, d.counters, d.slot, func() bool {
			return body(tx) == nil
		})
		if committed {
			d.stats.HardwareCommits++
			return true
		}
	}
	return false
}

func (d *Dispatcher) runSoftware(body Body) bool {
	d.stats.SoftwareAttempts++
	d.sw.Begin()
	tx := &Tx{sw: d.sw}
	if err := body(tx); err != nil {
		return false
	}
	if d.sw.Commit() != swtx.Committed {
		return false
	}
	d.stats.SoftwareCommits++
	return true
}
