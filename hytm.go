// Package hytm is the runtime facade from spec section 6: it wires the
// shared memory, the global synchronisation state, and one dispatcher per
// thread together, and exposes the external Init/Shutdown/TxRun surface
// the rest of the module (and any driver) uses.
package hytm

import (
	"fmt"
	"sync"

	"hytm/dispatch"
	"hytm/htm"
	"hytm/hwtx"
	"hytm/internal/config"
	"hytm/internal/telemetry"
	"hytm/smem"
	"hytm/swtx"
)

// Tx and Body are re-exported so a caller never has to import dispatch
// directly to write a transaction body.
type Tx = dispatch.Tx
type Body = dispatch.Body

// Stats is a thread's running attempt/commit counters, re-exported from
// dispatch for the same reason.
type Stats = dispatch.Stats

// Runtime owns the shared memory and global synchronisation state a set
// of threads transact against. It is built once by Init and torn down
// once by Shutdown; individual threads get their own ThreadContext.
type Runtime struct {
	cells    *smem.Cells
	sl       *htm.SeqLock
	counters *htm.CounterTable

	numThreads int
	hwBudget   int

	mu       sync.Mutex
	contexts map[int]*ThreadContext
}

// Init allocates a runtime with memorySize cells and room for up to
// numThreads concurrent hardware commit counter slots, per spec section
// 6. It returns an error rather than panicking on invalid configuration,
// so a driver can report a usage error and exit cleanly instead of
// crashing.
func Init(numThreads, memorySize int) (*Runtime, error) {
	if numThreads <= 0 {
		return nil, fmt.Errorf("hytm: numThreads must be positive, got %d", numThreads)
	}
	if numThreads > config.MaxThreads {
		return nil, fmt.Errorf("hytm: numThreads %d exceeds maximum %d", numThreads, config.MaxThreads)
	}
	if memorySize <= 0 {
		return nil, fmt.Errorf("hytm: memorySize must be positive, got %d", memorySize)
	}

	rt := &Runtime{
		cells:      smem.New(memorySize),
		sl:         htm.NewSeqLock(),
		counters:   htm.NewCounterTable(config.HCCSlots),
		numThreads: numThreads,
		hwBudget:   config.HWRetryBudget,
		contexts:   make(map[int]*ThreadContext),
	}

	telemetry.Logger().Infow("runtime initialised",
		"threads", numThreads,
		"cells", memorySize,
		"hcc_slots", config.HCCSlots,
		"rtm_capable", hwtx.HasCPUSupport(),
	)

	return rt, nil
}

// Shutdown releases nothing today -- there is no allocation outside the
// Go heap to free -- but it exists as the paired call spec section 6
// names, and gives a later backend (e.g. one holding an OS-level RTM
// handle) a place to release it.
func (rt *Runtime) Shutdown() {
	telemetry.Logger().Infow("runtime shutdown",
		"threads", rt.numThreads,
	)
}

// Len reports the number of shared memory cells.
func (rt *Runtime) Len() int {
	return rt.cells.Len()
}

// Fill sets every cell to v. Callers use this once, before starting any
// thread, to seed initial state (e.g. account balances).
func (rt *Runtime) Fill(v uint64) {
	rt.cells.Fill(v)
}

// Load atomically reads one cell. Safe to call from outside any
// transaction, e.g. to sample state before threads start.
func (rt *Runtime) Load(addr int) uint64 {
	return rt.cells.Load(addr)
}

// Sum totals every cell -- the conservation witness from spec section 8.
func (rt *Runtime) Sum() uint64 {
	return rt.cells.Sum()
}

// SetHWRetryBudget overrides the number of hardware-path attempts a
// dispatcher makes before escalating to software, per spec section 4.D's
// requirement that the budget be tunable rather than hardcoded. It must be
// called before NewThreadContext (or TxRun's lazy equivalent) creates the
// thread context it applies to; contexts already created keep the budget
// they were built with.
func (rt *Runtime) SetHWRetryBudget(n int) {
	rt.hwBudget = n
}

// ThreadContext is one thread's binding into the runtime: its dispatcher,
// its slot, and the software-transaction context it reuses across
// attempts. Exactly one goroutine may drive a given ThreadContext.
type ThreadContext struct {
	slot int
	d    *dispatch.Dispatcher
}

// NewThreadContext binds slot to rt. slot must be unique among the
// threads concurrently using rt and less than config.HCCSlots.
func (rt *Runtime) NewThreadContext(slot int) *ThreadContext {
	sw := swtx.New(rt.cells, rt.sl, rt.counters)
	return &ThreadContext{
		slot: slot,
		d:    dispatch.New(slot, rt.cells, rt.sl, rt.counters, sw, rt.hwBudget),
	}
}

// TxRun executes body to completion exactly once, dispatching between the
// hardware and software paths per spec section 4.D, and returns this
// thread's cumulative attempt/commit counters afterward.
func (tc *ThreadContext) TxRun(body Body) Stats {
	tc.d.Run(body)
	return tc.d.Stats()
}

// Slot reports the hardware commit counter slot this thread context owns.
func (tc *ThreadContext) Slot() int {
	return tc.slot
}

// TxRun is the single-call convenience form of NewThreadContext followed
// by ThreadContext.TxRun: it looks up (creating on first use) the
// ThreadContext bound to slot and runs body on it. Callers driving many
// transactions from the same goroutine should prefer NewThreadContext
// once up front and call TxRun on the result directly, since this method
// pays a mutex lookup on every call.
func (rt *Runtime) TxRun(slot int, body Body) Stats {
	rt.mu.Lock()
	tc, ok := rt.contexts[slot]
	if !ok {
		tc = rt.NewThreadContext(slot)
		rt.contexts[slot] = tc
	}
	rt.mu.Unlock()

	return tc.TxRun(body)
}
