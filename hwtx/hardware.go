// Package hwtx is the hardware path from spec section 4.B: a begin/end
// bracket around a hardware transaction that detects a concurrent
// software writer and bumps the calling thread's commit counter just
// before the bracket ends.
package hwtx

import (
	"runtime"

	"github.com/intel-go/cpuid"

	"hytm/htm"
)

// Status mirrors the abort-status encoding an x86 TSX XBEGIN instruction
// reports: the same constants uber-research-GOCC's rtmlib package defines
// for its own RTM wrapper.
type Status uint32

// Abort status bits, per the Intel SDM's RTM chapter.
const (
	BeginStarted  Status = ^Status(0)
	AbortExplicit Status = 1 << 0
	AbortRetry    Status = 1 << 1
	AbortConflict Status = 1 << 2
	AbortCapacity Status = 1 << 3
	AbortDebug    Status = 1 << 4
	AbortNested   Status = 1 << 5
)

// Imm extracts the caller-supplied abort code carried in the high byte of
// an explicit-abort Status.
func (s Status) Imm() uint8 {
	return uint8((uint32(s) >> 24) & 0xff)
}

const (
	abortSeqLockHeld uint8 = 0x01
	abortBodyFailed  uint8 = 0x02
)

// Primitive is the platform hook a hardware-transactional-memory backend
// must satisfy: exactly one begin/end/abort bracket in flight per
// goroutine at a time.
//
// No implementation ships in this build. Executing a real Intel TSX
// bracket from Go means hand-assembling XBEGIN/XEND/XABORT, and without a
// way to run and exercise that assembly there is no safe way to validate
// it here -- a wrong encoding does not fail a test, it corrupts whatever
// this process happened to be doing. RunHW below therefore reports "no
// hardware transaction ran" whenever no Primitive is registered, which
// spec section 9 states is a fully correct, self-contained mode: the
// dispatcher exhausts its hardware budget in a few cheap calls and falls
// straight through to the software path.
type Primitive interface {
	TxBegin() Status
	TxAbort(code uint8)
	TxEnd()
}

var primitive Primitive

// Register installs the platform primitive that RunHW drives. Tests use
// it to install a fake bracket that exercises the protocol below without
// real hardware; call it with nil to restore the no-hardware default.
func Register(p Primitive) {
	primitive = p
}

// HasCPUSupport reports whether the executing processor advertises RTM;
// it reports false whenever GOMAXPROCS is 1. It is diagnostic only -- logged at startup -- and does not gate RunHW,
// since actually running a hardware transaction also requires a
// registered Primitive.
func HasCPUSupport() bool {
	if runtime.GOMAXPROCS(0) == 1 {
		return false
	}
	return cpuid.HasExtendedFeature(cpuid.RTM)
}

// RunHW implements the hardware path protocol from spec section 4.B. body
// reports whether the region it just ran should commit; returning false
// makes RunHW abort the hardware transaction explicitly instead of ending
// it, so a body-level failure (the equivalent of a software validation
// failure) never lands a partial write. RunHW itself reports true only if
// body ran to completion and the hardware transaction committed.
func RunHW(sl *htm.SeqLock, counters *htm.CounterTable, slot int, body func() bool) bool {
	if primitive == nil {
		return false
	}

	status := primitive.TxBegin()
	if status != BeginStarted {
		return false
	}

	// Post-begin check: a concurrent software writer may still be
	// modifying cells this region will touch.
	if sl.Sample()&1 != 0 {
		primitive.TxAbort(abortSeqLockHeld)
		return false
	}

	if !body() {
		primitive.TxAbort(abortBodyFailed)
		return false
	}

	// Pre-commit: this increment becomes visible atomically with the
	// region's writes.
	counters.Inc(slot)
	primitive.TxEnd()
	return true
}
