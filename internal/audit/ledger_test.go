package audit

import (
	"sync"
	"testing"

	"hytm/htm"
)

func TestLedger_RecordAndVerify(t *testing.T) {
	var l Ledger
	l.Record(0, 1)
	l.Record(1, 2)
	l.Record(2, 3)

	if l.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", l.Len())
	}
	if err := l.Verify(); err != nil {
		t.Errorf("expected a well-formed chain to verify, got %v", err)
	}
}

func TestLedger_DetectsNonUnitStep(t *testing.T) {
	var l Ledger
	l.Record(0, 1)
	l.Record(1, 3) // skipped a step

	if err := l.Verify(); err == nil {
		t.Errorf("expected Verify to reject a transition that does not step by one")
	}
}

func TestLedger_DetectsBrokenChain(t *testing.T) {
	var l Ledger
	l.Record(0, 1)
	l.Record(5, 6) // does not continue from the previous After

	if err := l.Verify(); err == nil {
		t.Errorf("expected Verify to reject a broken chain")
	}
}

func TestLedger_EmptyVerifies(t *testing.T) {
	var l Ledger
	if err := l.Verify(); err != nil {
		t.Errorf("expected an empty ledger to verify trivially, got %v", err)
	}
}

// TestLedger_TracksConcurrentSeqLockUsage wires a Ledger to a real
// htm.SeqLock the way spec section 8 property S6 is meant to be checked:
// many goroutines racing acquire/release pairs against the lock, with every
// transition recorded as it happens rather than fabricated after the fact.
func TestLedger_TracksConcurrentSeqLockUsage(t *testing.T) {
	sl := htm.NewSeqLock()
	var ledger Ledger
	sl.Observe(ledger.Record)

	const workers = 8
	const itersPerWorker = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < itersPerWorker; i++ {
				for {
					v := sl.Sample()
					if v&1 != 0 {
						continue
					}
					if sl.TryAcquire(v) {
						sl.Release()
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	if got, want := ledger.Len(), workers*itersPerWorker*2; got != want {
		t.Fatalf("expected %d recorded transitions (acquire+release per iteration), got %d", want, got)
	}
	if err := ledger.Verify(); err != nil {
		t.Errorf("expected a ledger recorded from a real concurrently-used sequence lock to verify, got %v", err)
	}
}
