package swtx

import (
	"sync"
	"testing"

	"hytm/htm"
	"hytm/smem"
)

func newFixture(cells int) (*smem.Cells, *htm.SeqLock, *htm.CounterTable) {
	return smem.New(cells), htm.NewSeqLock(), htm.NewCounterTable(4)
}

func TestContext_ReadWriteOwnWrites(t *testing.T) {
	cells, sl, counters := newFixture(4)
	cells.Store(0, 100)

	ctx := New(cells, sl, counters)
	ctx.Begin()

	if v := ctx.Read(0); v != 100 {
		t.Fatalf("expected 100, got %d", v)
	}
	ctx.Write(0, 200)
	if v := ctx.Read(0); v != 200 {
		t.Errorf("expected a read after write to see the buffered value, got %d", v)
	}

	// smem itself must be untouched until commit.
	if v := cells.Load(0); v != 100 {
		t.Errorf("expected smem unchanged before commit, got %d", v)
	}

	if got := ctx.Commit(); got != Committed {
		t.Fatalf("expected commit to succeed, got %v", got)
	}
	if v := cells.Load(0); v != 200 {
		t.Errorf("expected smem updated after commit, got %d", v)
	}
}

func TestContext_ReadOnlyCommitsFree(t *testing.T) {
	cells, sl, counters := newFixture(2)
	cells.Store(0, 7)

	ctx := New(cells, sl, counters)
	ctx.Begin()
	ctx.Read(0)

	before := sl.Sample()
	if got := ctx.Commit(); got != Committed {
		t.Fatalf("expected read-only commit to succeed, got %v", got)
	}
	if after := sl.Sample(); after != before {
		t.Errorf("expected a read-only commit not to touch the sequence lock, got %d -> %d", before, after)
	}
}

func TestContext_ReadSurvivesUnrelatedConcurrentCommit(t *testing.T) {
	cells, sl, counters := newFixture(2)
	cells.Store(0, 1)
	cells.Store(1, 50)

	ctx := New(cells, sl, counters)
	ctx.Begin()
	initialSeq := ctx.startSeq

	// Another thread commits a write to a cell ctx has not touched,
	// advancing the sequence lock, before ctx's first read. Nothing ctx
	// actually reads is stale, so this must not abort it.
	other := New(cells, sl, counters)
	other.Begin()
	other.Read(1)
	other.Write(1, 99)
	if got := other.Commit(); got != Committed {
		t.Fatalf("expected the unrelated writer to commit, got %v", got)
	}

	if v := ctx.Read(0); v != 1 {
		t.Fatalf("expected ctx's read to succeed despite the unrelated intervening commit, got %d", v)
	}
	if ctx.aborted {
		t.Fatalf("expected ctx not to be marked aborted")
	}
	if ctx.startSeq == initialSeq {
		t.Errorf("expected validate to have refreshed startSeq to the new snapshot")
	}

	ctx.Write(0, 2)
	if got := ctx.Commit(); got != Committed {
		t.Errorf("expected ctx to commit since nothing it read actually changed, got %v", got)
	}
}

func TestContext_ReadAbortsOnActualReadSetConflict(t *testing.T) {
	cells, sl, counters := newFixture(2)
	cells.Store(0, 1)
	cells.Store(1, 1)

	ctx := New(cells, sl, counters)
	ctx.Begin()
	ctx.Read(0)

	// Another thread commits a change to the exact cell ctx already put
	// in its read set.
	other := New(cells, sl, counters)
	other.Begin()
	other.Read(0)
	other.Write(0, 2)
	if got := other.Commit(); got != Committed {
		t.Fatalf("expected the interleaved writer to commit, got %v", got)
	}

	if v := ctx.Read(1); v != 0 {
		t.Errorf("expected an aborted read to return 0, got %d", v)
	}
	if !ctx.aborted {
		t.Fatalf("expected the context to be marked aborted on a genuine read-set conflict")
	}
	if got := ctx.Commit(); got != Aborted {
		t.Errorf("expected commit on an aborted context to report Aborted, got %v", got)
	}
}

func TestContext_ReadIgnoresHardwareCommitCounterChanges(t *testing.T) {
	cells, sl, counters := newFixture(2)
	cells.Store(0, 1)

	ctx := New(cells, sl, counters)
	ctx.Begin()

	// A hardware commit elsewhere bumps a counter slot without ever
	// touching the sequence lock or this cell.
	counters.Inc(1)

	if v := ctx.Read(0); v != 1 {
		t.Errorf("expected a read to ignore an unrelated hardware commit counter change, got %d", v)
	}
	if ctx.aborted {
		t.Errorf("expected the context not to abort on a hardware commit counter change during a read")
	}
}

func TestContext_CommitSucceedsDespiteUnrelatedHardwareCommit(t *testing.T) {
	cells, sl, counters := newFixture(2)
	cells.Store(0, 1)

	ctx := New(cells, sl, counters)
	ctx.Begin()
	ctx.Read(0)
	ctx.Write(1, 5)

	// A hardware transaction commits somewhere between Begin and Commit,
	// without touching the sequence lock or any cell ctx read.
	counters.Inc(2)

	if got := ctx.Commit(); got != Committed {
		t.Errorf("expected commit to succeed since the hardware commit never touched ctx's read set, got %v", got)
	}
	if v := cells.Load(1); v != 5 {
		t.Errorf("expected ctx's write to land, got %d", v)
	}
}

func TestContext_CommitAbortsWhenHardwareCommitChangedReadCell(t *testing.T) {
	cells, sl, counters := newFixture(2)
	cells.Store(0, 1)

	ctx := New(cells, sl, counters)
	ctx.Begin()
	ctx.Read(0)
	ctx.Write(1, 5)

	// A hardware transaction commits directly to a cell ctx already read,
	// without ever touching the sequence lock: the counter bump is the
	// only signal of it, and the read set no longer matches memory.
	cells.Store(0, 99)
	counters.Inc(2)

	if got := ctx.Commit(); got != Aborted {
		t.Errorf("expected commit to abort when a hardware commit actually changed a read cell, got %v", got)
	}
	if v := cells.Load(1); v != 0 {
		t.Errorf("expected ctx's write to never land after an aborted commit, got %d", v)
	}
}

func TestContext_CommitAbortsOnReadSetConflict(t *testing.T) {
	cells, sl, counters := newFixture(2)
	cells.Store(0, 1)
	cells.Store(1, 1)

	ctx := New(cells, sl, counters)
	ctx.Begin()
	ctx.Read(0)
	ctx.Write(1, 99)

	// Another writer commits a change to a cell ctx has already read,
	// after ctx started but before ctx commits.
	other := New(cells, sl, counters)
	other.Begin()
	other.Read(0)
	other.Write(0, 2)
	if got := other.Commit(); got != Committed {
		t.Fatalf("expected the interleaved writer to commit, got %v", got)
	}

	if got := ctx.Commit(); got != Aborted {
		t.Errorf("expected ctx's commit to abort on a stale read set, got %v", got)
	}
	if v := cells.Load(1); v != 1 {
		t.Errorf("expected ctx's write to never land after an aborted commit, got %d", v)
	}
}

func TestContext_ConcurrentConflictingTransfersConserveTotal(t *testing.T) {
	const cellCount = 8
	const perGoroutine = 200

	cells, sl, counters := newFixture(cellCount)
	cells.Fill(100)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := New(cells, sl, counters)
			from, to := g%cellCount, (g+1)%cellCount
			for i := 0; i < perGoroutine; i++ {
				for {
					ctx.Begin()
					a := ctx.Read(from)
					if a < 1 {
						break
					}
					b := ctx.Read(to)
					ctx.Write(from, a-1)
					ctx.Write(to, b+1)
					if ctx.Commit() == Committed {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	if got := cells.Sum(); got != cellCount*100 {
		t.Errorf("expected total to be conserved at %d, got %d", cellCount*100, got)
	}
}
