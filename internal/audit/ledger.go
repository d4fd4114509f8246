// Package audit is the instrumented variant of the sequence lock referred
// to by spec section 8 property S6: it records every observed lock
// transition so a test can replay them in arrival order and check the
// parity invariant. It is never linked into the production hot path.
package audit

import (
	"fmt"

	"github.com/tidwall/btree"
)

// Transition records one observed change of the sequence lock's value.
type Transition struct {
	Seq    uint64
	Before uint64
	After  uint64
}

// Ledger is an ordered, replayable log of sequence lock transitions, kept
// in a btree.Map the same way mvcc.Database keys its transaction history
// by a monotonically increasing id -- here the key is arrival order
// rather than a transaction id.
type Ledger struct {
	next    uint64
	entries btree.Map[uint64, Transition]
}

// Record appends a transition observed going from before to after.
func (l *Ledger) Record(before, after uint64) {
	seq := l.next
	l.next++
	l.entries.Set(seq, Transition{Seq: seq, Before: before, After: after})
}

// Len reports how many transitions have been recorded.
func (l *Ledger) Len() int {
	return l.entries.Len()
}

// Verify walks the ledger in arrival order and checks spec section 8's
// property S6: every transition steps the lock by exactly one, and the
// lock's value at the start of one transition matches its value at the
// end of the previous one, so no interleaving of two odd states was ever
// observed.
func (l *Ledger) Verify() error {
	var lastAfter uint64
	haveLast := false

	iter := l.entries.Iter()
	for ok := iter.First(); ok; ok = iter.Next() {
		t := iter.Value()
		if t.After != t.Before+1 {
			return fmt.Errorf("audit: transition %d did not step by one: %d -> %d", t.Seq, t.Before, t.After)
		}
		if haveLast && t.Before != lastAfter {
			return fmt.Errorf("audit: transition %d observed lock at %d, expected %d", t.Seq, t.Before, lastAfter)
		}
		lastAfter = t.After
		haveLast = true
	}
	return nil
}
