// Package workload is the bank-transfer benchmark from the original
// reference program: a shared array of account balances, transacted on
// by many threads doing small transfers between random distinct
// accounts.
//
// The reference's hardware path debits both accounts on a transfer
// instead of debiting one and crediting the other -- a bug, not a
// deliberate hardware/software asymmetry, since it silently destroys the
// conservation invariant the driver itself checks for at the end of a
// run. This package debits and credits symmetrically on both paths.
package workload

import (
	"hytm"
	"hytm/internal/config"
	"hytm/internal/prng"
)

// Bank is the shared account-balance state a set of threads transact
// against, layered directly on the runtime's cells.
type Bank struct {
	rt       *hytm.Runtime
	accounts int
}

// NewBank wraps rt as a bank of numAccounts accounts, each seeded to
// initBalance.
func NewBank(rt *hytm.Runtime, numAccounts int, initBalance uint64) *Bank {
	rt.Fill(initBalance)
	return &Bank{rt: rt, accounts: numAccounts}
}

// Total sums every account balance -- the conservation witness a driver
// checks before and after a run.
func (b *Bank) Total() uint64 {
	return b.rt.Sum()
}

// distinctAccounts draws two different account indices in [0, accounts).
func (b *Bank) distinctAccounts(rng *prng.Source) (int, int) {
	r1, r2 := 0, 0
	for r1 == r2 {
		r1 = rng.Intn(b.accounts)
		r2 = rng.Intn(b.accounts)
	}
	return r1, r2
}

// Transaction returns a hytm.Body that performs up to
// config.InnerTransfers transfers of amount between random distinct
// accounts, using rng for account selection, and stops early once a
// source account holds less than amount. rng must not be shared with any
// other thread.
func (b *Bank) Transaction(rng *prng.Source, amount uint64) hytm.Body {
	return func(tx *hytm.Tx) error {
		for j := 0; j < config.InnerTransfers; j++ {
			r1, r2 := b.distinctAccounts(rng)

			a1 := tx.Read(r1)
			if a1 < amount {
				break
			}
			a2 := tx.Read(r2)
			tx.Write(r1, a1-amount)
			tx.Write(r2, a2+amount)
		}
		return nil
	}
}
