// Package config holds the runtime's sizing constants and the tunable
// workload parameters for the benchmark driver. It plays the role the
// teacher's (missing but imported) simple-kv/pkg/config package played for
// index.SkipListMaxLevel/SkipListProp: a small, typed home for numbers
// that would otherwise be magic constants scattered across packages.
package config

import "fmt"

const (
	// MaxThreads is the largest thread count the runtime accepts.
	MaxThreads = 64

	// HCCSlots is the number of hardware-commit-counter slots
	// provisioned, at least MaxThreads per spec section 4.A.
	HCCSlots = 72

	// HWRetryBudget is the number of hardware-path attempts the
	// dispatcher makes before escalating to the software path.
	HWRetryBudget = 5

	// InnerTransfers is the number of transfer attempts a single
	// transaction makes before committing.
	InnerTransfers = 10

	// CacheLineSize is the padding unit used by the sequence lock and
	// the hardware commit counters to avoid false sharing.
	CacheLineSize = 64
)

// Workload describes the account-transfer benchmark from spec section 6.
type Workload struct {
	NumAccounts    int
	InitBalance    uint64
	NumTxn         int
	TransferAmount uint64
}

// DefaultWorkload returns the reference benchmark's constants:
// NUM_ACCTS=1000, INIT_BALANCE=1000, NUM_TXN=100000, TRFR_AMT=50.
func DefaultWorkload() Workload {
	return Workload{
		NumAccounts:    1000,
		InitBalance:    1000,
		NumTxn:         100000,
		TransferAmount: 50,
	}
}

// Validate reports a configuration error, the only surfaced error kind
// per spec section 7.
func (w Workload) Validate() error {
	if w.NumAccounts <= 0 {
		return fmt.Errorf("config: NumAccounts must be positive, got %d", w.NumAccounts)
	}
	if w.NumTxn <= 0 {
		return fmt.Errorf("config: NumTxn must be positive, got %d", w.NumTxn)
	}
	if w.TransferAmount == 0 {
		return fmt.Errorf("config: TransferAmount must be positive, got %d", w.TransferAmount)
	}
	return nil
}
