package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/jessevdk/go-flags"

	"hytm"
	"hytm/internal/barrier"
	"hytm/internal/clock"
	"hytm/internal/config"
	"hytm/internal/prng"
	"hytm/internal/telemetry"
	"hytm/internal/workload"
)

var opts struct {
	Threads  int    `value-name:"n" short:"t" long:"threads" description:"number of worker threads, 1-64" required:"true"`
	Accounts int    `long:"accounts" default:"1000" description:"number of accounts in the bank"`
	Balance  uint64 `long:"balance" default:"1000" description:"initial balance per account"`
	Transfer uint64 `long:"transfer" default:"50" description:"amount moved per transfer"`
	Txns     int    `long:"txns" default:"100000" description:"total transactions across all threads"`
	Seed     uint64 `long:"seed" default:"1" description:"run seed used to derive each thread's PRNG"`
	HWBudget int    `long:"hw-budget" default:"5" description:"hardware-path attempts tried before escalating to software"`
}

func main() {
	_, err := flags.Parse(&opts)
	if err != nil {
		if flags.WroteHelp(err) {
			return
		}
		fmt.Fprintln(os.Stderr, "Usage: <# of threads 1-64>")
		os.Exit(1)
	}

	if opts.Threads <= 0 || opts.Threads > config.MaxThreads {
		fmt.Fprintln(os.Stderr, "Usage: <# of threads 1-64>")
		os.Exit(1)
	}
	fmt.Printf("Number of threads: %d\n", opts.Threads)

	wl := config.Workload{
		NumAccounts:    opts.Accounts,
		InitBalance:    opts.Balance,
		NumTxn:         opts.Txns,
		TransferAmount: opts.Transfer,
	}
	if err := wl.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rt, err := hytm.Init(opts.Threads, opts.Accounts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rt.Shutdown()
	rt.SetHWRetryBudget(opts.HWBudget)

	bank := workload.NewBank(rt, opts.Accounts, opts.Balance)
	before := bank.Total()

	perThread := opts.Txns / opts.Threads
	bar := barrier.New(opts.Threads)

	results := make([]hytm.Stats, opts.Threads)
	var wg sync.WaitGroup
	wg.Add(opts.Threads)

	start := clock.Now()
	for slot := 0; slot < opts.Threads; slot++ {
		slot := slot
		go func() {
			defer wg.Done()
			tc := rt.NewThreadContext(slot)
			rng := prng.New(prng.SeedFor(opts.Seed, slot))
			body := bank.Transaction(rng, opts.Transfer)

			bar.Wait()
			var stats hytm.Stats
			for i := 0; i < perThread; i++ {
				stats = tc.TxRun(body)
			}
			results[slot] = stats
		}()
	}
	wg.Wait()
	elapsed := clock.ElapsedNanos(start)

	after := bank.Total()

	var totalHW, totalSW int
	for slot, s := range results {
		fmt.Printf("Thread ID: %d\tHardware Count: %d\tSoftware Count: %d\tTotal: %d\n",
			slot, s.HardwareCommits, s.SoftwareCommits, s.HardwareCommits+s.SoftwareCommits)
		totalHW += s.HardwareCommits
		totalSW += s.SoftwareCommits
	}

	fmt.Printf("Total time = %d ns\n", elapsed)
	fmt.Printf("Total Money Before: $%d\n", before)
	fmt.Printf("Total Money After:  $%d\n", after)

	telemetry.Logger().Infow("run complete",
		"threads", opts.Threads,
		"hardware_commits", totalHW,
		"software_commits", totalSW,
		"elapsed_ns", elapsed,
		"conserved", before == after,
	)

	if before != after {
		fmt.Fprintln(os.Stderr, "conservation violated")
		os.Exit(1)
	}
}
