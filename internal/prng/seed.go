package prng

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
)

// SeedFor derives a per-thread seed from a run seed and a worker slot so
// every thread's stream is independent and the whole run is reproducible
// given the same (runSeed, threads) pair. xxhash plays the same
// numeric-fingerprint role here that engines.hash gives it over string
// keys in the storage engine this runtime is descended from.
func SeedFor(runSeed uint64, slot int) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], runSeed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(slot))
	return xxhash.Sum64(buf[:])
}
