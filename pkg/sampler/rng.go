//go:build linux

package sampler

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mathrand "math/rand"
)

type randSource interface {
	Float64() float64
	Intn(n int) int
}

// seedRNG mirrors stats.c's rand_init: seed math/rand from a cryptographic
// entropy source, and if that is unavailable, log a warning and seed from
// fallbackSeed rather than failing the experiment.
func seedRNG() *mathrand.Rand {
	var seed int64
	n, err := rand.Int(rand.Reader, big.NewInt(0).SetUint64(^uint64(0)>>1))
	if err != nil {
		log.Warn("failed to read crypto/rand entropy, proceeding unseeded", "error", err)
		seed = fallbackSeed()
	} else {
		seed = n.Int64()
	}
	return mathrand.New(mathrand.NewSource(seed))
}

// fallbackSeed makes one more crypto/rand read and derives a seed from it,
// returning the fixed seed 1 if that read fails too; either way the caller
// has already been warned.
func fallbackSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	}
	return 1
}
