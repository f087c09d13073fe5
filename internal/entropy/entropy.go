// Package entropy provides unbiased randomness for critical game events,
// above all the secret outcome draw, which must not be predictable from a
// seeded generator that agents could reconstruct.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
)

// Float returns a uniform float64 in [0, 1) from crypto/rand.
func Float() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; a neutral value
		// keeps the caller's probability math sane if it somehow does.
		return 0.5
	}
	// 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Bool returns true with probability p.
func Bool(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return Float() < p
}

// Coin returns a fair boolean.
func Coin() bool {
	return Bool(0.5)
}
