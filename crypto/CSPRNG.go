package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// CSPRNGBytes returns n cryptographically random bytes.
func CSPRNGBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: csprng: %w", err)
	}
	return b, nil
}

// CSPRNGUint64 returns a cryptographically random 64-bit value.
func CSPRNGUint64() (uint64, error) {
	b, err := CSPRNGBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ConstantTimeEqual reports whether a and b are equal without leaking
// timing information about where they first differ.
func ConstantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}

// BufferLooksRandom sanity-checks derived key material: it rejects buffers
// that are all-zero or all-one bits, which would indicate a derivation bug
// rather than genuine entropy.
func BufferLooksRandom(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	allZero, allOne := true, true
	for _, v := range b {
		if v != 0x00 {
			allZero = false
		}
		if v != 0xFF {
			allOne = false
		}
	}
	return !allZero && !allOne
}
