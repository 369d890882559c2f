package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
)

func newHash(algo Hash) (hash.Hash, error) {
	switch algo {
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashBLAKE2S256:
		return blake2s.New256(nil)
	case HashBLAKE2B512:
		return blake2b.New512(nil)
	default:
		return nil, fmt.Errorf("crypto: unsupported hash algorithm %d", algo)
	}
}

// HashBuf computes buf's digest under algo.
func HashBuf(buf []byte, algo Hash) ([]byte, error) {
	h, err := newHash(algo)
	if err != nil {
		return nil, err
	}
	h.Write(buf)
	return h.Sum(nil), nil
}

func newKeyedHash(algo Hash, key []byte) (hash.Hash, error) {
	switch algo {
	case HashBLAKE2S256:
		return blake2s.New256(key)
	case HashBLAKE2B512:
		return blake2b.New512(key)
	default:
		return nil, fmt.Errorf("crypto: %v has no native keying, use HMAC instead", algo)
	}
}

// HMACBuf computes a message authentication tag over buf using key. BLAKE2
// algorithms use native keying; SHA-2 algorithms use the standard HMAC
// construction.
func HMACBuf(buf, key []byte, algo Hash) ([]byte, error) {
	if algo == HashBLAKE2S256 || algo == HashBLAKE2B512 {
		h, err := newKeyedHash(algo, key)
		if err != nil {
			return nil, err
		}
		h.Write(buf)
		return h.Sum(nil), nil
	}
	return hmacGeneric(buf, key, algo)
}
