package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/hkdf"

	"github.com/QuantumGateNet/core/protocol"
)

func hashNewFunc(algo Hash) (func() hash.Hash, error) {
	switch algo {
	case HashSHA256:
		return sha256.New, nil
	case HashSHA512:
		return sha512.New, nil
	case HashBLAKE2S256:
		return func() hash.Hash { h, _ := blake2s.New256(nil); return h }, nil
	case HashBLAKE2B512:
		return func() hash.Hash { h, _ := blake2b.New512(nil); return h }, nil
	default:
		return nil, fmt.Errorf("crypto: unsupported HKDF hash algorithm %d", algo)
	}
}

// HKDFExpand derives outLen bytes of key material from secret using HKDF
// under hashAlgo.
func HKDFExpand(secret []byte, outLen int, hashAlgo Hash) ([]byte, error) {
	newFunc, err := hashNewFunc(hashAlgo)
	if err != nil {
		return nil, err
	}

	kdf := hkdf.New(newFunc, secret, nil, []byte("quantumgate-session-keys"))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(kdf, out); err != nil {
		return nil, fmt.Errorf("crypto: hkdf expand: %w", err)
	}
	return out, nil
}

// DeriveSymmetricKeys expands a shared secret into two independent
// directional SymmetricKeyData values (§4.1 derive_symmetric_keys):
// HKDF(shared_secret) -> 2*key_size + 128 bytes, partitioned into
// (k1.key, k2.key, k1.auth_key, k2.auth_key).
func DeriveSymmetricKeys(sharedSecret []byte, aead1, aead2 AEAD, hashAlgo Hash) (k1, k2 protocol.SymmetricKeyData, err error) {
	const keySize = 32
	const authKeySize = 64
	material, err := HKDFExpand(sharedSecret, 2*keySize+2*authKeySize, hashAlgo)
	if err != nil {
		return protocol.SymmetricKeyData{}, protocol.SymmetricKeyData{}, err
	}

	k1.AEAD = toProtocolAEAD(aead1)
	k2.AEAD = toProtocolAEAD(aead2)
	copy(k1.Key[:], material[0:keySize])
	copy(k2.Key[:], material[keySize:2*keySize])
	copy(k1.AuthKey[:], material[2*keySize:2*keySize+authKeySize])
	copy(k2.AuthKey[:], material[2*keySize+authKeySize:2*keySize+2*authKeySize])
	return k1, k2, nil
}
