package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/QuantumGateNet/core/protocol"
)

func toProtocolAEAD(a AEAD) protocol.AEADAlgo {
	if a == AEADChaCha20Poly1305 {
		return protocol.AEADChaCha20Poly1305
	}
	return protocol.AEADAESGCM
}

func newAEAD(algo AEAD, key []byte) (cipher.AEAD, error) {
	switch algo {
	case AEADChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case AEADAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("crypto: unsupported AEAD algorithm %d", algo)
	}
}

// Encrypt seals plaintext under sym_key using nonce, matching the façade's
// encrypt(plaintext, sym_key, nonce) -> ciphertext operation. The 16-byte
// AEAD tag is appended to the returned ciphertext.
func Encrypt(plaintext []byte, algo AEAD, key []byte, nonce []byte) ([]byte, error) {
	aead, err := newAEAD(algo, key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext under sym_key using nonce.
func Decrypt(ciphertext []byte, algo AEAD, key []byte, nonce []byte) ([]byte, error) {
	aead, err := newAEAD(algo, key)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: aead open: %w", err)
	}
	return plain, nil
}
