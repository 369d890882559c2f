package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	circled448 "github.com/cloudflare/circl/sign/ed448"
)

// GenerateSigningKey creates a new keypair for algo.
func GenerateSigningKey(algo Signature) (priv, pub []byte, err error) {
	switch algo {
	case SignatureEd25519:
		pub25519, priv25519, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("crypto: generate ed25519 key: %w", err)
		}
		return priv25519, pub25519, nil

	case SignatureEd448:
		pub448, priv448, err := circled448.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("crypto: generate ed448 key: %w", err)
		}
		return priv448, pub448, nil

	default:
		return nil, nil, fmt.Errorf("crypto: unsupported signature algorithm %d", algo)
	}
}

// Sign signs msg with priv under algo.
func Sign(msg []byte, algo Signature, priv []byte) ([]byte, error) {
	switch algo {
	case SignatureEd25519:
		return ed25519.Sign(priv, msg), nil
	case SignatureEd448:
		return circled448.Sign(circled448.PrivateKey(priv), msg, ""), nil
	default:
		return nil, fmt.Errorf("crypto: unsupported signature algorithm %d", algo)
	}
}

// Verify checks sig over msg against pub under algo.
func Verify(msg []byte, algo Signature, pub, sig []byte) (bool, error) {
	switch algo {
	case SignatureEd25519:
		return ed25519.Verify(pub, msg, sig), nil
	case SignatureEd448:
		return circled448.Verify(circled448.PublicKey(pub), msg, sig, ""), nil
	default:
		return false, fmt.Errorf("crypto: unsupported signature algorithm %d", algo)
	}
}
