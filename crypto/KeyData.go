/*
File Name:  KeyData.go

AsymmetricKeyData (§3) and the generate_keypair / derive_shared_secret
façade operations (§4.1), grounded on original_source's KeyData.cpp role
split (Alice/Bob, DiffieHellman vs KeyEncapsulation).
*/

package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/kem/mceliece/mceliece8192128"
	"golang.org/x/crypto/curve25519"
)

// AsymmetricKeyData holds one side's state for one key-exchange step.
type AsymmetricKeyData struct {
	Algorithm   Asymmetric
	Role        Role
	LocalPriv   []byte
	LocalPub    []byte
	PeerPub     []byte
	SharedSecret []byte
	EncryptedSharedSecret []byte // KEM ciphertext, set on the encapsulating side

	mceliecePriv *mceliece8192128.PrivateKey
}

// GenerateKeypair fills in LocalPriv/LocalPub (DH) or the local KEM keypair.
func GenerateKeypair(algo Asymmetric) (*AsymmetricKeyData, error) {
	kd := &AsymmetricKeyData{Algorithm: algo}

	switch algo {
	case AsymmetricECDHX25519:
		priv := make([]byte, curve25519.ScalarSize)
		if _, err := rand.Read(priv); err != nil {
			return nil, fmt.Errorf("crypto: generate x25519 key: %w", err)
		}
		pub, err := curve25519.X25519(priv, curve25519.Basepoint)
		if err != nil {
			return nil, fmt.Errorf("crypto: derive x25519 public key: %w", err)
		}
		kd.LocalPriv, kd.LocalPub = priv, pub

	case AsymmetricECDHSecp521R1:
		curve := ecdh.P521()
		priv, err := curve.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("crypto: generate secp521r1 key: %w", err)
		}
		kd.LocalPriv = priv.Bytes()
		kd.LocalPub = priv.PublicKey().Bytes()

	case AsymmetricKEMClassicMcEliece:
		pub, priv, err := mceliece8192128.Scheme().GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("crypto: generate mceliece8192128 keypair: %w", err)
		}
		pubBytes, err := pub.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("crypto: marshal mceliece public key: %w", err)
		}
		kd.LocalPub = pubBytes
		kd.mceliecePriv = priv.(*mceliece8192128.PrivateKey)

	case AsymmetricECDHX448, AsymmetricKEMNTRUPrime, AsymmetricKEMNewHope:
		return nil, fmt.Errorf("crypto: %w: no provider registered for algorithm %d", ErrNoProvider, algo)

	default:
		return nil, fmt.Errorf("crypto: unknown asymmetric algorithm %d", algo)
	}

	return kd, nil
}

// DeriveSharedSecret computes the shared secret for kd. For DH algorithms,
// kd.PeerPub must already be set. For KEM algorithms with Role Bob, it
// encapsulates to kd.PeerPub, filling EncryptedSharedSecret; with Role
// Alice, it decapsulates kd.EncryptedSharedSecret using the local private
// key generated by GenerateKeypair.
func (kd *AsymmetricKeyData) DeriveSharedSecret() error {
	switch kd.Algorithm {
	case AsymmetricECDHX25519:
		secret, err := curve25519.X25519(kd.LocalPriv, kd.PeerPub)
		if err != nil {
			return fmt.Errorf("crypto: x25519 shared secret: %w", err)
		}
		kd.SharedSecret = secret
		return nil

	case AsymmetricECDHSecp521R1:
		curve := ecdh.P521()
		priv, err := curve.NewPrivateKey(kd.LocalPriv)
		if err != nil {
			return fmt.Errorf("crypto: load secp521r1 private key: %w", err)
		}
		peer, err := curve.NewPublicKey(kd.PeerPub)
		if err != nil {
			return fmt.Errorf("crypto: load secp521r1 peer public key: %w", err)
		}
		secret, err := priv.ECDH(peer)
		if err != nil {
			return fmt.Errorf("crypto: secp521r1 shared secret: %w", err)
		}
		kd.SharedSecret = secret
		return nil

	case AsymmetricKEMClassicMcEliece:
		scheme := mceliece8192128.Scheme()
		switch kd.Role {
		case RoleBob:
			peerPub, err := scheme.UnmarshalBinaryPublicKey(kd.PeerPub)
			if err != nil {
				return fmt.Errorf("crypto: unmarshal mceliece peer public key: %w", err)
			}
			ct, ss, err := scheme.Encapsulate(peerPub)
			if err != nil {
				return fmt.Errorf("crypto: mceliece encapsulate: %w", err)
			}
			kd.EncryptedSharedSecret = ct
			kd.SharedSecret = ss
			return nil
		default: // RoleAlice
			if kd.mceliecePriv == nil {
				return fmt.Errorf("crypto: mceliece decapsulation requires a local keypair from GenerateKeypair")
			}
			ss, err := scheme.Decapsulate(kd.mceliecePriv, kd.EncryptedSharedSecret)
			if err != nil {
				return fmt.Errorf("crypto: mceliece decapsulate: %w", err)
			}
			kd.SharedSecret = ss
			return nil
		}

	default:
		return fmt.Errorf("crypto: %w: no provider registered for algorithm %d", ErrNoProvider, kd.Algorithm)
	}
}

// ErrNoProvider marks an algorithm that is registered in the vocabulary
// (§4.1) but has no concrete implementation — see DESIGN.md for which ones
// and why. HighestCommon does not know which algorithms have a provider,
// so negotiation can select one of these; the handshake then fails with
// this error when key generation is attempted.
var ErrNoProvider = fmt.Errorf("no provider")
