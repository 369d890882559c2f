/*
File Name:  Secp256k1.go

The legacy/compat signing family carried over from the teacher's peer
identity model: ECDSA secp256k1 with public-key recovery from the
signature, and a BLAKE3 transcript hash ahead of signing. Used by peers
whose PeerUUID selects SigAlgoSecp256k1 (protocol.SigAlgoSecp256k1) instead
of the default Ed25519 family.
*/

package crypto

import (
	"github.com/btcsuite/btcd/btcec"
	"lukechampine.com/blake3"
)

// HashTranscript abstracts the hash function used ahead of a secp256k1
// signature, matching the teacher's hashData/blake3.Sum256 pairing.
func HashTranscript(data []byte) []byte {
	h := blake3.Sum256(data)
	return h[:]
}

// Secp256k1Sign signs a transcript hash and returns a recoverable compact
// signature, from which the signer's public key can be extracted without
// transmitting it separately.
func Secp256k1Sign(priv *btcec.PrivateKey, transcript []byte) ([]byte, error) {
	return btcec.SignCompact(btcec.S256(), priv, HashTranscript(transcript), true)
}

// Secp256k1Recover recovers the signer's public key from a compact
// signature over transcript, verifying it in the same step.
func Secp256k1Recover(signature, transcript []byte) (*btcec.PublicKey, error) {
	pub, _, err := btcec.RecoverCompact(btcec.S256(), signature, HashTranscript(transcript))
	return pub, err
}

// Secp256k1ToSalsa20Key derives a 32-byte Salsa20 stream-cipher key from a
// secp256k1 public key: the compressed point without its prefix byte. No
// code in this module encrypts with the key.
func Secp256k1ToSalsa20Key(pub *btcec.PublicKey) *[32]byte {
	var key [32]byte
	copy(key[:], pub.SerializeCompressed()[1:])
	return &key
}
