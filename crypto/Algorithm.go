/*
File Name:  Algorithm.go

Algorithm vocabulary for the crypto façade (§4.1) and the ascending-sorted
intersection-selection rule used during MetaExchange/PrimaryKeyExchange.
*/

package crypto

// Hash identifies a hash/HMAC/HKDF digest algorithm.
type Hash uint8

const (
	HashSHA256 Hash = iota
	HashSHA512
	HashBLAKE2S256
	HashBLAKE2B512
)

// Asymmetric identifies a DH or KEM primitive used for primary/secondary
// key exchange. Enum values are ordered so that "highest common value"
// selection (§4.1) is a plain integer comparison.
type Asymmetric uint8

const (
	AsymmetricECDHSecp521R1 Asymmetric = iota
	AsymmetricECDHX25519
	AsymmetricECDHX448
	AsymmetricKEMNTRUPrime
	AsymmetricKEMNewHope
	AsymmetricKEMClassicMcEliece
)

// ExchangeType reports whether an Asymmetric algorithm is a classic
// Diffie-Hellman exchange or a key-encapsulation mechanism.
type ExchangeType uint8

const (
	ExchangeDiffieHellman ExchangeType = iota
	ExchangeKeyEncapsulation
)

func (a Asymmetric) ExchangeType() ExchangeType {
	if a >= AsymmetricKEMNTRUPrime {
		return ExchangeKeyEncapsulation
	}
	return ExchangeDiffieHellman
}

// Signature identifies a digital-signature algorithm.
type Signature uint8

const (
	SignatureEd25519 Signature = iota
	SignatureEd448
)

// AEAD identifies an authenticated-encryption cipher.
type AEAD uint8

const (
	AEADAESGCM AEAD = iota
	AEADChaCha20Poly1305
)

// Compression identifies a payload compression scheme.
type Compression uint8

const (
	CompressionDeflate Compression = iota
	CompressionZstandard
)

// Role distinguishes the two parties of a handshake step. For KEM
// exchanges, Bob encapsulates to Alice's public key and Alice decapsulates.
type Role uint8

const (
	RoleAlice Role = iota
	RoleBob
)

// HighestCommon returns the highest enum value present in both ascending
// sorted lists, and false if the intersection is empty (§4.1:
// NoCommonAlgorithm).
func HighestCommon[T ~uint8](local, remote []T) (T, bool) {
	set := make(map[T]struct{}, len(remote))
	for _, v := range remote {
		set[v] = struct{}{}
	}

	var best T
	found := false
	for _, v := range local {
		if _, ok := set[v]; ok && (!found || v > best) {
			best = v
			found = true
		}
	}
	return best, found
}
