/*
File Name:  Peer ID.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

Self-certifying 128-bit identifiers for peers and extenders. A PeerUUID or
ExtenderUUID carries two reserved bits identifying its kind and one bit
identifying the signing-algorithm family that produced it; verification
recomputes the identifier from a supplied public key and compares it against
the stored value.
*/

package protocol

import (
	"crypto/ed25519"

	"github.com/btcsuite/btcd/btcec"
	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// Kind distinguishes a PeerUUID from an ExtenderUUID. Both share the same
// 128-bit layout; only the reserved type bits differ.
type Kind uint8

const (
	KindPeer Kind = iota
	KindExtender
)

// SigAlgo identifies which signing-algorithm family derived an identifier.
type SigAlgo uint8

const (
	// SigAlgoEd25519 is the default signing family.
	SigAlgoEd25519 SigAlgo = iota
	// SigAlgoSecp256k1 is the legacy/compat family carried over from the
	// teacher's peer identity model (btcec ECDSA keypairs).
	SigAlgoSecp256k1
)

const (
	typeBitMask   = 0xC0 // top 2 bits of byte 6: Kind
	typeBitExt    = 0x40
	sigFamilyMask = 0x20 // next bit of byte 6: SigAlgo
)

// PeerUUID is a 128-bit self-certifying peer identifier.
type PeerUUID struct {
	id uuid.UUID
}

// ExtenderUUID is a 128-bit self-certifying extender identifier. It shares
// PeerUUID's layout with the extender type bit set.
type ExtenderUUID struct {
	id uuid.UUID
}

// DefaultExtenderUUID is the reserved sentinel used by messages that are not
// routed to any specific extender (core control traffic).
var DefaultExtenderUUID = ExtenderUUID{id: uuid.MustParse("00000000-0000-0900-0600-000000000000")}

func deriveID(kind Kind, algo SigAlgo, pub []byte) uuid.UUID {
	h := blake3.Sum256(pub)
	var id uuid.UUID
	copy(id[:], h[:16])

	id[6] &^= typeBitMask | sigFamilyMask
	if kind == KindExtender {
		id[6] |= typeBitExt
	}
	if algo == SigAlgoSecp256k1 {
		id[6] |= sigFamilyMask
	}
	return id
}

func kindOf(id uuid.UUID) Kind {
	if id[6]&typeBitMask == typeBitExt {
		return KindExtender
	}
	return KindPeer
}

func algoOf(id uuid.UUID) SigAlgo {
	if id[6]&sigFamilyMask != 0 {
		return SigAlgoSecp256k1
	}
	return SigAlgoEd25519
}

// NewPeerUUIDEd25519 derives a PeerUUID from an Ed25519 public key.
func NewPeerUUIDEd25519(pub ed25519.PublicKey) PeerUUID {
	return PeerUUID{id: deriveID(KindPeer, SigAlgoEd25519, pub)}
}

// NewPeerUUIDSecp256k1 derives a PeerUUID from a secp256k1 public key, using
// the same compressed-serialization-then-hash approach as the teacher's
// node ID derivation.
func NewPeerUUIDSecp256k1(pub *btcec.PublicKey) PeerUUID {
	return PeerUUID{id: deriveID(KindPeer, SigAlgoSecp256k1, pub.SerializeCompressed())}
}

// Kind returns whether this identifier is reserved for peers or extenders.
func (p PeerUUID) Kind() Kind { return kindOf(p.id) }

// Algo returns the signing-algorithm family that produced this identifier.
func (p PeerUUID) Algo() SigAlgo { return algoOf(p.id) }

// Bytes returns the raw 16-byte identifier.
func (p PeerUUID) Bytes() [16]byte { return p.id }

func (p PeerUUID) String() string { return p.id.String() }

// Equal reports whether two PeerUUIDs are the same identifier.
func (p PeerUUID) Equal(other PeerUUID) bool { return p.id == other.id }

// VerifyEd25519 reports whether p was correctly derived from pub.
func (p PeerUUID) VerifyEd25519(pub ed25519.PublicKey) bool {
	return p.Algo() == SigAlgoEd25519 && p.id == deriveID(KindPeer, SigAlgoEd25519, pub)
}

// VerifySecp256k1 reports whether p was correctly derived from pub.
func (p PeerUUID) VerifySecp256k1(pub *btcec.PublicKey) bool {
	return p.Algo() == SigAlgoSecp256k1 && p.id == deriveID(KindPeer, SigAlgoSecp256k1, pub.SerializeCompressed())
}

// NewExtenderUUID derives an ExtenderUUID from the owning peer's public key
// plus a display name disambiguator, so a single peer may register multiple
// extenders without collision.
func NewExtenderUUID(pub ed25519.PublicKey, name string) ExtenderUUID {
	material := append(append([]byte{}, pub...), []byte(name)...)
	return ExtenderUUID{id: deriveID(KindExtender, SigAlgoEd25519, material)}
}

func (e ExtenderUUID) Kind() Kind { return kindOf(e.id) }

func (e ExtenderUUID) Bytes() [16]byte { return e.id }

func (e ExtenderUUID) String() string { return e.id.String() }

// Equal reports whether two ExtenderUUIDs are the same identifier.
func (e ExtenderUUID) Equal(other ExtenderUUID) bool { return e.id == other.id }

// IsDefault reports whether e is the reserved non-extender sentinel.
func (e ExtenderUUID) IsDefault() bool { return e.id == DefaultExtenderUUID.id }

// ExtenderUUIDFromBytes reconstructs an ExtenderUUID received over the wire.
// It does not verify self-certification; callers that need that guarantee
// call NewExtenderUUID on the accompanying public key and compare.
func ExtenderUUIDFromBytes(raw [16]byte) ExtenderUUID {
	return ExtenderUUID{id: uuid.UUID(raw)}
}

// PeerLUID is a process-local, monotonically increasing, never-reused handle
// for a peer connection. It has no meaning outside the process that issued
// it.
type PeerLUID uint64
