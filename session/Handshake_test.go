package session

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
)

func fullParams(requireAuth bool) MetaExchangeParams {
	return MetaExchangeParams{
		ProtocolVersion:       1,
		HashAlgos:             []crypto.Hash{crypto.HashSHA256, crypto.HashBLAKE2S256},
		AsymmetricAlgos:       []crypto.Asymmetric{crypto.AsymmetricECDHX25519, crypto.AsymmetricECDHSecp521R1},
		SignatureAlgos:        []crypto.Signature{crypto.SignatureEd25519},
		AEADAlgos:             []crypto.AEAD{crypto.AEADChaCha20Poly1305, crypto.AEADAESGCM},
		CompressionAlgos:      []crypto.Compression{crypto.CompressionDeflate},
		RequireAuthentication: requireAuth,
	}
}

func TestEncodeDecodeMetaExchangeRoundTrip(t *testing.T) {
	p := fullParams(true)
	decoded, err := DecodeMetaExchange(EncodeMetaExchange(p))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ProtocolVersion != p.ProtocolVersion {
		t.Fatalf("protocol version mismatch: got %d want %d", decoded.ProtocolVersion, p.ProtocolVersion)
	}
	if len(decoded.HashAlgos) != len(p.HashAlgos) || decoded.HashAlgos[1] != crypto.HashBLAKE2S256 {
		t.Fatalf("hash algos mismatch: %v", decoded.HashAlgos)
	}
	if !decoded.RequireAuthentication {
		t.Fatalf("expected RequireAuthentication true to round-trip")
	}
}

func TestDecodeMetaExchangeTruncatedReturnsError(t *testing.T) {
	if _, err := DecodeMetaExchange([]byte{0, 1}); err == nil {
		t.Fatalf("expected truncated buffer to error")
	}
}

func TestNegotiatePicksHighestSharedAlgorithms(t *testing.T) {
	local := fullParams(false)
	remote := fullParams(true)
	n, err := Negotiate(local, remote)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if n.Hash != crypto.HashBLAKE2S256 {
		t.Fatalf("expected highest shared hash, got %v", n.Hash)
	}
	if n.AEAD != crypto.AEADChaCha20Poly1305 {
		t.Fatalf("expected highest shared aead, got %v", n.AEAD)
	}
	if !n.RequireAuthentication {
		t.Fatalf("expected RequireAuthentication to be the OR of both sides")
	}
}

func TestNegotiatePrimaryAndSecondaryDiffer(t *testing.T) {
	local := fullParams(false)
	remote := fullParams(false)
	n, err := Negotiate(local, remote)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if n.Primary == n.Secondary {
		t.Fatalf("expected primary and secondary exchange algorithms to differ, both were %v", n.Primary)
	}
}

func TestNegotiateNoCommonAlgorithmFails(t *testing.T) {
	local := MetaExchangeParams{
		HashAlgos:        []crypto.Hash{crypto.HashSHA256},
		AsymmetricAlgos:  []crypto.Asymmetric{crypto.AsymmetricECDHX25519},
		SignatureAlgos:   []crypto.Signature{crypto.SignatureEd25519},
		AEADAlgos:        []crypto.AEAD{crypto.AEADChaCha20Poly1305},
		CompressionAlgos: []crypto.Compression{crypto.CompressionDeflate},
	}
	remote := local
	remote.HashAlgos = []crypto.Hash{crypto.HashBLAKE2B512}
	if _, err := Negotiate(local, remote); !errors.Is(err, ErrNoCommonAlgorithm) {
		t.Fatalf("expected ErrNoCommonAlgorithm, got %v", err)
	}
}

func TestChooseDataSizeSettingsDeterministicAndSymmetric(t *testing.T) {
	_, pubA, err := crypto.GenerateSigningKey(crypto.SignatureEd25519)
	if err != nil {
		t.Fatalf("generate key A: %v", err)
	}
	_, pubB, err := crypto.GenerateSigningKey(crypto.SignatureEd25519)
	if err != nil {
		t.Fatalf("generate key B: %v", err)
	}
	a := protocol.NewPeerUUIDEd25519(ed25519.PublicKey(pubA))
	b := protocol.NewPeerUUIDEd25519(ed25519.PublicKey(pubB))

	s1 := ChooseDataSizeSettings(a, b)
	s2 := ChooseDataSizeSettings(b, a)
	if s1 != s2 {
		t.Fatalf("expected ChooseDataSizeSettings to be symmetric regardless of argument order: %+v vs %+v", s1, s2)
	}
	if s1.Offset > protocol.MaxDataSizeOffset {
		t.Fatalf("offset %d exceeds MaxDataSizeOffset", s1.Offset)
	}
}

func TestDHKeyExchangeRoundTrip(t *testing.T) {
	alice, err := StartKeyExchange(crypto.AsymmetricECDHX25519, crypto.RoleAlice)
	if err != nil {
		t.Fatalf("alice keypair: %v", err)
	}
	bob, err := StartKeyExchange(crypto.AsymmetricECDHX25519, crypto.RoleBob)
	if err != nil {
		t.Fatalf("bob keypair: %v", err)
	}

	if err := FinishDHExchange(alice, bob.LocalPub); err != nil {
		t.Fatalf("alice finish: %v", err)
	}
	if err := FinishDHExchange(bob, alice.LocalPub); err != nil {
		t.Fatalf("bob finish: %v", err)
	}

	if string(alice.SharedSecret) != string(bob.SharedSecret) {
		t.Fatalf("expected matching shared secrets")
	}
}

func TestKEMExchangeRoundTrip(t *testing.T) {
	alice, err := StartKeyExchange(crypto.AsymmetricKEMClassicMcEliece, crypto.RoleAlice)
	if err != nil {
		t.Fatalf("alice keypair: %v", err)
	}
	bob, err := CompleteKEMExchange(crypto.AsymmetricKEMClassicMcEliece, alice.LocalPub)
	if err != nil {
		t.Fatalf("bob encapsulate: %v", err)
	}
	if err := FinishKEMExchange(alice, bob.EncryptedSharedSecret); err != nil {
		t.Fatalf("alice decapsulate: %v", err)
	}
	if string(alice.SharedSecret) != string(bob.SharedSecret) {
		t.Fatalf("expected matching shared secrets")
	}
}

func TestDeriveSessionKeysAndRoleAssignment(t *testing.T) {
	alice, bob, err := DeriveSessionKeys([]byte("primary-secret"), []byte("secondary-secret"), crypto.AEADChaCha20Poly1305, crypto.HashBLAKE2S256)
	if err != nil {
		t.Fatalf("DeriveSessionKeys: %v", err)
	}
	sendA, recvA := SessionKeysForRole(crypto.RoleAlice, alice, bob)
	sendB, recvB := SessionKeysForRole(crypto.RoleBob, alice, bob)
	if sendA != recvB {
		t.Fatalf("expected alice's send key to equal bob's recv key")
	}
	if sendB != recvA {
		t.Fatalf("expected bob's send key to equal alice's recv key")
	}
}

func TestSignAndVerifyTranscriptRequiresSelfCertification(t *testing.T) {
	priv, pub, err := crypto.GenerateSigningKey(crypto.SignatureEd25519)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	puuid := protocol.NewPeerUUIDEd25519(ed25519.PublicKey(pub))
	transcript := AuthenticationTranscript([]byte("hello"), []byte("world"))

	sig, err := SignTranscript(transcript, crypto.SignatureEd25519, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := VerifyTranscript(transcript, sig, crypto.SignatureEd25519, puuid, ed25519.PublicKey(pub))
	if err != nil || !ok {
		t.Fatalf("expected verification to succeed: ok=%v err=%v", ok, err)
	}

	_, otherPub, err := crypto.GenerateSigningKey(crypto.SignatureEd25519)
	if err != nil {
		t.Fatalf("generate other key: %v", err)
	}
	if _, err := VerifyTranscript(transcript, sig, crypto.SignatureEd25519, puuid, ed25519.PublicKey(otherPub)); err == nil {
		t.Fatalf("expected verification to fail when public key does not self-certify the claimed uuid")
	}
}
