package protocol

import (
	"crypto/ed25519"
	"testing"

	"github.com/btcsuite/btcd/btcec"
)

func TestPeerUUIDEd25519RoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	id := NewPeerUUIDEd25519(pub)
	if id.Kind() != KindPeer {
		t.Fatalf("expected KindPeer, got %v", id.Kind())
	}
	if !id.VerifyEd25519(pub) {
		t.Fatalf("expected verification to succeed")
	}

	other, _, _ := ed25519.GenerateKey(nil)
	if id.VerifyEd25519(other) {
		t.Fatalf("verification unexpectedly succeeded against a different key")
	}
}

func TestPeerUUIDSecp256k1RoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	id := NewPeerUUIDSecp256k1(priv.PubKey())
	if id.Algo() != SigAlgoSecp256k1 {
		t.Fatalf("expected SigAlgoSecp256k1, got %v", id.Algo())
	}
	if !id.VerifySecp256k1(priv.PubKey()) {
		t.Fatalf("expected verification to succeed")
	}
}

func TestExtenderUUIDDefault(t *testing.T) {
	if !DefaultExtenderUUID.IsDefault() {
		t.Fatalf("DefaultExtenderUUID must report IsDefault")
	}

	derived := NewExtenderUUID([]byte("some-peer-public-key"), "echo")
	if derived.IsDefault() {
		t.Fatalf("a derived ExtenderUUID must never equal the reserved sentinel")
	}
	if derived.Kind() != KindExtender {
		t.Fatalf("expected KindExtender, got %v", derived.Kind())
	}
}

func TestNewExtenderUUIDDistinguishesNames(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	a := NewExtenderUUID(pub, "echo")
	b := NewExtenderUUID(pub, "chat")
	if a.Equal(b) {
		t.Fatalf("expected different display names to derive different UUIDs")
	}
}

func TestExtenderUUIDFromBytesRoundTrips(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	original := NewExtenderUUID(pub, "echo")
	reconstructed := ExtenderUUIDFromBytes(original.Bytes())
	if !original.Equal(reconstructed) {
		t.Fatalf("expected ExtenderUUIDFromBytes(original.Bytes()) to equal original")
	}
}
