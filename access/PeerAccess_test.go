package access

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/QuantumGateNet/core/protocol"
)

func TestPeerAccessRequiresSelfCertification(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	puuid := protocol.NewPeerUUIDEd25519(pub)
	p := NewPeerAccessControl(PeerAccessNotAllowed, false)

	if err := p.AddPeerEd25519(puuid, otherPub, true); err == nil {
		t.Error("expected self-certification failure for mismatched public key")
	}
	if err := p.AddPeerEd25519(puuid, pub, true); err != nil {
		t.Fatalf("expected self-certification to succeed: %v", err)
	}
	if !p.IsAllowed(puuid) {
		t.Error("explicitly allowed peer should be allowed")
	}
}

func TestPeerAccessDefaultPolicy(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	unknown := protocol.NewPeerUUIDEd25519(pub)

	allow := NewPeerAccessControl(PeerAccessAllowed, false)
	if !allow.IsAllowed(unknown) {
		t.Error("unknown peer should follow the Allowed default policy")
	}

	deny := NewPeerAccessControl(PeerAccessAllowed, true)
	if deny.IsAllowed(unknown) {
		t.Error("RequireAuthentication must reject an unknown peer regardless of default policy")
	}
}
