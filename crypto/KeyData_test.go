package crypto

import "testing"

func TestX25519KeyExchangeAgrees(t *testing.T) {
	alice, err := GenerateKeypair(AsymmetricECDHX25519)
	if err != nil {
		t.Fatal(err)
	}
	bob, err := GenerateKeypair(AsymmetricECDHX25519)
	if err != nil {
		t.Fatal(err)
	}

	alice.PeerPub = bob.LocalPub
	bob.PeerPub = alice.LocalPub

	if err := alice.DeriveSharedSecret(); err != nil {
		t.Fatal(err)
	}
	if err := bob.DeriveSharedSecret(); err != nil {
		t.Fatal(err)
	}

	if !ConstantTimeEqual(alice.SharedSecret, bob.SharedSecret) {
		t.Error("x25519 shared secrets must agree")
	}
}

func TestSecp521R1KeyExchangeAgrees(t *testing.T) {
	alice, err := GenerateKeypair(AsymmetricECDHSecp521R1)
	if err != nil {
		t.Fatal(err)
	}
	bob, err := GenerateKeypair(AsymmetricECDHSecp521R1)
	if err != nil {
		t.Fatal(err)
	}

	alice.PeerPub = bob.LocalPub
	bob.PeerPub = alice.LocalPub

	if err := alice.DeriveSharedSecret(); err != nil {
		t.Fatal(err)
	}
	if err := bob.DeriveSharedSecret(); err != nil {
		t.Fatal(err)
	}

	if !ConstantTimeEqual(alice.SharedSecret, bob.SharedSecret) {
		t.Error("secp521r1 shared secrets must agree")
	}
}

func TestMcElieceEncapsulateDecapsulateAgrees(t *testing.T) {
	alice, err := GenerateKeypair(AsymmetricKEMClassicMcEliece)
	if err != nil {
		t.Fatal(err)
	}
	alice.Role = RoleAlice

	bob := &AsymmetricKeyData{
		Algorithm: AsymmetricKEMClassicMcEliece,
		Role:      RoleBob,
		PeerPub:   alice.LocalPub,
	}
	if err := bob.DeriveSharedSecret(); err != nil {
		t.Fatal(err)
	}

	alice.EncryptedSharedSecret = bob.EncryptedSharedSecret
	if err := alice.DeriveSharedSecret(); err != nil {
		t.Fatal(err)
	}

	if !ConstantTimeEqual(alice.SharedSecret, bob.SharedSecret) {
		t.Error("mceliece shared secrets must agree after encapsulate/decapsulate")
	}
}

func TestUngroundedAlgorithmsReturnErrNoProvider(t *testing.T) {
	for _, algo := range []Asymmetric{AsymmetricECDHX448, AsymmetricKEMNTRUPrime, AsymmetricKEMNewHope} {
		if _, err := GenerateKeypair(algo); err == nil {
			t.Errorf("algo %d: expected ErrNoProvider, got nil", algo)
		}
	}
}
