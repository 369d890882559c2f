package crypto

import "testing"

func TestHKDFExpandDeterministicAndLength(t *testing.T) {
	secret := []byte("shared-secret-material")
	a, err := HKDFExpand(secret, 96, HashSHA256)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 96 {
		t.Fatalf("expected 96 bytes, got %d", len(a))
	}
	b, err := HKDFExpand(secret, 96, HashSHA256)
	if err != nil {
		t.Fatal(err)
	}
	if !ConstantTimeEqual(a, b) {
		t.Error("HKDFExpand must be deterministic for the same secret and length")
	}
}

func TestDeriveSymmetricKeysProducesIndependentDirections(t *testing.T) {
	secret := []byte("another-shared-secret")
	k1, k2, err := DeriveSymmetricKeys(secret, AEADChaCha20Poly1305, AEADAESGCM, HashBLAKE2S256)
	if err != nil {
		t.Fatal(err)
	}
	if ConstantTimeEqual(k1.Key[:], k2.Key[:]) {
		t.Error("the two directional keys must differ")
	}
	if ConstantTimeEqual(k1.AuthKey[:], k2.AuthKey[:]) {
		t.Error("the two directional auth keys must differ")
	}
	if !BufferLooksRandom(k1.Key[:]) || !BufferLooksRandom(k2.Key[:]) {
		t.Error("derived keys should not be degenerate all-zero/all-one buffers")
	}
}
