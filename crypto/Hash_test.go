package crypto

import "testing"

func TestHashBufDeterministic(t *testing.T) {
	buf := []byte("quantumgate test payload")
	for _, algo := range []Hash{HashSHA256, HashSHA512, HashBLAKE2S256, HashBLAKE2B512} {
		a, err := HashBuf(buf, algo)
		if err != nil {
			t.Fatalf("algo %d: %v", algo, err)
		}
		b, err := HashBuf(buf, algo)
		if err != nil {
			t.Fatalf("algo %d: %v", algo, err)
		}
		if !ConstantTimeEqual(a, b) {
			t.Errorf("algo %d: digest not deterministic", algo)
		}
	}
}

func TestHMACBufRejectsWrongKey(t *testing.T) {
	buf := []byte("payload")
	tag1, err := HMACBuf(buf, []byte("key-one"), HashBLAKE2S256)
	if err != nil {
		t.Fatal(err)
	}
	tag2, err := HMACBuf(buf, []byte("key-two"), HashBLAKE2S256)
	if err != nil {
		t.Fatal(err)
	}
	if ConstantTimeEqual(tag1, tag2) {
		t.Error("HMAC tags under different keys must differ")
	}
}

func TestHMACBufSHA2UsesGenericHMAC(t *testing.T) {
	tag, err := HMACBuf([]byte("payload"), []byte("key"), HashSHA256)
	if err != nil {
		t.Fatal(err)
	}
	if len(tag) != 32 {
		t.Errorf("expected 32-byte SHA-256 HMAC, got %d", len(tag))
	}
}

func TestHMACBufUnsupportedAlgorithm(t *testing.T) {
	if _, err := HMACBuf([]byte("x"), []byte("k"), Hash(255)); err == nil {
		t.Error("expected error for unknown hash algorithm")
	}
}
