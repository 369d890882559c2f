package protocol

import "testing"

func TestExtenderUpdateRoundTrip(t *testing.T) {
	uuid := NewExtenderUUID([]byte("pubkeymaterial"), "echo")
	want := ExtenderUpdatePayload{UUID: uuid, Added: true}
	got, err := DecodeExtenderUpdate(EncodeExtenderUpdate(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.UUID.Equal(want.UUID) || got.Added != want.Added {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestExtenderUpdateTruncated(t *testing.T) {
	if _, err := DecodeExtenderUpdate(make([]byte, 10)); err == nil {
		t.Fatalf("expected error decoding truncated buffer")
	}
}
