package protocol

import (
	"bytes"
	"testing"
)

func TestRelayCreateRoundTrip(t *testing.T) {
	want := RelayCreatePayload{Port: 0xaabbccdd11223344, Hops: 3, Origin: "10.0.0.1:9000", FinalEndpoint: "10.0.0.9:9000"}
	got, err := DecodeRelayCreate(EncodeRelayCreate(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRelayCreateTruncated(t *testing.T) {
	if _, err := DecodeRelayCreate(nil); err == nil {
		t.Fatalf("expected error decoding empty buffer")
	}
}

func TestRelayStatusRoundTrip(t *testing.T) {
	want := RelayStatusPayload{Port: 42, Status: 7}
	got, err := DecodeRelayStatus(EncodeRelayStatus(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRelayDataRoundTrip(t *testing.T) {
	want := RelayDataPayload{Port: 1, MessageID: 2, Data: []byte("hello relay")}
	got, err := DecodeRelayData(EncodeRelayData(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Port != want.Port || got.MessageID != want.MessageID || !bytes.Equal(got.Data, want.Data) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRelayDataAckRoundTrip(t *testing.T) {
	want := RelayDataAckPayload{Port: 5, MessageID: 9}
	got, err := DecodeRelayDataAck(EncodeRelayDataAck(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
