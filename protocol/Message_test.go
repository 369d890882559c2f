package protocol

import "testing"

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{Type: MessageTypeExtenderCommunication, ExtenderUUID: DefaultExtenderUUID, Payload: []byte("hello world")}

	buf, err := EncodeMessage(msg, CompressionDeflate)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeMessage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Type != msg.Type {
		t.Fatalf("type mismatch: got %v want %v", decoded.Type, msg.Type)
	}
	if string(decoded.Payload) != string(msg.Payload) {
		t.Fatalf("payload mismatch: got %q want %q", decoded.Payload, msg.Payload)
	}
	if !decoded.ExtenderUUID.Equal(msg.ExtenderUUID) {
		t.Fatalf("extender uuid mismatch")
	}
}

func TestMessageCompressionAppliedWhenSmaller(t *testing.T) {
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = 'a'
	}
	msg := Message{Type: MessageTypeBeginSessionInit, Payload: payload}

	buf, err := EncodeMessage(msg, CompressionZstandard)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) >= len(payload) {
		t.Fatalf("expected compression to shrink repetitive payload, got %d bytes for %d input", len(buf), len(payload))
	}

	decoded, err := DecodeMessage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Payload) != len(payload) {
		t.Fatalf("decompressed length mismatch: got %d want %d", len(decoded.Payload), len(payload))
	}
}

func TestMessageNeverCompressedTypes(t *testing.T) {
	payload := make([]byte, 4096)
	msg := Message{Type: MessageTypeNoise, Payload: payload}

	buf, err := EncodeMessage(msg, CompressionZstandard)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeMessage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Flags&FlagCompressed != 0 {
		t.Fatalf("noise message must never be marked compressed")
	}
}

func TestMessageUnknownTypeRejected(t *testing.T) {
	buf, err := EncodeMessage(Message{Type: MessageTypeNoise, Payload: []byte("x")}, CompressionDeflate)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// corrupt the type field to an out-of-range value
	typeAndSize := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	typeAndSize = (typeAndSize & sizeMask) | uint32(messageTypeCount+10)<<sizeBits
	buf[0] = byte(typeAndSize)
	buf[1] = byte(typeAndSize >> 8)
	buf[2] = byte(typeAndSize >> 16)
	buf[3] = byte(typeAndSize >> 24)

	if _, err := DecodeMessage(buf); err != ErrUnknownMessageType {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestMessagePayloadTooLarge(t *testing.T) {
	msg := Message{Type: MessageTypeBeginSessionInit, Payload: make([]byte, MaxPlaintext+1)}
	if _, err := EncodeMessage(msg, CompressionDeflate); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
