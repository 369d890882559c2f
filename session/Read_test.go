package session

import (
	"net"
	"testing"

	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
)

func TestFrameReaderNextDecodesOneFrameAtATime(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sender := New(client, crypto.RoleAlice, nil)
	receiver := New(server, crypto.RoleBob, nil)

	key := makeTestKey(t, 11)
	if err := sender.SetKeys(key, key); err != nil {
		t.Fatalf("sender SetKeys: %v", err)
	}
	if err := receiver.SetKeys(key, key); err != nil {
		t.Fatalf("receiver SetKeys: %v", err)
	}

	go func() {
		_ = sender.Write(protocol.Message{Type: protocol.MessageTypeNoise, Payload: []byte("one")}, protocol.CompressionDeflate)
		_ = sender.Write(protocol.Message{Type: protocol.MessageTypeNoise, Payload: []byte("two")}, protocol.CompressionDeflate)
	}()

	r := NewFrameReader(receiver)
	first, err := r.Next()
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if string(first.Payload) != "one" {
		t.Fatalf("expected 'one', got %q", first.Payload)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if string(second.Payload) != "two" {
		t.Fatalf("expected 'two', got %q", second.Payload)
	}
}

func TestNewDispatcherWithBufferConsumesLeftover(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sender := New(client, crypto.RoleAlice, nil)
	receiver := New(server, crypto.RoleBob, nil)
	key := makeTestKey(t, 13)
	if err := sender.SetKeys(key, key); err != nil {
		t.Fatalf("sender SetKeys: %v", err)
	}
	if err := receiver.SetKeys(key, key); err != nil {
		t.Fatalf("receiver SetKeys: %v", err)
	}

	frame, err := sender.EncodeOutgoing(protocol.Message{Type: protocol.MessageTypeNoise, Payload: []byte("buffered")}, protocol.CompressionDeflate, 0, 0)
	if err != nil {
		t.Fatalf("EncodeOutgoing: %v", err)
	}

	r := NewFrameReader(receiver)
	r.buf = append(r.buf, frame...)

	var received protocol.Message
	d := NewDispatcherWithBuffer(receiver, func(s *Session, msg protocol.Message) error {
		received = msg
		return nil
	}, r.Leftover())

	receiver.Transition(StateInitialized)
	receiver.Transition(StateHandshake)
	receiver.Transition(StateSessionInit)
	receiver.Transition(StateReady)

	if err := d.dispatchFrame(d.buf[:len(frame)]); err != nil {
		t.Fatalf("dispatchFrame: %v", err)
	}
	if string(received.Payload) != "buffered" {
		t.Fatalf("expected 'buffered', got %q", received.Payload)
	}
}
