package session

import (
	"net"
	"testing"
	"time"

	"golang.org/x/net/nettest"

	"github.com/QuantumGateNet/core/crypto"
)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return New(server, crypto.RoleBob, nil), client
}

func TestSessionInitialState(t *testing.T) {
	s, _ := newTestSession(t)
	if s.State() != StateUnknown {
		t.Fatalf("expected new session to start Unknown, got %s", s.State())
	}
}

func TestSessionTransitionSequence(t *testing.T) {
	s, _ := newTestSession(t)
	if !s.transition(StateInitialized) {
		t.Fatalf("expected Unknown -> Initialized to succeed")
	}
	if !s.transition(StateHandshake) {
		t.Fatalf("expected Initialized -> Handshake to succeed")
	}
	if s.transition(StateReady) {
		t.Fatalf("expected Handshake -> Ready to be rejected (must pass through SessionInit)")
	}
}

func TestSessionDisconnectRecordsCause(t *testing.T) {
	s, _ := newTestSession(t)
	s.transition(StateInitialized)
	s.transition(StateHandshake)
	s.Disconnect(CauseProtocolError)
	if s.State() != StateDisconnecting {
		t.Fatalf("expected Disconnecting, got %s", s.State())
	}
	if s.Cause() != CauseProtocolError {
		t.Fatalf("expected cause ProtocolError, got %v", s.Cause())
	}
}

func TestSessionFinalizeClosesConnAndSetsDisconnected(t *testing.T) {
	s, client := newTestSession(t)
	if err := s.Finalize(); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("expected Disconnected after Finalize, got %s", s.State())
	}
	buf := make([]byte, 1)
	client.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := client.Read(buf); err == nil {
		t.Fatalf("expected read on peer side to fail after Finalize closed the server conn")
	}
}

func TestSessionHandshakeExpiredOnlyDuringHandshakePhases(t *testing.T) {
	s, _ := newTestSession(t)
	if s.HandshakeExpired(time.Nanosecond) {
		t.Fatalf("expected HandshakeExpired to be false outside Handshake/SessionInit")
	}
	s.transition(StateInitialized)
	s.transition(StateHandshake)
	time.Sleep(2 * time.Millisecond)
	if !s.HandshakeExpired(time.Millisecond) {
		t.Fatalf("expected HandshakeExpired to be true once max duration elapsed")
	}
}

// TestUnderlyingTransportSatisfiesNetConn guards the assumption every
// session builds on: whatever net.Conn a caller hands to New must behave
// like a real stream socket (net.Pipe's synchronous semantics included).
func TestUnderlyingTransportSatisfiesNetConn(t *testing.T) {
	nettest.TestConn(t, func() (c1, c2 net.Conn, stop func(), err error) {
		c1, c2 = net.Pipe()
		return c1, c2, func() { c1.Close(); c2.Close() }, nil
	})
}

func TestNextNonceEncodesSeedAndCounter(t *testing.T) {
	n := nextNonce(0x01020304, 0x05)
	want := [5]byte{0x01, 0x02, 0x03, 0x04, 0x05}
	for i, b := range want {
		if n[i] != b {
			t.Fatalf("nonce byte %d = %x, want %x", i, n[i], b)
		}
	}
}
