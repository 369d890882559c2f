package session

import (
	"net"
	"testing"

	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
)

func newDispatchSession(t *testing.T) *Session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return New(server, crypto.RoleBob, nil)
}

func TestRouteHandshakeAdvancesState(t *testing.T) {
	s := newDispatchSession(t)
	s.transition(StateInitialized)
	d := NewDispatcher(s, nil)

	if err := d.routeHandshake(protocol.Message{Type: protocol.MessageTypeBeginMetaExchange}); err != nil {
		t.Fatalf("routeHandshake: %v", err)
	}
	if s.State() != StateHandshake {
		t.Fatalf("expected state Handshake, got %s", s.State())
	}
}

func TestRouteHandshakeSessionInitTransition(t *testing.T) {
	s := newDispatchSession(t)
	s.transition(StateInitialized)
	s.transition(StateHandshake)
	d := NewDispatcher(s, nil)

	if err := d.routeHandshake(protocol.Message{Type: protocol.MessageTypeBeginSessionInit}); err != nil {
		t.Fatalf("routeHandshake: %v", err)
	}
	if s.State() != StateSessionInit {
		t.Fatalf("expected state SessionInit, got %s", s.State())
	}
}

func TestRouteRejectsDataMessageBeforeReady(t *testing.T) {
	s := newDispatchSession(t)
	d := NewDispatcher(s, nil)

	err := d.route(protocol.Message{Type: protocol.MessageTypeExtenderCommunication})
	if err == nil {
		t.Fatalf("expected error routing application message before Ready")
	}
}

func TestRouteDispatchesToHandlerWhenReady(t *testing.T) {
	s := newDispatchSession(t)
	s.transition(StateInitialized)
	s.transition(StateHandshake)
	s.transition(StateSessionInit)
	s.transition(StateReady)

	called := false
	d := NewDispatcher(s, func(sess *Session, msg protocol.Message) error {
		called = true
		return nil
	})

	if err := d.route(protocol.Message{Type: protocol.MessageTypeExtenderCommunication}); err != nil {
		t.Fatalf("route: %v", err)
	}
	if !called {
		t.Fatalf("expected handler to be invoked once session is Ready")
	}
}

func TestRouteNoiseMessageIsIgnored(t *testing.T) {
	s := newDispatchSession(t)
	d := NewDispatcher(s, func(sess *Session, msg protocol.Message) error {
		t.Fatalf("handler should not be invoked for noise traffic")
		return nil
	})
	if err := d.route(protocol.Message{Type: protocol.MessageTypeNoise}); err != nil {
		t.Fatalf("route: %v", err)
	}
}

func TestRouteKeyUpdateReadyCompletesOverlap(t *testing.T) {
	s := newDispatchSession(t)
	newKey := makeTestKey(t, 9)
	s.BeginKeyUpdate(newKey)
	d := NewDispatcher(s, nil)

	if err := d.routeKeyUpdate(protocol.Message{Type: protocol.MessageTypeKeyUpdateReady}); err != nil {
		t.Fatalf("routeKeyUpdate: %v", err)
	}
	s.mutex.RLock()
	pending := s.pendingKey
	recv := s.recvKey
	s.mutex.RUnlock()
	if pending != nil {
		t.Fatalf("expected pending key cleared after KeyUpdateReady")
	}
	if recv != newKey {
		t.Fatalf("expected recv key cut over to the new key")
	}
}

func TestTransitionOrFailTreatsSameStateAsNoop(t *testing.T) {
	s := newDispatchSession(t)
	s.transition(StateInitialized)
	s.transition(StateHandshake)
	if err := s.transitionOrFail(StateHandshake); err != nil {
		t.Fatalf("expected repeating the current state to be a no-op, got %v", err)
	}
}
