/*
File Name:  Filter.go

Filters allow the caller to intercept events. The filter functions must
not modify any data. Ported from the teacher's Filter.go: a struct of
nil-defaulted callback closures invoked without a nil check by callers,
generalized from Peernet's DHT/blockchain/packet hooks to QuantumGate's
peer-session and extender lifecycle (§4.5, §4.7).
*/

package core

import (
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/QuantumGateNet/core/extender"
	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/relay"
	"github.com/QuantumGateNet/core/session"
)

// Filters contains all functions to install the hook. Use nil for unused.
// The functions are called sequentially and block execution; if the
// filter takes a long time it should start a goroutine.
type Filters struct {
	// NewPeer is called once a peer has completed its handshake and been
	// added to the PeerManager, whether from an inbound accept or an
	// outbound ConnectTo.
	NewPeer func(peer *PeerInfo)

	// PeerStateChange is defaulted by initFilters, but nothing in this
	// package calls it; session transitions are not reported through it.
	PeerStateChange func(peer *PeerInfo, from, to session.State)

	// LogError is called for any error. This is the one true
	// error-reporting surface; components never log directly.
	LogError func(function, format string, v ...interface{})

	// ExtenderMessage is called for every ExtenderCommunication message a
	// peer sends, after the extender manager's DeliverMessage returns,
	// whether or not a registered extender accepted the payload.
	ExtenderMessage func(peer *PeerInfo, extenderUUID protocol.ExtenderUUID, payload []byte)

	// UnhandledExtenderException is called once when an extender callback
	// panics, before that extender is shut down (§4.7, §7).
	UnhandledExtenderException func(extenderUUID protocol.ExtenderUUID, recovered any)

	// PeerEvent is defaulted by initFilters, but nothing in this package
	// calls it; extender peer events are not mirrored to it.
	PeerEvent func(peer *PeerInfo, event extender.PeerEvent)

	// RelayData is called when a RelayData payload completes its circuit
	// at this instance, whether as the relay's origin or its end (§4.6).
	RelayData func(port uint64, data []byte)

	// RelayStatusChange is called whenever a relay link this instance owns
	// (as origin, intermediate, or end) changes status (§4.6).
	RelayStatusChange func(port uint64, status relay.Status)
}

// initFilters sets default filters to no-op functions so they can be
// called without constant nil checks. Only fields not already set by the
// caller are defaulted.
func (backend *Backend) initFilters() {
	if backend.Filters.NewPeer == nil {
		backend.Filters.NewPeer = func(peer *PeerInfo) {}
	}
	if backend.Filters.PeerStateChange == nil {
		backend.Filters.PeerStateChange = func(peer *PeerInfo, from, to session.State) {}
	}
	if backend.Filters.LogError == nil {
		backend.Filters.LogError = func(function, format string, v ...interface{}) {}
	}
	if backend.Filters.ExtenderMessage == nil {
		backend.Filters.ExtenderMessage = func(peer *PeerInfo, extenderUUID protocol.ExtenderUUID, payload []byte) {}
	}
	if backend.Filters.UnhandledExtenderException == nil {
		backend.Filters.UnhandledExtenderException = func(extenderUUID protocol.ExtenderUUID, recovered any) {}
	}
	if backend.Filters.PeerEvent == nil {
		backend.Filters.PeerEvent = func(peer *PeerInfo, event extender.PeerEvent) {}
	}
	if backend.Filters.RelayData == nil {
		backend.Filters.RelayData = func(port uint64, data []byte) {}
	}
	if backend.Filters.RelayStatusChange == nil {
		backend.Filters.RelayStatusChange = func(port uint64, status relay.Status) {}
	}
}

// multiWriter duplicates writes to every subscribed writer. Subscribers
// may join or leave at any time.
type multiWriter struct {
	writers map[uuid.UUID]io.Writer
	sync.Mutex
}

// newMultiWriter creates an empty multiWriter.
func newMultiWriter() *multiWriter {
	return &multiWriter{writers: make(map[uuid.UUID]io.Writer)}
}

// Subscribe adds writer to the fan-out set and returns a handle for
// Unsubscribe.
func (m *multiWriter) Subscribe(writer io.Writer) (id uuid.UUID) {
	m.Lock()
	defer m.Unlock()

	id = uuid.New()
	m.writers[id] = writer
	return id
}

// Unsubscribe removes a previously subscribed writer.
func (m *multiWriter) Unsubscribe(id uuid.UUID) {
	m.Lock()
	defer m.Unlock()

	delete(m.writers, id)
}

// Write fans p out to every subscribed writer. It never returns an error;
// a failing subscriber does not block the others.
func (m *multiWriter) Write(p []byte) (n int, err error) {
	m.Lock()
	defer m.Unlock()

	for _, w := range m.writers {
		w.Write(p)
	}
	return len(p), nil
}
