/*
File Name:  Extender.go

Extender registration and the multiplexer that routes ExtenderUpdate
broadcasts, inbound ExtenderCommunication messages, and peer lifecycle
events to registered extenders (§4.7). Grounded on the teacher's
Filter.go, whose Filters struct holds a set of callback closures
(defaulted to no-ops by initFilters) and whose multiWriter.Write fans one
event out to every registered sink — the registry here is the same shape,
a map keyed by ExtenderUUID.
*/

package extender

import (
	"fmt"
	"sync"

	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/sanitize"
)

// MaxExtenders is the hard cap on registered extenders per process (§4.7).
const MaxExtenders = 4096

// PeerEvent is one of the lifecycle notifications an extender may observe.
type PeerEvent uint8

const (
	PeerConnected PeerEvent = iota
	PeerDisconnected
	PeerSuspended
	PeerResumed
)

// Callbacks bundles the hooks an extender may implement. Every field is
// optional; a nil callback is simply not invoked.
type Callbacks struct {
	OnStartup   func() error
	OnShutdown  func()
	OnMessage   func(peerLUID protocol.PeerLUID, payload []byte) error
	OnPeerEvent func(peerLUID protocol.PeerLUID, event PeerEvent)
}

type entry struct {
	uuid        protocol.ExtenderUUID
	displayName string
	callbacks   Callbacks
}

// BroadcastFunc sends an ExtenderUpdate (or retraction) announcement to
// every currently-connected peer. The manager calls it on Add/Remove; how
// the announcement actually reaches sockets is the caller's concern.
type BroadcastFunc func(uuid protocol.ExtenderUUID, added bool)

// UnhandledExceptionFunc is invoked once, synchronously, the first time an
// extender callback panics, before that extender is shut down.
type UnhandledExceptionFunc func(uuid protocol.ExtenderUUID, recovered any)

// Manager is the process-wide extender registry and multiplexer.
type Manager struct {
	mutex sync.RWMutex
	byID  map[protocol.ExtenderUUID]*entry

	Broadcast            BroadcastFunc
	OnUnhandledException UnhandledExceptionFunc

	peerExtenders map[protocol.PeerLUID]map[protocol.ExtenderUUID]bool
}

// NewManager creates an empty extender registry.
func NewManager() *Manager {
	return &Manager{
		byID:          make(map[protocol.ExtenderUUID]*entry),
		peerExtenders: make(map[protocol.PeerLUID]map[protocol.ExtenderUUID]bool),
	}
}

// ErrTooManyExtenders is returned once MaxExtenders are already registered.
var ErrTooManyExtenders = fmt.Errorf("extender: too many extenders registered (max %d)", MaxExtenders)

// ErrAlreadyRegistered is returned when uuid is already registered.
var ErrAlreadyRegistered = fmt.Errorf("extender: uuid already registered")

// ErrUnknownExtender is returned when uuid has no registered entry.
var ErrUnknownExtender = fmt.Errorf("extender: unknown uuid")

// AddExtender registers a new extender, runs its OnStartup hook, and
// broadcasts ExtenderUpdate to connected peers. If OnStartup returns an
// error the extender is not registered.
func (m *Manager) AddExtender(uuid protocol.ExtenderUUID, displayName string, callbacks Callbacks) error {
	m.mutex.Lock()
	if len(m.byID) >= MaxExtenders {
		m.mutex.Unlock()
		return ErrTooManyExtenders
	}
	if _, exists := m.byID[uuid]; exists {
		m.mutex.Unlock()
		return ErrAlreadyRegistered
	}
	e := &entry{uuid: uuid, displayName: sanitize.ExtenderDisplayName(displayName), callbacks: callbacks}
	m.byID[uuid] = e
	m.mutex.Unlock()

	if callbacks.OnStartup != nil {
		if err := m.callStartup(e); err != nil {
			m.mutex.Lock()
			delete(m.byID, uuid)
			m.mutex.Unlock()
			return err
		}
	}

	if m.Broadcast != nil {
		m.Broadcast(uuid, true)
	}
	return nil
}

func (m *Manager) callStartup(e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extender: startup panic: %v", r)
		}
	}()
	return e.callbacks.OnStartup()
}

// RemoveExtender runs the extender's OnShutdown hook, unregisters it, and
// broadcasts the retraction.
func (m *Manager) RemoveExtender(uuid protocol.ExtenderUUID) error {
	m.mutex.Lock()
	e, ok := m.byID[uuid]
	if !ok {
		m.mutex.Unlock()
		return ErrUnknownExtender
	}
	delete(m.byID, uuid)
	m.mutex.Unlock()

	m.runShutdown(e)

	if m.Broadcast != nil {
		m.Broadcast(uuid, false)
	}
	return nil
}

func (m *Manager) runShutdown(e *entry) {
	defer func() { recover() }()
	if e.callbacks.OnShutdown != nil {
		e.callbacks.OnShutdown()
	}
}

// Has reports whether uuid is currently registered.
func (m *Manager) Has(uuid protocol.ExtenderUUID) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.byID[uuid]
	return ok
}

// Count returns the number of registered extenders.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.byID)
}

// DisplayName returns the name uuid was registered with, if any.
func (m *Manager) DisplayName(uuid protocol.ExtenderUUID) (string, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	e, ok := m.byID[uuid]
	if !ok {
		return "", false
	}
	return e.displayName, true
}

// RegisteredUUIDs returns every extender UUID currently registered
// locally, the set a node announces to peers during SessionInit.
func (m *Manager) RegisteredUUIDs() []protocol.ExtenderUUID {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	uuids := make([]protocol.ExtenderUUID, 0, len(m.byID))
	for u := range m.byID {
		uuids = append(uuids, u)
	}
	return uuids
}

// NotePeerExtenders records which extender UUIDs peerLUID announced it
// supports (received via ExtenderUpdate/SessionInit), so DeliverMessage can
// enforce "present on both sides" (§4.7).
func (m *Manager) NotePeerExtenders(peerLUID protocol.PeerLUID, uuids []protocol.ExtenderUUID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	set := make(map[protocol.ExtenderUUID]bool, len(uuids))
	for _, u := range uuids {
		set[u] = true
	}
	m.peerExtenders[peerLUID] = set
}

// NotePeerExtender adds a single extender UUID to peerLUID's announced
// set without disturbing the rest, for an incremental ExtenderUpdate
// received after the initial SessionInit announcement.
func (m *Manager) NotePeerExtender(peerLUID protocol.PeerLUID, uuid protocol.ExtenderUUID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	set, ok := m.peerExtenders[peerLUID]
	if !ok {
		set = make(map[protocol.ExtenderUUID]bool)
		m.peerExtenders[peerLUID] = set
	}
	set[uuid] = true
}

// ForgetPeer drops peerLUID's extender-presence record, called when the
// peer disconnects.
func (m *Manager) ForgetPeer(peerLUID protocol.PeerLUID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.peerExtenders, peerLUID)
}

// ForgetPeerExtender drops uuid from peerLUID's extender-presence record,
// called on an inbound ExtenderUpdate retraction rather than a full
// disconnect.
func (m *Manager) ForgetPeerExtender(peerLUID protocol.PeerLUID, uuid protocol.ExtenderUUID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.peerExtenders[peerLUID], uuid)
}

// PeerHasExtender reports whether peerLUID has announced support for uuid.
func (m *Manager) PeerHasExtender(peerLUID protocol.PeerLUID, uuid protocol.ExtenderUUID) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.peerExtenders[peerLUID][uuid]
}

// DeliverMessage routes an inbound ExtenderCommunication payload to uuid's
// OnMessage callback, but only if uuid is registered locally AND peerLUID
// has announced support for it (§4.7's "present on both sides" rule). A
// callback panic shuts the extender down automatically and is reported via
// OnUnhandledException; other extenders are unaffected.
func (m *Manager) DeliverMessage(peerLUID protocol.PeerLUID, uuid protocol.ExtenderUUID, payload []byte) error {
	if !m.PeerHasExtender(peerLUID, uuid) {
		return nil
	}

	m.mutex.RLock()
	e, ok := m.byID[uuid]
	m.mutex.RUnlock()
	if !ok || e.callbacks.OnMessage == nil {
		return nil
	}

	if err := m.callProtected(e, func() error { return e.callbacks.OnMessage(peerLUID, payload) }); err != nil {
		return err
	}
	return nil
}

// DispatchPeerEvent notifies every registered extender of a peer lifecycle
// transition.
func (m *Manager) DispatchPeerEvent(peerLUID protocol.PeerLUID, event PeerEvent) {
	m.mutex.RLock()
	entries := make([]*entry, 0, len(m.byID))
	for _, e := range m.byID {
		entries = append(entries, e)
	}
	m.mutex.RUnlock()

	for _, e := range entries {
		if e.callbacks.OnPeerEvent == nil {
			continue
		}
		_ = m.callProtected(e, func() error {
			e.callbacks.OnPeerEvent(peerLUID, event)
			return nil
		})
	}
}

// callProtected runs fn, recovering a panic into a shutdown of e rather
// than letting it escape and take down the process.
func (m *Manager) callProtected(e *entry, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.shutdownOnException(e, r)
			err = fmt.Errorf("extender: %s: unhandled exception: %v", e.uuid, r)
		}
	}()
	return fn()
}

func (m *Manager) shutdownOnException(e *entry, recovered any) {
	m.mutex.Lock()
	if _, ok := m.byID[e.uuid]; ok {
		delete(m.byID, e.uuid)
	}
	m.mutex.Unlock()

	if m.OnUnhandledException != nil {
		m.OnUnhandledException(e.uuid, recovered)
	}
	m.runShutdown(e)
	if m.Broadcast != nil {
		m.Broadcast(e.uuid, false)
	}
}
