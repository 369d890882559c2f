/*
File Name:  Session.go

The Session type binds one reliable byte-stream connection to the
MessageTransport/Message codecs in /protocol and the algorithm/keying
operations in /crypto. Locking follows the teacher's PeerInfo pattern
(Connection.go): a single RWMutex guards mutable fields, with short
critical sections around state reads/writes.
*/

package session

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/QuantumGateNet/core/access"
	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
)

// DefaultMaxHandshakeDuration bounds how long a session may spend in
// Handshake/SessionInit before being force-disconnected (§4.5).
const DefaultMaxHandshakeDuration = 30 * time.Second

// Session is one peer connection's protocol state.
type Session struct {
	mutex sync.RWMutex

	Conn net.Conn
	Role crypto.Role

	state           State
	disconnectCause DisconnectCause

	LUID         protocol.PeerLUID
	LocalUUID    protocol.PeerUUID
	RemoteUUID   protocol.PeerUUID
	dataSettings protocol.DataSizeSettings

	sendKey    protocol.SymmetricKeyData
	recvKey    protocol.SymmetricKeyData
	pendingKey *protocol.SymmetricKeyData // set during a key-update overlap window

	sendCounter   uint8
	recvCounter   uint8
	sendNonceSeed uint32

	requireAuthentication bool
	access                *access.Manager

	handshakeStart    time.Time
	maxHandshakeDelay time.Duration

	lastSendTime time.Time
}

// bootstrapKey is a fixed, non-secret symmetric key used to frame
// MetaExchange/PrimaryKeyExchange/SecondaryKeyExchange messages before a
// real shared secret exists. MessageTransport's wire format always
// assumes a key is present; the handshake carries no confidential data
// before Authentication, so obfuscation/integrity framing over a public
// constant is sufficient until SetKeys installs the derived session keys.
var bootstrapKey = deriveBootstrapKey()

func deriveBootstrapKey() protocol.SymmetricKeyData {
	key := sha256.Sum256([]byte("quantumgate-handshake-bootstrap-key"))
	authKey := sha512.Sum512([]byte("quantumgate-handshake-bootstrap-authkey"))
	var k protocol.SymmetricKeyData
	k.AEAD = protocol.AEADChaCha20Poly1305
	copy(k.Key[:], key[:])
	copy(k.AuthKey[:], authKey[:])
	return k
}

// New creates a session over conn in role, not yet initialized. It is
// pre-keyed with the public bootstrap key so handshake-phase messages can
// use the same MessageTransport framing as application traffic.
func New(conn net.Conn, role crypto.Role, accessManager *access.Manager) *Session {
	var seedBuf [4]byte
	_, _ = rand.Read(seedBuf[:])

	return &Session{
		Conn:          conn,
		Role:          role,
		state:         StateUnknown,
		access:        accessManager,
		sendKey:       bootstrapKey,
		recvKey:       bootstrapKey,
		sendNonceSeed: binary.BigEndian.Uint32(seedBuf[:]),
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

// transition moves the session to 'to', reporting whether it was allowed.
func (s *Session) transition(to State) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !CanTransition(s.state, to) {
		return false
	}
	s.state = to
	if to == StateHandshake {
		s.handshakeStart = time.Now()
	}
	return true
}

// Disconnect moves the session to Disconnecting and records cause, when the
// state machine allows that transition. It neither drains pending output
// nor closes the socket; Finalize closes the socket.
func (s *Session) Disconnect(cause DisconnectCause) {
	s.mutex.Lock()
	if CanTransition(s.state, StateDisconnecting) {
		s.state = StateDisconnecting
		s.disconnectCause = cause
	}
	s.mutex.Unlock()
}

// Finalize completes a pending disconnect, closing the socket.
func (s *Session) Finalize() error {
	s.mutex.Lock()
	s.state = StateDisconnected
	s.mutex.Unlock()
	return s.Conn.Close()
}

// HandshakeExpired reports whether the session has spent longer than max in
// Handshake/SessionInit without reaching Ready.
func (s *Session) HandshakeExpired(max time.Duration) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.state != StateHandshake && s.state != StateSessionInit {
		return false
	}
	return time.Since(s.handshakeStart) > max
}

// Cause reports why the session left Ready/Handshake, if it did.
func (s *Session) Cause() DisconnectCause {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.disconnectCause
}

// nextNonce derives the AEAD nonce for the next outbound frame from the
// session's nonce seed and send counter, per §4.5 "every sent MessageTransport
// carries a monotonically incrementing counter used as the AEAD nonce with
// nonce_seed".
func nextNonce(nonceSeed uint32, counter uint8) [protocol.NonceSize]byte {
	var nonce [protocol.NonceSize]byte
	nonce[0] = byte(nonceSeed >> 24)
	nonce[1] = byte(nonceSeed >> 16)
	nonce[2] = byte(nonceSeed >> 8)
	nonce[3] = byte(nonceSeed)
	nonce[4] = counter
	return nonce
}
