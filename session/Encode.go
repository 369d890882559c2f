/*
File Name:  Encode.go

Outbound frame encoding: the send-side mirror of KeyUpdate.go's
DecodeIncoming. A session's outbound nonce seed is fixed for the lifetime
of its current send key (installed, with a fresh seed, only by SetKeys)
and combined with a per-frame counter that wraps
modulo 256, matching Replay.go's receive-side expectation.
*/

package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/QuantumGateNet/core/protocol"
)

// SetKeys installs the initial send/receive keys and resets both
// counters, called once handshake key derivation completes (§4.5
// SessionInit). It also picks a fresh random send nonce seed.
func (s *Session) SetKeys(send, recv protocol.SymmetricKeyData) error {
	var seedBuf [4]byte
	if _, err := rand.Read(seedBuf[:]); err != nil {
		return fmt.Errorf("session: generate nonce seed: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sendKey = send
	s.recvKey = recv
	s.sendCounter = 0
	s.recvCounter = 0
	s.sendNonceSeed = binary.BigEndian.Uint32(seedBuf[:])
	return nil
}

// SetDataSettings installs the negotiated per-session size-obfuscation
// parameters (§4.1 MetaExchange).
func (s *Session) SetDataSettings(ds protocol.DataSizeSettings) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.dataSettings = ds
}

// SetUUIDs records the local and remote peer identities once verified
// during Authentication (§4.5).
func (s *Session) SetUUIDs(local, remote protocol.PeerUUID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LocalUUID = local
	s.RemoteUUID = remote
}

// Transition exposes the state machine to callers outside the package
// (the root package's handshake orchestrator and listener/dialer), which
// must drive Initialized -> Handshake -> SessionInit -> Ready themselves
// since Dispatch.go only reacts to Begin/End message boundaries.
func (s *Session) Transition(to State) bool {
	return s.transition(to)
}

// EncodeOutgoing serializes and encrypts msg into a complete
// MessageTransport frame using the session's current send key, advancing
// the send counter. randomPaddingSize bounds the inner random padding
// (0 disables it); prefixLen adds an unencrypted random prefix of that
// length ahead of the frame, per §4.3's optional prefix.
func (s *Session) EncodeOutgoing(msg protocol.Message, compress protocol.CompressionAlgo, randomPaddingSize uint16, prefixLen uint16) ([]byte, error) {
	encodedMsg, err := protocol.EncodeMessage(msg, compress)
	if err != nil {
		return nil, fmt.Errorf("session: encode message: %w", err)
	}

	s.mutex.Lock()
	key := s.sendKey
	settings := s.dataSettings
	counter := s.sendCounter
	nonce := nextNonce(s.sendNonceSeed, counter)
	s.sendCounter++
	s.mutex.Unlock()

	frame, err := protocol.EncodeFrame(encodedMsg, &key, nonce, settings, counter, randomPaddingSize, 0, prefixLen)
	if err != nil {
		return nil, fmt.Errorf("session: encode frame: %w", err)
	}

	s.mutex.Lock()
	s.sendKey.BytesProcessed = key.BytesProcessed
	s.lastSendTime = time.Now()
	s.mutex.Unlock()

	return frame, nil
}

// Write encodes msg and writes the resulting frame to the underlying
// connection.
func (s *Session) Write(msg protocol.Message, compress protocol.CompressionAlgo) error {
	frame, err := s.EncodeOutgoing(msg, compress, 0, 0)
	if err != nil {
		return err
	}
	_, err = s.Conn.Write(frame)
	return err
}
