/*
File Name:  KeyUpdate.go

Key-update triggers and the overlap-window decrypt-with-fallback logic
(§4.5): a key update starts when bytes processed, elapsed time, or a
randomized interval fires, and during the overlap window incoming frames
are tried against the current key first and the pending key second, using
protocol.ErrHMACMismatch as the signal to retry rather than fail hard.
*/

package session

import (
	"time"

	"github.com/QuantumGateNet/core/protocol"
)

// KeyUpdatePolicy holds the three trigger thresholds from §4.5.
type KeyUpdatePolicy struct {
	RequireAfterProcessedBytes uint64
	MinInterval                time.Duration
	MaxInterval                time.Duration
}

// NeedsKeyUpdate reports whether any of the three §4.5 triggers have fired:
// bytes processed under the current key exceeds the threshold, the elapsed
// time since lastUpdate exceeds MaxInterval, or a precomputed randomized
// deadline within [MinInterval, MaxInterval] has passed.
func NeedsKeyUpdate(policy KeyUpdatePolicy, bytesProcessed uint64, lastUpdate time.Time, randomizedDeadline time.Time, now time.Time) bool {
	if policy.RequireAfterProcessedBytes > 0 && bytesProcessed >= policy.RequireAfterProcessedBytes {
		return true
	}
	if policy.MaxInterval > 0 && now.Sub(lastUpdate) >= policy.MaxInterval {
		return true
	}
	if !randomizedDeadline.IsZero() && !now.Before(randomizedDeadline) {
		return true
	}
	return false
}

// BeginKeyUpdate installs newKey as the pending key, starting the overlap
// window in which both the current and pending key are tried on decrypt.
func (s *Session) BeginKeyUpdate(newKey protocol.SymmetricKeyData) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pendingKey = &newKey
}

// CompleteKeyUpdate cuts over to the pending key on receipt of
// MessageTypeKeyUpdateReady, ending the overlap window.
func (s *Session) CompleteKeyUpdate() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.pendingKey != nil {
		s.recvKey = *s.pendingKey
		s.pendingKey = nil
	}
}

// DecodeIncoming tries to decode frame against the current receive key,
// falling back to the pending key during a key-update overlap window. It
// mirrors §4.3's rule that an HMAC mismatch is retryable, not fatal.
func (s *Session) DecodeIncoming(frame []byte, nonceSeed uint32) (protocol.DecodedFrame, error) {
	s.mutex.RLock()
	current := s.recvKey
	pending := s.pendingKey
	settings := s.dataSettings
	counter := s.recvCounter
	s.mutex.RUnlock()

	nonce := nextNonce(nonceSeed, counter)
	decoded, err := protocol.DecodeFrame(frame, &current, nonce, settings)
	if err == protocol.ErrHMACMismatch && pending != nil {
		decoded, err = protocol.DecodeFrame(frame, pending, nonce, settings)
	}
	if err != nil {
		return protocol.DecodedFrame{}, err
	}

	s.mutex.Lock()
	s.recvKey = current
	s.mutex.Unlock()

	return decoded, nil
}
