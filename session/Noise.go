/*
File Name:  Noise.go

Noise traffic emission (§4.5): when a session has been idle, it emits
random-sized, random-content MessageTypeNoise frames so observers cannot
distinguish idle sessions from active ones by traffic volume alone.
*/

package session

import (
	"crypto/rand"
	"time"

	"github.com/QuantumGateNet/core/protocol"
)

// NoisePolicy configures idle-traffic emission.
type NoisePolicy struct {
	Interval           time.Duration
	MaxMessagesPerTick int
	MinMessageSize     int
	MaxMessageSize     int
}

// ShouldEmitNoise reports whether the session has been idle long enough to
// warrant emitting noise traffic.
func (s *Session) ShouldEmitNoise(policy NoisePolicy, now time.Time) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if policy.Interval <= 0 {
		return false
	}
	return now.Sub(s.lastSendTime) >= policy.Interval
}

// BuildNoiseMessage constructs one Noise message with a uniformly random
// size in [MinMessageSize, MaxMessageSize] and random content.
func BuildNoiseMessage(policy NoisePolicy) (protocol.Message, error) {
	size := policy.MinMessageSize
	span := policy.MaxMessageSize - policy.MinMessageSize
	if span > 0 {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return protocol.Message{}, err
		}
		r := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		size += int(r % uint32(span+1))
	}

	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		return protocol.Message{}, err
	}

	return protocol.Message{Type: protocol.MessageTypeNoise, Payload: payload}, nil
}

// noteSend records that a frame was just sent, resetting the idle clock.
func (s *Session) noteSend(now time.Time) {
	s.mutex.Lock()
	s.lastSendTime = now
	s.mutex.Unlock()
}
