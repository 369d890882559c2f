/*
File Name:  Replay.go

Per-session monotonic counter enforcement (§4.3, §8's replay-rejection
property): the receiver tracks the next counter value it expects and
rejects anything else as a replay, wrapping modulo 256 since the inner
header's counter is a single byte.
*/

package session

import "errors"

// ErrReplayedCounter is returned when an inbound frame's counter does not
// match the session's expected next value.
var ErrReplayedCounter = errors.New("session: replayed or out-of-order counter")

// CheckAndAdvanceCounter validates got against the session's expected next
// counter, advancing it on success.
func (s *Session) CheckAndAdvanceCounter(got uint8) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if got != s.recvCounter {
		return ErrReplayedCounter
	}
	s.recvCounter++
	return nil
}
