/*
File Name:  Dispatch.go

The per-session read loop (§5): pull bytes off the connection, find frame
boundaries with protocol.Peek, decode and decrypt each one, enforce the
replay counter, and route by MessageType to the right handshake phase or to
the Ready-state message handler. Shaped after the teacher's Connection.go
read-loop-plus-dispatch-table pattern, generalized from UDP packet handling
to a single reliable stream.
*/

package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/QuantumGateNet/core/protocol"
)

// Handler processes one fully decoded inner message while the session is
// Ready. It is the extender/application hook point (§4.7).
type Handler func(s *Session, msg protocol.Message) error

// Dispatcher drives one Session's read loop and routes messages.
type Dispatcher struct {
	Session         *Session
	Handler         Handler
	KeyUpdatePolicy KeyUpdatePolicy
	NoisePolicy     NoisePolicy
	MaxHandshake    time.Duration

	buf []byte
}

// NewDispatcher wires up a Dispatcher for s.
func NewDispatcher(s *Session, handler Handler) *Dispatcher {
	return &Dispatcher{
		Session:      s,
		Handler:      handler,
		MaxHandshake: DefaultMaxHandshakeDuration,
		buf:          make([]byte, 0, 4096),
	}
}

// Run reads frames from the session's connection until ctx is cancelled, an
// unrecoverable error occurs, or the session disconnects. It is the
// long-lived goroutine each accepted or dialed connection runs under.
func (d *Dispatcher) Run(ctx context.Context) error {
	read := make([]byte, 64*1024)

	for {
		select {
		case <-ctx.Done():
			d.Session.Disconnect(CauseLocalClose)
			return ctx.Err()
		default:
		}

		if d.Session.HandshakeExpired(d.MaxHandshake) {
			d.Session.Disconnect(CauseTimedOut)
			return fmt.Errorf("session: handshake exceeded %s", d.MaxHandshake)
		}

		for {
			settings := d.Session.dataSettingsSnapshot()
			result := protocol.Peek(d.buf, 0, settings)
			if result == protocol.PeekTooMuchData {
				d.Session.Disconnect(CauseProtocolError)
				return fmt.Errorf("session: frame exceeds maximum size")
			}
			if result != protocol.PeekCompleteMessage {
				break
			}

			size32 := frameLength(d.buf, settings)
			frame := d.buf[:size32]
			d.buf = d.buf[size32:]

			if err := d.dispatchFrame(frame); err != nil {
				d.Session.Disconnect(CauseProtocolError)
				return err
			}
		}

		n, err := d.Session.Conn.Read(read)
		if n > 0 {
			d.buf = append(d.buf, read[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				d.Session.Disconnect(CauseRemoteClose)
			}
			return err
		}
	}
}

func frameLength(buf []byte, s protocol.DataSizeSettings) int {
	if len(buf) < 4 {
		return len(buf)
	}
	size32 := protocol.DeobfuscateSize(s, beUint32(buf))
	return oHeaderLen + int(size32)
}

func beUint32(buf []byte) uint32 {
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}

// oHeaderLen mirrors protocol's unexported oHeaderSize (4 + 4 + HMACSize).
const oHeaderLen = 4 + 4 + protocol.HMACSize

func (d *Dispatcher) dispatchFrame(frame []byte) error {
	nonceSeed, ok := protocol.NonceSeedFromBuffer(frame, 0)
	if !ok {
		return fmt.Errorf("session: malformed frame header")
	}

	decoded, err := d.Session.DecodeIncoming(frame, nonceSeed)
	if err != nil {
		return fmt.Errorf("session: decode frame: %w", err)
	}

	if err := d.Session.CheckAndAdvanceCounter(decoded.Counter); err != nil {
		return err
	}

	msg, err := protocol.DecodeMessage(decoded.MessageBytes)
	if err != nil {
		return fmt.Errorf("session: decode message: %w", err)
	}

	return d.route(msg)
}

func (d *Dispatcher) route(msg protocol.Message) error {
	switch {
	case msg.Type.IsHandshake():
		return d.routeHandshake(msg)
	case msg.Type.IsKeyUpdate():
		return d.routeKeyUpdate(msg)
	case msg.Type == protocol.MessageTypeNoise:
		return nil
	default:
		if d.Session.State() != StateReady {
			return fmt.Errorf("session: message type %s received before Ready", msg.Type)
		}
		if d.Handler == nil {
			return nil
		}
		return d.Handler(d.Session, msg)
	}
}

func (d *Dispatcher) routeHandshake(msg protocol.Message) error {
	switch msg.Type {
	case protocol.MessageTypeBeginMetaExchange, protocol.MessageTypeEndMetaExchange:
		return d.Session.transitionOrFail(StateHandshake)
	case protocol.MessageTypeBeginSessionInit, protocol.MessageTypeEndSessionInit:
		if !d.Session.transition(StateSessionInit) {
			return fmt.Errorf("session: unexpected SessionInit message in state %s", d.Session.State())
		}
		return nil
	default:
		return nil
	}
}

func (d *Dispatcher) routeKeyUpdate(msg protocol.Message) error {
	if msg.Type == protocol.MessageTypeKeyUpdateReady {
		d.Session.CompleteKeyUpdate()
	}
	return nil
}

// transitionOrFail transitions to 'to', treating an already-current state as
// a harmless repeat (handshake phases exchange Begin/End pairs within the
// same overall State).
func (s *Session) transitionOrFail(to State) error {
	if s.State() == to {
		return nil
	}
	if !s.transition(to) {
		return fmt.Errorf("session: invalid transition from %s to %s", s.State(), to)
	}
	return nil
}

// dataSettingsSnapshot returns the session's negotiated DataSizeSettings.
func (s *Session) dataSettingsSnapshot() protocol.DataSizeSettings {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.dataSettings
}
