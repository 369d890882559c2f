/*
File Name:  Read.go

FrameReader drives the synchronous request/response exchanges the
handshake phases need (§4.5): one complete frame in, one decoded Message
out, with no routing. It shares buf-accumulation and frame-boundary
detection with Dispatch.go's long-lived loop, and hands its leftover
buffered bytes to a Dispatcher once the handshake completes so no bytes
read ahead of a frame boundary are lost at the handoff.
*/

package session

import (
	"fmt"
	"io"

	"github.com/QuantumGateNet/core/protocol"
)

// FrameReader reads and decodes exactly one MessageTransport frame at a
// time from a session's connection, for use during the handshake phases
// before the steady-state Dispatcher loop takes over.
type FrameReader struct {
	Session *Session
	buf     []byte
}

// NewFrameReader creates a reader for s.
func NewFrameReader(s *Session) *FrameReader {
	return &FrameReader{Session: s, buf: make([]byte, 0, 4096)}
}

// Next blocks until one complete frame has been read, decrypted, and
// decoded, returning the inner Message. It does not enforce §4.5's
// phase-ordering rules or route by type; callers drive that themselves.
func (r *FrameReader) Next() (protocol.Message, error) {
	read := make([]byte, 64*1024)

	for {
		settings := r.Session.dataSettingsSnapshot()
		result := protocol.Peek(r.buf, 0, settings)
		if result == protocol.PeekTooMuchData {
			return protocol.Message{}, fmt.Errorf("session: frame exceeds maximum size")
		}
		if result == protocol.PeekCompleteMessage {
			size := frameLength(r.buf, settings)
			frame := r.buf[:size]
			r.buf = r.buf[size:]

			nonceSeed, ok := protocol.NonceSeedFromBuffer(frame, 0)
			if !ok {
				return protocol.Message{}, fmt.Errorf("session: malformed frame header")
			}
			decoded, err := r.Session.DecodeIncoming(frame, nonceSeed)
			if err != nil {
				return protocol.Message{}, fmt.Errorf("session: decode frame: %w", err)
			}
			if err := r.Session.CheckAndAdvanceCounter(decoded.Counter); err != nil {
				return protocol.Message{}, err
			}
			return protocol.DecodeMessage(decoded.MessageBytes)
		}

		n, err := r.Session.Conn.Read(read)
		if n > 0 {
			r.buf = append(r.buf, read[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				r.Session.Disconnect(CauseRemoteClose)
			}
			return protocol.Message{}, err
		}
	}
}

// Leftover returns bytes already read past the last complete frame this
// reader returned, so a Dispatcher taking over afterwards does not lose
// them.
func (r *FrameReader) Leftover() []byte {
	return r.buf
}

// NewDispatcherWithBuffer is like NewDispatcher but seeds the read buffer
// with bytes already pulled off the connection (typically a FrameReader's
// Leftover after a handshake completes).
func NewDispatcherWithBuffer(s *Session, handler Handler, leftover []byte) *Dispatcher {
	d := NewDispatcher(s, handler)
	d.buf = append(d.buf[:0], leftover...)
	return d
}
