/*
File Name:  Relay.go

Wire payloads for the four relay control message types (§4.6): RelayCreate
opens one more hop of a circuit, RelayStatus propagates a link's lifecycle
up or down the chain, RelayData carries one forwarded payload, and
RelayDataAck acknowledges it for the sending hop's rate limiter. All four
ride inside a Message's Payload exactly like any other inner message.
*/

package protocol

import (
	"encoding/binary"
	"fmt"
)

// RelayCreatePayload is BeginRelay's wire payload: a request to extend a
// circuit by one more hop toward FinalEndpoint. Origin is carried
// unchanged from the circuit's first hop so every intermediate can apply
// the same subnet-exclusion rules the origin itself used.
type RelayCreatePayload struct {
	Port          uint64
	Hops          uint8
	Origin        string
	FinalEndpoint string
}

// EncodeRelayCreate serializes p.
func EncodeRelayCreate(p RelayCreatePayload) []byte {
	origin := []byte(p.Origin)
	final := []byte(p.FinalEndpoint)
	out := make([]byte, 8+1+2+len(origin)+2+len(final))
	binary.BigEndian.PutUint64(out[0:8], p.Port)
	out[8] = p.Hops
	binary.BigEndian.PutUint16(out[9:11], uint16(len(origin)))
	offset := 11
	copy(out[offset:], origin)
	offset += len(origin)
	binary.BigEndian.PutUint16(out[offset:offset+2], uint16(len(final)))
	offset += 2
	copy(out[offset:], final)
	return out
}

// DecodeRelayCreate parses a RelayCreate payload.
func DecodeRelayCreate(buf []byte) (RelayCreatePayload, error) {
	if len(buf) < 11 {
		return RelayCreatePayload{}, fmt.Errorf("protocol: truncated RelayCreate payload")
	}
	port := binary.BigEndian.Uint64(buf[0:8])
	hops := buf[8]
	originLen := int(binary.BigEndian.Uint16(buf[9:11]))
	offset := 11
	if len(buf) < offset+originLen+2 {
		return RelayCreatePayload{}, fmt.Errorf("protocol: truncated RelayCreate origin")
	}
	origin := string(buf[offset : offset+originLen])
	offset += originLen
	finalLen := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
	offset += 2
	if len(buf) < offset+finalLen {
		return RelayCreatePayload{}, fmt.Errorf("protocol: truncated RelayCreate final endpoint")
	}
	final := string(buf[offset : offset+finalLen])
	return RelayCreatePayload{Port: port, Hops: hops, Origin: origin, FinalEndpoint: final}, nil
}

// RelayStatusPayload carries one §4.6 status update along a circuit.
// Status holds a raw relay.StatusUpdate value; it is kept untyped here so
// this package does not need to import relay.
type RelayStatusPayload struct {
	Port   uint64
	Status uint8
}

// EncodeRelayStatus serializes p.
func EncodeRelayStatus(p RelayStatusPayload) []byte {
	out := make([]byte, 9)
	binary.BigEndian.PutUint64(out[0:8], p.Port)
	out[8] = p.Status
	return out
}

// DecodeRelayStatus parses a RelayStatus payload.
func DecodeRelayStatus(buf []byte) (RelayStatusPayload, error) {
	if len(buf) < 9 {
		return RelayStatusPayload{}, fmt.Errorf("protocol: truncated RelayStatus payload")
	}
	return RelayStatusPayload{Port: binary.BigEndian.Uint64(buf[0:8]), Status: buf[8]}, nil
}

// RelayDataPayload carries one forwarded message along a circuit.
type RelayDataPayload struct {
	Port      uint64
	MessageID uint64
	Data      []byte
}

// EncodeRelayData serializes p.
func EncodeRelayData(p RelayDataPayload) []byte {
	out := make([]byte, 16+len(p.Data))
	binary.BigEndian.PutUint64(out[0:8], p.Port)
	binary.BigEndian.PutUint64(out[8:16], p.MessageID)
	copy(out[16:], p.Data)
	return out
}

// DecodeRelayData parses a RelayData payload.
func DecodeRelayData(buf []byte) (RelayDataPayload, error) {
	if len(buf) < 16 {
		return RelayDataPayload{}, fmt.Errorf("protocol: truncated RelayData payload")
	}
	data := make([]byte, len(buf)-16)
	copy(data, buf[16:])
	return RelayDataPayload{
		Port:      binary.BigEndian.Uint64(buf[0:8]),
		MessageID: binary.BigEndian.Uint64(buf[8:16]),
		Data:      data,
	}, nil
}

// RelayDataAckPayload acknowledges one RelayData message on the link it
// arrived on.
type RelayDataAckPayload struct {
	Port      uint64
	MessageID uint64
}

// EncodeRelayDataAck serializes p.
func EncodeRelayDataAck(p RelayDataAckPayload) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint64(out[0:8], p.Port)
	binary.BigEndian.PutUint64(out[8:16], p.MessageID)
	return out
}

// DecodeRelayDataAck parses a RelayDataAck payload.
func DecodeRelayDataAck(buf []byte) (RelayDataAckPayload, error) {
	if len(buf) < 16 {
		return RelayDataAckPayload{}, fmt.Errorf("protocol: truncated RelayDataAck payload")
	}
	return RelayDataAckPayload{Port: binary.BigEndian.Uint64(buf[0:8]), MessageID: binary.BigEndian.Uint64(buf[8:16])}, nil
}
