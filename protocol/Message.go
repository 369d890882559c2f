/*
File Name:  Message.go

The inner Message frame (§4.4), carried inside a MessageTransport's AEAD
plaintext. Encoding/decoding here never touches key material; the outer
MessageTransport codec is the only layer that encrypts.
*/

package protocol

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// MaxPlaintext is the largest serialized inner Message that may be carried
// by a single MessageTransport frame (§4.3).
const MaxPlaintext = 1_048_021

// compressionThreshold is the minimum payload size, in bytes, at which
// compression is attempted (§4.4).
const compressionThreshold = 128

const (
	sizeBits = 21
	sizeMask = 1<<sizeBits - 1
	typeBits = 11
	_        = typeBits // documents the split; typeMask is derived from MessageType width
)

// Flags holds the inner header's 8 flag bits.
type Flags uint8

const (
	FlagPartialBegin Flags = 1 << iota
	FlagPartial
	FlagPartialEnd
	FlagCompressed
	// flagCompressedZstd is a reserved bit repurposed to disambiguate which
	// compression algorithm produced a Compressed payload: 0 = DEFLATE,
	// 1 = Zstandard.
	flagCompressedZstd
)

// Partial reports whether any fragmentation flag is set.
func (f Flags) Partial() bool {
	return f&(FlagPartialBegin|FlagPartial|FlagPartialEnd) != 0
}

// CompressionAlgo identifies a payload compression scheme.
type CompressionAlgo uint8

const (
	CompressionDeflate CompressionAlgo = iota
	CompressionZstandard
)

// Message is the decoded inner frame.
type Message struct {
	Type         MessageType
	Flags        Flags
	ExtenderUUID ExtenderUUID
	Payload      []byte
}

var (
	ErrPayloadTooLarge    = errors.New("protocol: message payload exceeds max plaintext")
	ErrUnknownMessageType = errors.New("protocol: unknown message type")
	ErrTruncated          = errors.New("protocol: truncated message")
	ErrDecompressBomb     = errors.New("protocol: decompressed payload exceeds max plaintext")
)

var zstdEncoder, _ = zstd.NewWriter(nil)
var zstdDecoder, _ = zstd.NewReader(nil)

func compressPayload(algo CompressionAlgo, payload []byte) []byte {
	switch algo {
	case CompressionZstandard:
		return zstdEncoder.EncodeAll(payload, nil)
	default:
		var buf bytes.Buffer
		w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		_, _ = w.Write(payload)
		_ = w.Close()
		return buf.Bytes()
	}
}

func decompressPayload(algo CompressionAlgo, payload []byte, cap int) ([]byte, error) {
	if algo == CompressionZstandard {
		out, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("protocol: zstd decompress: %w", err)
		}
		if len(out) > cap {
			return nil, ErrDecompressBomb
		}
		return out, nil
	}

	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()
	limited := io.LimitReader(r, int64(cap)+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("protocol: deflate decompress: %w", err)
	}
	if len(out) > cap {
		return nil, ErrDecompressBomb
	}
	return out, nil
}

// EncodeMessage serializes msg, compressing the payload with algo when
// §4.4's rules allow and it actually helps.
func EncodeMessage(msg Message, algo CompressionAlgo) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, ErrUnknownMessageType
	}
	if len(msg.Payload) > MaxPlaintext {
		return nil, ErrPayloadTooLarge
	}

	payload := msg.Payload
	flags := msg.Flags &^ (FlagCompressed | flagCompressedZstd)

	if !msg.Type.NeverCompressed() && len(payload) >= compressionThreshold {
		compressed := compressPayload(algo, payload)
		if len(compressed) < len(payload) {
			payload = compressed
			flags |= FlagCompressed
			if algo == CompressionZstandard {
				flags |= flagCompressedZstd
			}
		}
	}

	extra := 0
	if msg.Type.HasExtenderUUID() {
		extra = 16
	}

	if len(payload) > sizeMask {
		return nil, ErrPayloadTooLarge
	}
	total := 4 + 1 + extra + len(payload)
	if total > MaxPlaintext {
		return nil, ErrPayloadTooLarge
	}

	out := make([]byte, total)
	typeAndSize := uint32(len(payload))&sizeMask | uint32(msg.Type)<<sizeBits
	out[0] = byte(typeAndSize)
	out[1] = byte(typeAndSize >> 8)
	out[2] = byte(typeAndSize >> 16)
	out[3] = byte(typeAndSize >> 24)
	out[4] = byte(flags)

	offset := 5
	if extra == 16 {
		id := msg.ExtenderUUID.Bytes()
		copy(out[offset:], id[:])
		offset += 16
	}
	copy(out[offset:], payload)

	return out, nil
}

// DecodeMessage parses a serialized inner Message, decompressing its
// payload if the Compressed flag is set.
func DecodeMessage(buf []byte) (Message, error) {
	if len(buf) < 5 {
		return Message{}, ErrTruncated
	}

	typeAndSize := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	size := int(typeAndSize & sizeMask)
	msgType := MessageType(typeAndSize >> sizeBits)
	if !msgType.Valid() {
		return Message{}, ErrUnknownMessageType
	}
	flags := Flags(buf[4])

	offset := 5
	var extUUID ExtenderUUID
	if msgType.HasExtenderUUID() {
		if len(buf) < offset+16 {
			return Message{}, ErrTruncated
		}
		var raw [16]byte
		copy(raw[:], buf[offset:offset+16])
		extUUID = ExtenderUUID{id: raw}
		offset += 16
	}

	if len(buf) < offset+size {
		return Message{}, ErrTruncated
	}
	payload := buf[offset : offset+size]

	if flags&FlagCompressed != 0 {
		algo := CompressionDeflate
		if flags&flagCompressedZstd != 0 {
			algo = CompressionZstandard
		}
		decompressed, err := decompressPayload(algo, payload, MaxPlaintext)
		if err != nil {
			return Message{}, err
		}
		payload = decompressed
	}

	return Message{
		Type:         msgType,
		Flags:        flags &^ flagCompressedZstd,
		ExtenderUUID: extUUID,
		Payload:      payload,
	}, nil
}
