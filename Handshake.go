/*
File Name:  Handshake.go

Drives one session through §4.5's fixed sequence end to end: MetaExchange,
PrimaryKeyExchange, SecondaryKeyExchange, Authentication (when required),
and SessionInit, using session.FrameReader/Session.Write for the raw
request/response traffic and the session package's negotiation/key-exchange
primitives for the actual cryptography. Dispatch.go's Dispatcher only reacts
to Begin/End message boundaries; this is the caller that supplies the
payloads in between, and is what the Listener/Dialer invoke before handing
a Ready session off to a Dispatcher for steady-state traffic.
*/

package core

import (
	"crypto/ed25519"
	"fmt"

	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/session"
)

// localIdentity is what runHandshake needs from StartupParameters/Backend to
// authenticate, independent of how the caller assembled it.
type localIdentity struct {
	UUID   protocol.PeerUUID
	Keys   *KeyPair
	Params session.MetaExchangeParams
}

func metaExchangeParamsFrom(s *StartupParameters) session.MetaExchangeParams {
	return session.MetaExchangeParams{
		ProtocolVersion:       1,
		HashAlgos:             s.SupportedAlgorithms.Hashes,
		AsymmetricAlgos:       append(append([]crypto.Asymmetric{}, s.SupportedAlgorithms.PrimaryAsymmetric...), s.SupportedAlgorithms.SecondaryAsymmetric...),
		SignatureAlgos:        []crypto.Signature{crypto.SignatureEd25519},
		AEADAlgos:             s.SupportedAlgorithms.Symmetric,
		CompressionAlgos:      s.SupportedAlgorithms.Compression,
		RequireAuthentication: s.RequireAuthentication,
	}
}

// runHandshake performs the full handshake over sess.Conn and leaves sess in
// state Ready on success, with send/recv keys, negotiated DataSizeSettings,
// and both peer UUIDs installed. localExtenders is announced during
// SessionInit (§4.5 step 5, §4.7); the remote's announced list is returned
// alongside the frame reader's leftover buffer, which the caller must seed
// a Dispatcher with so no bytes read ahead of the last handshake frame's
// boundary are lost.
func runHandshake(sess *session.Session, local localIdentity, localExtenders []protocol.ExtenderUUID) ([]byte, []protocol.ExtenderUUID, error) {
	reader := session.NewFrameReader(sess)

	if !sess.Transition(session.StateInitialized) {
		return nil, nil, fmt.Errorf("core: session not in a state to begin handshake")
	}
	if !sess.Transition(session.StateHandshake) {
		return nil, nil, fmt.Errorf("core: cannot enter handshake state")
	}

	// --- MetaExchange ---
	if err := sess.Write(protocol.Message{Type: protocol.MessageTypeBeginMetaExchange}, protocol.CompressionDeflate); err != nil {
		return nil, nil, fmt.Errorf("core: send BeginMetaExchange: %w", err)
	}
	if err := sess.Write(protocol.Message{
		Type:    protocol.MessageTypeEndMetaExchange,
		Payload: session.EncodeMetaExchange(local.Params),
	}, protocol.CompressionDeflate); err != nil {
		return nil, nil, fmt.Errorf("core: send EndMetaExchange: %w", err)
	}
	if _, err := expect(reader, protocol.MessageTypeBeginMetaExchange); err != nil {
		return nil, nil, err
	}
	remoteMetaMsg, err := expect(reader, protocol.MessageTypeEndMetaExchange)
	if err != nil {
		return nil, nil, err
	}
	remoteMeta, err := session.DecodeMetaExchange(remoteMetaMsg.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("core: decode remote meta exchange: %w", err)
	}

	negotiated, err := session.Negotiate(local.Params, remoteMeta)
	if err != nil {
		return nil, nil, fmt.Errorf("core: negotiate algorithms: %w", err)
	}

	role := sess.Role

	// --- PrimaryKeyExchange / SecondaryKeyExchange ---
	primarySecret, err := runKeyExchange(sess, reader, negotiated.Primary, role,
		protocol.MessageTypeBeginPrimaryKeyExchange, protocol.MessageTypeEndPrimaryKeyExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("core: primary key exchange: %w", err)
	}
	secondarySecret, err := runKeyExchange(sess, reader, negotiated.Secondary, role,
		protocol.MessageTypeBeginSecondaryKeyExchange, protocol.MessageTypeEndSecondaryKeyExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("core: secondary key exchange: %w", err)
	}

	aliceKey, bobKey, err := session.DeriveSessionKeys(primarySecret, secondarySecret, negotiated.AEAD, negotiated.Hash)
	if err != nil {
		return nil, nil, fmt.Errorf("core: derive session keys: %w", err)
	}
	sendKey, recvKey := session.SessionKeysForRole(sess.Role, aliceKey, bobKey)
	if err := sess.SetKeys(sendKey, recvKey); err != nil {
		return nil, nil, fmt.Errorf("core: install session keys: %w", err)
	}

	transcript := session.AuthenticationTranscript(primarySecret, secondarySecret)

	// --- Authentication ---
	var remoteUUID protocol.PeerUUID
	if negotiated.RequireAuthentication {
		remoteUUID, err = runAuthentication(sess, reader, local, negotiated.Signature, transcript)
		if err != nil {
			return nil, nil, fmt.Errorf("core: authentication: %w", err)
		}
	} else {
		if err := sess.Write(protocol.Message{Type: protocol.MessageTypeBeginAuthentication}, protocol.CompressionDeflate); err != nil {
			return nil, nil, err
		}
		if err := sess.Write(protocol.Message{Type: protocol.MessageTypeEndAuthentication}, protocol.CompressionDeflate); err != nil {
			return nil, nil, err
		}
		if _, err := expect(reader, protocol.MessageTypeBeginAuthentication); err != nil {
			return nil, nil, err
		}
		if _, err := expect(reader, protocol.MessageTypeEndAuthentication); err != nil {
			return nil, nil, err
		}
	}

	// --- SessionInit ---
	if !sess.Transition(session.StateSessionInit) {
		return nil, nil, fmt.Errorf("core: cannot enter session-init state")
	}
	dataSettings := session.ChooseDataSizeSettings(local.UUID, remoteUUID)
	sess.SetDataSettings(dataSettings)
	sess.SetUUIDs(local.UUID, remoteUUID)

	if err := sess.Write(protocol.Message{Type: protocol.MessageTypeBeginSessionInit}, protocol.CompressionDeflate); err != nil {
		return nil, nil, err
	}
	if err := sess.Write(protocol.Message{
		Type:    protocol.MessageTypeEndSessionInit,
		Payload: encodeExtenderUUIDs(localExtenders),
	}, protocol.CompressionDeflate); err != nil {
		return nil, nil, err
	}
	if _, err := expect(reader, protocol.MessageTypeBeginSessionInit); err != nil {
		return nil, nil, err
	}
	remoteSessionInit, err := expect(reader, protocol.MessageTypeEndSessionInit)
	if err != nil {
		return nil, nil, err
	}
	remoteExtenders, err := decodeExtenderUUIDs(remoteSessionInit.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("core: decode remote extender list: %w", err)
	}

	if !sess.Transition(session.StateReady) {
		return nil, nil, fmt.Errorf("core: cannot enter ready state")
	}

	return reader.Leftover(), remoteExtenders, nil
}

// encodeExtenderUUIDs serializes a count-prefixed list of raw 16-byte
// ExtenderUUIDs for the SessionInit payload (§4.5 step 5, §4.7).
func encodeExtenderUUIDs(uuids []protocol.ExtenderUUID) []byte {
	buf := make([]byte, 0, 2+len(uuids)*16)
	buf = append(buf, byte(len(uuids)>>8), byte(len(uuids)))
	for _, u := range uuids {
		b := u.Bytes()
		buf = append(buf, b[:]...)
	}
	return buf
}

// decodeExtenderUUIDs parses the output of encodeExtenderUUIDs.
func decodeExtenderUUIDs(buf []byte) ([]protocol.ExtenderUUID, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("core: extender list truncated")
	}
	count := int(buf[0])<<8 | int(buf[1])
	buf = buf[2:]
	if len(buf) < count*16 {
		return nil, fmt.Errorf("core: extender list truncated")
	}
	out := make([]protocol.ExtenderUUID, count)
	for i := 0; i < count; i++ {
		var raw [16]byte
		copy(raw[:], buf[i*16:(i+1)*16])
		out[i] = protocol.ExtenderUUIDFromBytes(raw)
	}
	return out, nil
}

// expect reads the next frame and requires it to carry messageType,
// rejecting the handshake on any mismatch (§4.5's fixed ordering).
func expect(reader *session.FrameReader, messageType protocol.MessageType) (protocol.Message, error) {
	msg, err := reader.Next()
	if err != nil {
		return protocol.Message{}, fmt.Errorf("core: read %s: %w", messageType, err)
	}
	if msg.Type != messageType {
		return protocol.Message{}, fmt.Errorf("core: expected %s, got %s", messageType, msg.Type)
	}
	return msg, nil
}

// runKeyExchange drives one Begin/End exchange pair for a single negotiated
// Asymmetric algorithm, dispatching to DH or KEM semantics per §4.5 steps
// 2-3, and returns the resulting shared secret.
func runKeyExchange(sess *session.Session, reader *session.FrameReader, algo crypto.Asymmetric, role crypto.Role,
	beginType, endType protocol.MessageType) ([]byte, error) {

	if algo.ExchangeType() == crypto.ExchangeDiffieHellman {
		kd, err := session.StartKeyExchange(algo, role)
		if err != nil {
			return nil, err
		}
		if err := sess.Write(protocol.Message{Type: beginType}, protocol.CompressionDeflate); err != nil {
			return nil, err
		}
		if err := sess.Write(protocol.Message{Type: endType, Payload: kd.LocalPub}, protocol.CompressionDeflate); err != nil {
			return nil, err
		}
		if _, err := expect(reader, beginType); err != nil {
			return nil, err
		}
		remoteEnd, err := expect(reader, endType)
		if err != nil {
			return nil, err
		}
		if err := session.FinishDHExchange(kd, remoteEnd.Payload); err != nil {
			return nil, err
		}
		return kd.SharedSecret, nil
	}

	// Key encapsulation: Alice generates and publishes her public key;
	// Bob encapsulates against it and returns the ciphertext.
	if role == crypto.RoleAlice {
		kd, err := session.StartKeyExchange(algo, role)
		if err != nil {
			return nil, err
		}
		if err := sess.Write(protocol.Message{Type: beginType, Payload: kd.LocalPub}, protocol.CompressionDeflate); err != nil {
			return nil, err
		}
		if err := sess.Write(protocol.Message{Type: endType}, protocol.CompressionDeflate); err != nil {
			return nil, err
		}
		if _, err := expect(reader, beginType); err != nil {
			return nil, err
		}
		end, err := expect(reader, endType)
		if err != nil {
			return nil, err
		}
		if err := session.FinishKEMExchange(kd, end.Payload); err != nil {
			return nil, err
		}
		return kd.SharedSecret, nil
	}

	if err := sess.Write(protocol.Message{Type: beginType}, protocol.CompressionDeflate); err != nil {
		return nil, err
	}
	remoteBegin, err := expect(reader, beginType)
	if err != nil {
		return nil, err
	}
	kd, err := session.CompleteKEMExchange(algo, remoteBegin.Payload)
	if err != nil {
		return nil, err
	}
	if err := sess.Write(protocol.Message{Type: endType, Payload: kd.EncryptedSharedSecret}, protocol.CompressionDeflate); err != nil {
		return nil, err
	}
	if _, err := expect(reader, endType); err != nil {
		return nil, err
	}
	return kd.SharedSecret, nil
}

// runAuthentication exchanges the local public key and a transcript
// signature (§4.5 step 4), verifies the remote's, and returns the remote
// peer's self-certified UUID. A peer's UUID is derived from its public key
// (Peer ID.go), so the public key itself — not the UUID — is what travels
// on the wire; the receiver derives the UUID and checks the signature in
// one step via session.VerifyTranscript.
func runAuthentication(sess *session.Session, reader *session.FrameReader, local localIdentity,
	sigAlgo crypto.Signature, transcript []byte) (protocol.PeerUUID, error) {

	if local.Keys == nil {
		return protocol.PeerUUID{}, fmt.Errorf("core: authentication required but no local keys configured")
	}

	sig, err := session.SignTranscript(transcript, sigAlgo, local.Keys.Private)
	if err != nil {
		return protocol.PeerUUID{}, err
	}

	payload := append(append([]byte{}, local.Keys.Public...), sig...)
	if err := sess.Write(protocol.Message{Type: protocol.MessageTypeBeginAuthentication}, protocol.CompressionDeflate); err != nil {
		return protocol.PeerUUID{}, err
	}
	if err := sess.Write(protocol.Message{Type: protocol.MessageTypeEndAuthentication, Payload: payload}, protocol.CompressionDeflate); err != nil {
		return protocol.PeerUUID{}, err
	}

	if _, err := expect(reader, protocol.MessageTypeBeginAuthentication); err != nil {
		return protocol.PeerUUID{}, err
	}
	remoteEnd, err := expect(reader, protocol.MessageTypeEndAuthentication)
	if err != nil {
		return protocol.PeerUUID{}, err
	}
	if len(remoteEnd.Payload) <= ed25519.PublicKeySize {
		return protocol.PeerUUID{}, fmt.Errorf("core: authentication payload truncated")
	}
	remotePub := ed25519.PublicKey(remoteEnd.Payload[:ed25519.PublicKeySize])
	remoteSig := remoteEnd.Payload[ed25519.PublicKeySize:]
	remoteUUID := protocol.NewPeerUUIDEd25519(remotePub)

	ok, err := session.VerifyTranscript(transcript, remoteSig, sigAlgo, remoteUUID, remotePub)
	if err != nil {
		return protocol.PeerUUID{}, fmt.Errorf("core: verify remote transcript: %w", err)
	}
	if !ok {
		return protocol.PeerUUID{}, fmt.Errorf("core: remote transcript signature invalid")
	}

	return remoteUUID, nil
}
