/*
File Name:  Handshake.go

MetaExchange, PrimaryKeyExchange, SecondaryKeyExchange, and Authentication
(§4.5, steps 1-4). There is no teacher handshake to adapt (Peernet
authenticates every packet individually instead of negotiating a session),
so phase sequencing follows spec §4.5 directly; the algorithm-intersection
rule itself reuses crypto.HighestCommon exactly as MetaExchange negotiation
is described in §4.1.
*/

package session

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
)

// ErrNoCommonAlgorithm is returned when two peers' sorted algorithm lists
// share no value for a required vocabulary (§4.1).
var ErrNoCommonAlgorithm = errors.New("session: no common algorithm")

// MetaExchangeParams is what each side sends during MetaExchange: the
// protocol version, every algorithm list it supports (ascending), and its
// authentication requirement.
type MetaExchangeParams struct {
	ProtocolVersion       uint16
	HashAlgos             []crypto.Hash
	AsymmetricAlgos       []crypto.Asymmetric
	SignatureAlgos        []crypto.Signature
	AEADAlgos             []crypto.AEAD
	CompressionAlgos      []crypto.Compression
	RequireAuthentication bool
}

// EncodeMetaExchange serializes p as a length-prefixed list of byte lists.
func EncodeMetaExchange(p MetaExchangeParams) []byte {
	buf := make([]byte, 0, 64)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], p.ProtocolVersion)
	buf = append(buf, u16[:]...)

	appendList := func(vals []byte) {
		buf = append(buf, byte(len(vals)))
		buf = append(buf, vals...)
	}
	appendList(hashesToBytes(p.HashAlgos))
	appendList(asymmetricToBytes(p.AsymmetricAlgos))
	appendList(signaturesToBytes(p.SignatureAlgos))
	appendList(aeadsToBytes(p.AEADAlgos))
	appendList(compressionsToBytes(p.CompressionAlgos))

	if p.RequireAuthentication {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeMetaExchange parses the output of EncodeMetaExchange.
func DecodeMetaExchange(buf []byte) (MetaExchangeParams, error) {
	var p MetaExchangeParams
	if len(buf) < 2 {
		return p, fmt.Errorf("session: meta exchange truncated")
	}
	p.ProtocolVersion = binary.BigEndian.Uint16(buf[0:2])
	off := 2

	readList := func() ([]byte, error) {
		if off >= len(buf) {
			return nil, fmt.Errorf("session: meta exchange truncated")
		}
		n := int(buf[off])
		off++
		if off+n > len(buf) {
			return nil, fmt.Errorf("session: meta exchange truncated")
		}
		vals := buf[off : off+n]
		off += n
		return vals, nil
	}

	hashes, err := readList()
	if err != nil {
		return p, err
	}
	asym, err := readList()
	if err != nil {
		return p, err
	}
	sigs, err := readList()
	if err != nil {
		return p, err
	}
	aeads, err := readList()
	if err != nil {
		return p, err
	}
	comps, err := readList()
	if err != nil {
		return p, err
	}
	if off >= len(buf) {
		return p, fmt.Errorf("session: meta exchange truncated")
	}

	p.HashAlgos = bytesToHashes(hashes)
	p.AsymmetricAlgos = bytesToAsymmetric(asym)
	p.SignatureAlgos = bytesToSignatures(sigs)
	p.AEADAlgos = bytesToAEADs(aeads)
	p.CompressionAlgos = bytesToCompressions(comps)
	p.RequireAuthentication = buf[off] != 0

	return p, nil
}

func hashesToBytes(v []crypto.Hash) []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = byte(x)
	}
	return out
}
func bytesToHashes(v []byte) []crypto.Hash {
	out := make([]crypto.Hash, len(v))
	for i, x := range v {
		out[i] = crypto.Hash(x)
	}
	return out
}
func asymmetricToBytes(v []crypto.Asymmetric) []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = byte(x)
	}
	return out
}
func bytesToAsymmetric(v []byte) []crypto.Asymmetric {
	out := make([]crypto.Asymmetric, len(v))
	for i, x := range v {
		out[i] = crypto.Asymmetric(x)
	}
	return out
}
func signaturesToBytes(v []crypto.Signature) []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = byte(x)
	}
	return out
}
func bytesToSignatures(v []byte) []crypto.Signature {
	out := make([]crypto.Signature, len(v))
	for i, x := range v {
		out[i] = crypto.Signature(x)
	}
	return out
}
func aeadsToBytes(v []crypto.AEAD) []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = byte(x)
	}
	return out
}
func bytesToAEADs(v []byte) []crypto.AEAD {
	out := make([]crypto.AEAD, len(v))
	for i, x := range v {
		out[i] = crypto.AEAD(x)
	}
	return out
}
func compressionsToBytes(v []crypto.Compression) []byte {
	out := make([]byte, len(v))
	for i, x := range v {
		out[i] = byte(x)
	}
	return out
}
func bytesToCompressions(v []byte) []crypto.Compression {
	out := make([]crypto.Compression, len(v))
	for i, x := range v {
		out[i] = crypto.Compression(x)
	}
	return out
}

// NegotiatedAlgorithms is the result of intersecting two MetaExchangeParams.
type NegotiatedAlgorithms struct {
	Hash                  crypto.Hash
	Primary               crypto.Asymmetric
	Secondary             crypto.Asymmetric
	Signature             crypto.Signature
	AEAD                  crypto.AEAD
	Compression           crypto.Compression
	RequireAuthentication bool
}

// Negotiate picks the highest common value in each vocabulary (§4.1). The
// primary and secondary key-exchange algorithms must differ so the
// handshake's defense-in-depth property holds; when no second common
// Asymmetric value exists, Negotiate returns ErrNoCommonAlgorithm rather
// than reusing Primary.
func Negotiate(local, remote MetaExchangeParams) (NegotiatedAlgorithms, error) {
	var n NegotiatedAlgorithms

	hash, ok := crypto.HighestCommon(local.HashAlgos, remote.HashAlgos)
	if !ok {
		return n, fmt.Errorf("session: hash: %w", ErrNoCommonAlgorithm)
	}
	sig, ok := crypto.HighestCommon(local.SignatureAlgos, remote.SignatureAlgos)
	if !ok {
		return n, fmt.Errorf("session: signature: %w", ErrNoCommonAlgorithm)
	}
	aead, ok := crypto.HighestCommon(local.AEADAlgos, remote.AEADAlgos)
	if !ok {
		return n, fmt.Errorf("session: aead: %w", ErrNoCommonAlgorithm)
	}
	comp, ok := crypto.HighestCommon(local.CompressionAlgos, remote.CompressionAlgos)
	if !ok {
		return n, fmt.Errorf("session: compression: %w", ErrNoCommonAlgorithm)
	}

	primary, ok := crypto.HighestCommon(local.AsymmetricAlgos, remote.AsymmetricAlgos)
	if !ok {
		return n, fmt.Errorf("session: primary exchange: %w", ErrNoCommonAlgorithm)
	}

	remaining := excludeAlgorithm(local.AsymmetricAlgos, primary)
	remoteRemaining := excludeAlgorithm(remote.AsymmetricAlgos, primary)
	secondary, ok := crypto.HighestCommon(remaining, remoteRemaining)
	if !ok {
		return n, fmt.Errorf("session: secondary exchange: %w", ErrNoCommonAlgorithm)
	}

	n = NegotiatedAlgorithms{
		Hash:                  hash,
		Primary:               primary,
		Secondary:             secondary,
		Signature:             sig,
		AEAD:                  aead,
		Compression:           comp,
		RequireAuthentication: local.RequireAuthentication || remote.RequireAuthentication,
	}
	return n, nil
}

func excludeAlgorithm(list []crypto.Asymmetric, exclude crypto.Asymmetric) []crypto.Asymmetric {
	out := make([]crypto.Asymmetric, 0, len(list))
	for _, v := range list {
		if v != exclude {
			out = append(out, v)
		}
	}
	return out
}

// ChooseDataSizeSettings derives the per-session obfuscation settings
// (§4.3). Per §4.5 step 1, they are chosen by the side whose UUID compares
// lower, by hashing that UUID's bytes into an offset and XOR mask so both
// sides compute the identical value deterministically.
func ChooseDataSizeSettings(a, b protocol.PeerUUID) protocol.DataSizeSettings {
	lower := a
	if bytesCompare(b.Bytes(), a.Bytes()) < 0 {
		lower = b
	}
	digest, err := crypto.HashBuf(append([]byte("quantumgate-datasize"), lowerBytes(lower)...), crypto.HashBLAKE2S256)
	if err != nil || len(digest) < 5 {
		return protocol.DataSizeSettings{}
	}
	offset := digest[0] % (protocol.MaxDataSizeOffset + 1)
	mask := binary.BigEndian.Uint32(digest[1:5])
	return protocol.DataSizeSettings{Offset: offset, XorMask: mask}
}

func lowerBytes(u protocol.PeerUUID) []byte {
	b := u.Bytes()
	return b[:]
}

func bytesCompare(a, b [16]byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// AuthenticationTranscript hashes the handshake transcript ahead of signing
// (§4.5 step 4), matching the teacher's hashData/blake3.Sum256 pairing used
// ahead of btcec.SignCompact.
func AuthenticationTranscript(parts ...[]byte) []byte {
	total := make([]byte, 0)
	for _, p := range parts {
		total = append(total, p...)
	}
	return crypto.HashTranscript(total)
}

// SignTranscript signs transcript using the Ed25519 family.
func SignTranscript(transcript []byte, algo crypto.Signature, priv []byte) ([]byte, error) {
	return crypto.Sign(transcript, algo, priv)
}

// VerifyTranscript verifies a handshake transcript signature against pub,
// self-certified via puuid, refusing verification if pub does not actually
// derive puuid.
func VerifyTranscript(transcript, sig []byte, algo crypto.Signature, puuid protocol.PeerUUID, pub ed25519.PublicKey) (bool, error) {
	if algo == crypto.SignatureEd25519 && !puuid.VerifyEd25519(pub) {
		return false, fmt.Errorf("session: public key does not self-certify peer uuid %s", puuid)
	}
	return crypto.Verify(transcript, algo, pub, sig)
}

// StartKeyExchange generates kd's local keypair for algo (§4.5 steps 2-3,
// PrimaryKeyExchange/SecondaryKeyExchange). For Diffie-Hellman algorithms
// both sides call this and exchange LocalPub. For key encapsulation, only
// Alice calls this; Bob instead encapsulates directly against Alice's
// public key with CompleteKEMExchange.
func StartKeyExchange(algo crypto.Asymmetric, role crypto.Role) (*crypto.AsymmetricKeyData, error) {
	kd, err := crypto.GenerateKeypair(algo)
	if err != nil {
		return nil, err
	}
	kd.Role = role
	return kd, nil
}

// FinishDHExchange derives the shared secret for a Diffie-Hellman kd once
// peerPub has arrived.
func FinishDHExchange(kd *crypto.AsymmetricKeyData, peerPub []byte) error {
	kd.PeerPub = peerPub
	return kd.DeriveSharedSecret()
}

// CompleteKEMExchange is Bob's side of a key-encapsulation exchange:
// encapsulate directly against Alice's public key, filling in both the
// ciphertext to send back and the shared secret.
func CompleteKEMExchange(algo crypto.Asymmetric, alicePub []byte) (*crypto.AsymmetricKeyData, error) {
	kd := &crypto.AsymmetricKeyData{Algorithm: algo, Role: crypto.RoleBob, PeerPub: alicePub}
	if err := kd.DeriveSharedSecret(); err != nil {
		return nil, err
	}
	return kd, nil
}

// FinishKEMExchange is Alice's side: decapsulate Bob's returned ciphertext
// using the keypair generated by StartKeyExchange.
func FinishKEMExchange(kd *crypto.AsymmetricKeyData, ciphertext []byte) error {
	kd.EncryptedSharedSecret = ciphertext
	return kd.DeriveSharedSecret()
}

// DeriveSessionKeys combines the primary and secondary shared secrets into
// the session's send/receive symmetric keys (§4.1's two-stage key schedule:
// primary and secondary exchanges are concatenated before HKDF so a break of
// either algorithm alone does not expose the session).
func DeriveSessionKeys(primarySecret, secondarySecret []byte, aead crypto.AEAD, hash crypto.Hash) (alice, bob protocol.SymmetricKeyData, err error) {
	combined := make([]byte, 0, len(primarySecret)+len(secondarySecret))
	combined = append(combined, primarySecret...)
	combined = append(combined, secondarySecret...)
	return crypto.DeriveSymmetricKeys(combined, aead, aead, hash)
}

// SessionKeysForRole picks (sendKey, recvKey) out of the alice/bob pair
// DeriveSessionKeys produced, according to which side the caller is.
func SessionKeysForRole(role crypto.Role, alice, bob protocol.SymmetricKeyData) (sendKey, recvKey protocol.SymmetricKeyData) {
	if role == crypto.RoleAlice {
		return alice, bob
	}
	return bob, alice
}
