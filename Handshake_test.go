package core

import (
	"crypto/ed25519"
	"net"
	"testing"

	"github.com/QuantumGateNet/core/access"
	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/session"
)

func testAlgorithmSet() AlgorithmSet {
	return AlgorithmSet{
		Hashes:              []crypto.Hash{crypto.HashBLAKE2S256},
		PrimaryAsymmetric:   []crypto.Asymmetric{crypto.AsymmetricECDHX25519},
		SecondaryAsymmetric: []crypto.Asymmetric{crypto.AsymmetricECDHX448},
		Symmetric:           []crypto.AEAD{crypto.AEADChaCha20Poly1305},
		Compression:         []crypto.Compression{crypto.CompressionDeflate},
	}
}

func TestRunHandshakeWithoutAuthenticationReachesReady(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	accessMgr := access.NewManager(0, 0, 0, 0, 0, access.PeerAccessAllowed, false)
	clientSess := session.New(clientConn, crypto.RoleAlice, accessMgr)
	serverSess := session.New(serverConn, crypto.RoleBob, accessMgr)

	algos := testAlgorithmSet()
	clientParams := session.MetaExchangeParams{
		ProtocolVersion:  1,
		HashAlgos:        algos.Hashes,
		AsymmetricAlgos:  append(append([]crypto.Asymmetric{}, algos.PrimaryAsymmetric...), algos.SecondaryAsymmetric...),
		SignatureAlgos:   []crypto.Signature{crypto.SignatureEd25519},
		AEADAlgos:        algos.Symmetric,
		CompressionAlgos: algos.Compression,
	}
	serverParams := clientParams

	clientUUID := protocol.NewPeerUUIDEd25519(make(ed25519.PublicKey, ed25519.PublicKeySize))
	serverUUID := protocol.NewPeerUUIDEd25519(make(ed25519.PublicKey, ed25519.PublicKeySize))

	type result struct {
		leftover  []byte
		extenders []protocol.ExtenderUUID
		err       error
	}
	clientDone := make(chan result, 1)
	serverDone := make(chan result, 1)

	go func() {
		leftover, extenders, err := runHandshake(clientSess, localIdentity{UUID: clientUUID, Params: clientParams}, nil)
		clientDone <- result{leftover, extenders, err}
	}()
	go func() {
		leftover, extenders, err := runHandshake(serverSess, localIdentity{UUID: serverUUID, Params: serverParams}, nil)
		serverDone <- result{leftover, extenders, err}
	}()

	clientResult := <-clientDone
	serverResult := <-serverDone

	if clientResult.err != nil {
		t.Fatalf("client handshake: %v", clientResult.err)
	}
	if serverResult.err != nil {
		t.Fatalf("server handshake: %v", serverResult.err)
	}
	if clientSess.State() != session.StateReady {
		t.Fatalf("expected client state Ready, got %s", clientSess.State())
	}
	if serverSess.State() != session.StateReady {
		t.Fatalf("expected server state Ready, got %s", serverSess.State())
	}
}

func TestRunHandshakeWithAuthenticationVerifiesRemoteUUID(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientPriv, clientPub, err := crypto.GenerateSigningKey(crypto.SignatureEd25519)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	serverPriv, serverPub, err := crypto.GenerateSigningKey(crypto.SignatureEd25519)
	if err != nil {
		t.Fatalf("generate server key: %v", err)
	}
	clientKeys := &KeyPair{Private: ed25519.PrivateKey(clientPriv), Public: ed25519.PublicKey(clientPub)}
	serverKeys := &KeyPair{Private: ed25519.PrivateKey(serverPriv), Public: ed25519.PublicKey(serverPub)}
	clientUUID := protocol.NewPeerUUIDEd25519(clientKeys.Public)
	serverUUID := protocol.NewPeerUUIDEd25519(serverKeys.Public)

	accessMgr := access.NewManager(0, 0, 0, 0, 0, access.PeerAccessAllowed, true)
	clientSess := session.New(clientConn, crypto.RoleAlice, accessMgr)
	serverSess := session.New(serverConn, crypto.RoleBob, accessMgr)

	algos := testAlgorithmSet()
	params := session.MetaExchangeParams{
		ProtocolVersion:       1,
		HashAlgos:             algos.Hashes,
		AsymmetricAlgos:       append(append([]crypto.Asymmetric{}, algos.PrimaryAsymmetric...), algos.SecondaryAsymmetric...),
		SignatureAlgos:        []crypto.Signature{crypto.SignatureEd25519},
		AEADAlgos:             algos.Symmetric,
		CompressionAlgos:      algos.Compression,
		RequireAuthentication: true,
	}

	type result struct {
		leftover  []byte
		extenders []protocol.ExtenderUUID
		err       error
	}
	clientDone := make(chan result, 1)
	serverDone := make(chan result, 1)

	clientExtenders := []protocol.ExtenderUUID{protocol.NewExtenderUUID(clientKeys.Public, "echo")}

	go func() {
		leftover, extenders, err := runHandshake(clientSess, localIdentity{UUID: clientUUID, Keys: clientKeys, Params: params}, clientExtenders)
		clientDone <- result{leftover, extenders, err}
	}()
	go func() {
		leftover, extenders, err := runHandshake(serverSess, localIdentity{UUID: serverUUID, Keys: serverKeys, Params: params}, nil)
		serverDone <- result{leftover, extenders, err}
	}()

	clientResult := <-clientDone
	serverResult := <-serverDone

	if clientResult.err != nil {
		t.Fatalf("client handshake: %v", clientResult.err)
	}
	if serverResult.err != nil {
		t.Fatalf("server handshake: %v", serverResult.err)
	}
	if clientSess.RemoteUUID != serverUUID {
		t.Fatalf("client did not record server's verified UUID")
	}
	if serverSess.RemoteUUID != clientUUID {
		t.Fatalf("server did not record client's verified UUID")
	}
	if len(serverResult.extenders) != 1 || !serverResult.extenders[0].Equal(clientExtenders[0]) {
		t.Fatalf("expected server to receive client's announced extender list, got %v", serverResult.extenders)
	}
	if len(clientResult.extenders) != 0 {
		t.Fatalf("expected client to receive an empty extender list from server, got %v", clientResult.extenders)
	}
}
