/*
File Name:  Dialer.go

Outbound connection handling (§4.8). ConnectTo mirrors the teacher's
connect_to_callback: reuse an existing Ready session to the same endpoint
unless the caller forbids it, otherwise dial, run the handshake as Alice,
and register the new peer the same way an accepted connection is
registered.
*/

package core

import (
	"fmt"
	"net"
	"time"

	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/session"
)

// ErrAlreadyConnected is returned by ConnectTo when forbidReuse is set and
// an existing Ready session to endpoint is found.
var ErrAlreadyConnected = fmt.Errorf("core: already connected to this endpoint")

// ConnectTo dials endpoint ("host:port"), negotiates a session as the
// initiating side, and registers the resulting peer. If forbidReuse is
// false and a Ready session to endpoint already exists, that peer's LUID
// is returned immediately with reused set to true and no new connection
// is made.
func (backend *Backend) ConnectTo(endpoint string, forbidReuse bool) (luid protocol.PeerLUID, reused bool, err error) {
	if !forbidReuse {
		if peer, ok := backend.Peers.GetByEndpoint(endpoint); ok {
			return peer.LUID, true, nil
		}
	} else if _, ok := backend.Peers.GetByEndpoint(endpoint); ok {
		return 0, false, ErrAlreadyConnected
	}

	conn, err := net.DialTimeout("tcp", endpoint, 30*time.Second)
	if err != nil {
		return 0, false, fmt.Errorf("core: dial %s: %w", endpoint, err)
	}

	sess := session.New(conn, crypto.RoleAlice, backend.Access)

	local := localIdentity{
		UUID:   backend.Params.UUID,
		Keys:   backend.Params.Keys,
		Params: metaExchangeParamsFrom(&backend.Params),
	}

	leftover, remoteExtenders, err := runHandshake(sess, local, backend.localExtenderUUIDs())
	if err != nil {
		conn.Close()
		return 0, false, fmt.Errorf("core: handshake with %s: %w", endpoint, err)
	}

	peer := backend.Peers.Add(sess.RemoteUUID, sess, endpoint)
	backend.Filters.NewPeer(peer)

	if backend.Extenders != nil && len(remoteExtenders) > 0 {
		backend.Extenders.NotePeerExtenders(peer.LUID, remoteExtenders)
	}

	backend.wg.Add(1)
	go func() {
		defer backend.wg.Done()
		backend.runPeer(peer, leftover)
	}()

	return peer.LUID, false, nil
}
