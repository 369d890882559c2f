/*
File Name:  Listener.go

Inbound connection handling (§4.8). Each configured TCP port runs its own
accept loop; every accepted connection is checked against the access
manager's IP allow-list before a session is even created, then carried
through the handshake synchronously on its own goroutine. Grounded on the
teacher's Connect.go acceptConnections pattern of one goroutine per
listening socket plus one per accepted peer.
*/

package core

import (
	"context"
	"fmt"
	"net"

	"github.com/QuantumGateNet/core/access"
	"github.com/QuantumGateNet/core/crypto"
	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/session"
)

type tcpListener struct {
	backend *Backend
	port    uint16
	ln      net.Listener
}

func newTCPListener(backend *Backend, port uint16) (*tcpListener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return &tcpListener{backend: backend, port: port, ln: ln}, nil
}

func (l *tcpListener) close() {
	l.ln.Close()
}

// run accepts connections until the listener is closed, handing each one
// off to its own goroutine so a slow or stalled handshake never blocks
// other peers.
func (l *tcpListener) run() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.backend.shutdown:
				return
			default:
			}
			l.backend.Filters.LogError("Listener.run", "accept on port %d: %v", l.port, err)
			return
		}

		if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			if !l.backend.Access.IsIPAllowed(tcpAddr.IP, access.CheckAll) {
				conn.Close()
				continue
			}
		}

		l.backend.wg.Add(1)
		go func() {
			defer l.backend.wg.Done()
			l.backend.acceptPeer(conn)
		}()
	}
}

// acceptPeer drives one inbound connection from raw socket through the
// handshake to steady-state dispatch (§4.5, §4.8). Any failure before
// StateReady simply closes the connection; there is no peer to report it
// against yet.
func (backend *Backend) acceptPeer(conn net.Conn) {
	sess := session.New(conn, crypto.RoleBob, backend.Access)

	local := localIdentity{
		UUID:   backend.Params.UUID,
		Keys:   backend.Params.Keys,
		Params: metaExchangeParamsFrom(&backend.Params),
	}

	leftover, remoteExtenders, err := runHandshake(sess, local, backend.localExtenderUUIDs())
	if err != nil {
		backend.Filters.LogError("acceptPeer", "handshake with %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	peer := backend.Peers.Add(sess.RemoteUUID, sess, conn.RemoteAddr().String())
	backend.Filters.NewPeer(peer)

	if backend.Extenders != nil && len(remoteExtenders) > 0 {
		backend.Extenders.NotePeerExtenders(peer.LUID, remoteExtenders)
	}

	backend.runPeer(peer, leftover)
}

// runPeer hands a peer in StateReady off to a Dispatcher for the rest of
// its lifetime, seeded with any bytes the handshake already read past its
// final frame boundary.
func (backend *Backend) runPeer(peer *PeerInfo, leftover []byte) {
	defer backend.Peers.Remove(peer.LUID)
	if backend.Extenders != nil {
		defer backend.Extenders.ForgetPeer(peer.LUID)
	}

	dispatcher := session.NewDispatcherWithBuffer(peer.Session, backend.dispatchMessage(peer), leftover)
	if err := dispatcher.Run(context.Background()); err != nil {
		backend.Filters.LogError("runPeer", "peer %d: %v", peer.LUID, err)
	}
}

// dispatchMessage routes a decoded message from peer to the extender
// multiplexer, the relay manager, or extender-presence bookkeeping,
// isolated per peer so one closure capture is enough.
func (backend *Backend) dispatchMessage(peer *PeerInfo) session.Handler {
	return func(s *session.Session, msg protocol.Message) error {
		switch msg.Type {
		case protocol.MessageTypeExtenderCommunication:
			err := backend.Extenders.DeliverMessage(peer.LUID, msg.ExtenderUUID, msg.Payload)
			if err != nil {
				backend.Filters.LogError("dispatchMessage", "peer %d: %v", peer.LUID, err)
			}
			backend.Filters.ExtenderMessage(peer, msg.ExtenderUUID, msg.Payload)
			return nil

		case protocol.MessageTypeExtenderUpdate:
			update, err := protocol.DecodeExtenderUpdate(msg.Payload)
			if err != nil {
				backend.Filters.LogError("dispatchMessage", "peer %d: %v", peer.LUID, err)
				return nil
			}
			if update.Added {
				backend.Extenders.NotePeerExtender(peer.LUID, update.UUID)
			} else {
				backend.Extenders.ForgetPeerExtender(peer.LUID, update.UUID)
			}
			return nil

		case protocol.MessageTypeRelayCreate, protocol.MessageTypeRelayStatus,
			protocol.MessageTypeRelayData, protocol.MessageTypeRelayDataAck:
			if err := backend.ProcessRelayEvent(peer, msg); err != nil {
				backend.Filters.LogError("dispatchMessage", "peer %d: relay: %v", peer.LUID, err)
			}
			return nil

		default:
			backend.Filters.LogError("dispatchMessage", "peer %d: unhandled message type %v", peer.LUID, msg.Type)
			return nil
		}
	}
}

// localExtenderUUIDs returns the set of extender identities this node
// advertises during SessionInit.
func (backend *Backend) localExtenderUUIDs() []protocol.ExtenderUUID {
	if backend.Extenders == nil {
		return nil
	}
	return backend.Extenders.RegisteredUUIDs()
}
