/*
File Name:  Relay.go

Wires the relay package's link state machine, manager, and data-rate
limiter into live wire traffic (§4.6). BeginRelay is the origin-side entry
point; ProcessRelayEvent is what Listener.go's dispatchMessage calls for
every inbound RelayCreate/RelayStatus/RelayData/RelayDataAck message,
whether this instance is acting as origin, an intermediate forwarder, or
the circuit's end. Grounded on
original_source/QuantumGateLib/Core/Relay/RelayManager.cpp's
ProcessRelayEvent dispatch and RelayLink.h's position-dependent forwarding
rules.
*/

package core

import (
	"fmt"
	"net"
	"time"

	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/relay"
)

// relayNoPeer is the sentinel PeerLUID used for a link's missing
// neighbour: the application side at a circuit's Beginning, or the final
// responder's application side at its End.
const relayNoPeer = 0

func (backend *Backend) relayExclusionRules() relay.ExclusionRules {
	return relay.ExclusionRules{
		IPv4PrefixBits: backend.Params.Relays.IPv4ExcludedPrefixBits,
		IPv6PrefixBits: backend.Params.Relays.IPv6ExcludedPrefixBits,
	}
}

// localIPs returns every unicast IP address bound to this instance's
// network interfaces, for the local-instance exclusion leg of §4.6's
// "Relay exclusion" rule.
func (backend *Backend) localIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		switch a := addr.(type) {
		case *net.IPNet:
			ips = append(ips, a.IP)
		case *net.IPAddr:
			ips = append(ips, a.IP)
		}
	}
	return ips
}

// hostIP extracts the address portion of endpoint, which may be a bare IP
// or an "ip:port" pair.
func hostIP(endpoint string) net.IP {
	if ip := net.ParseIP(endpoint); ip != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

// relayCandidates returns every Ready peer other than exclude as a
// possible next hop.
func (backend *Backend) relayCandidates(exclude protocol.PeerLUID) []relay.Candidate {
	var candidates []relay.Candidate
	backend.Peers.Range(func(peer *PeerInfo) {
		if peer.LUID == exclude {
			return
		}
		ip := hostIP(peer.Endpoint)
		if ip == nil {
			return
		}
		candidates = append(candidates, relay.Candidate{PeerLUID: uint64(peer.LUID), Address: ip})
	})
	return candidates
}

// sendMessage is the one place a relay handler writes to a peer's
// session, so every relay send shares the same compression choice.
func (backend *Backend) sendMessage(peer *PeerInfo, msg protocol.Message) error {
	return peer.Session.Write(msg, protocol.CompressionDeflate)
}

func (backend *Backend) sendRelayCreate(peer *PeerInfo, p protocol.RelayCreatePayload) error {
	return backend.sendMessage(peer, protocol.Message{Type: protocol.MessageTypeRelayCreate, Payload: protocol.EncodeRelayCreate(p)})
}

func (backend *Backend) sendRelayStatus(peer *PeerInfo, port uint64, status relay.StatusUpdate) error {
	p := protocol.RelayStatusPayload{Port: port, Status: uint8(status)}
	return backend.sendMessage(peer, protocol.Message{Type: protocol.MessageTypeRelayStatus, Payload: protocol.EncodeRelayStatus(p)})
}

func (backend *Backend) sendRelayData(peer *PeerInfo, port, messageID uint64, data []byte) error {
	p := protocol.RelayDataPayload{Port: port, MessageID: messageID, Data: data}
	return backend.sendMessage(peer, protocol.Message{Type: protocol.MessageTypeRelayData, Payload: protocol.EncodeRelayData(p)})
}

func (backend *Backend) sendRelayDataAck(peer *PeerInfo, port, messageID uint64) error {
	p := protocol.RelayDataAckPayload{Port: port, MessageID: messageID}
	return backend.sendMessage(peer, protocol.Message{Type: protocol.MessageTypeRelayDataAck, Payload: protocol.EncodeRelayDataAck(p)})
}

// BeginRelay opens a new circuit from this instance toward finalEndpoint,
// choosing the first hop from currently connected peers under §4.6's
// exclusion rules. hops is the number of peers the circuit must cross,
// including the final responder (1 means "relay directly through one
// peer that is itself the end").
func (backend *Backend) BeginRelay(finalEndpoint string, hops uint8) (uint64, error) {
	if hops == 0 {
		return 0, fmt.Errorf("core: relay hops must be at least 1")
	}

	port, err := relay.NewPort()
	if err != nil {
		return 0, fmt.Errorf("core: generate relay port: %w", err)
	}

	finalIP := hostIP(finalEndpoint)
	candidates := backend.relayCandidates(relayNoPeer)
	hop, err := relay.SelectNextHop(candidates, backend.localIPs(), net.IPv4zero, finalIP, backend.relayExclusionRules())
	if err != nil {
		return 0, err
	}
	nextPeer, ok := backend.Peers.Get(protocol.PeerLUID(hop.PeerLUID))
	if !ok {
		return 0, relay.ErrNoPeersAvailable
	}

	link, err := backend.Relays.Open(port, 0, finalEndpoint, relay.PositionBeginning, relayNoPeer, hop.PeerLUID)
	if err != nil {
		return 0, err
	}
	if err := link.TransitionTo(relay.StatusConnect, relay.ExceptionNone); err != nil {
		return 0, err
	}

	origin := "0.0.0.0"
	if ips := backend.localIPs(); len(ips) > 0 {
		origin = ips[0].String()
	}

	payload := protocol.RelayCreatePayload{Port: port, Hops: hops - 1, Origin: origin, FinalEndpoint: finalEndpoint}
	if err := backend.sendRelayCreate(nextPeer, payload); err != nil {
		return 0, err
	}
	if err := link.TransitionTo(relay.StatusConnecting, relay.ExceptionNone); err != nil {
		return 0, err
	}
	return port, nil
}

// ProcessRelayEvent routes one inbound relay message from peer to the
// relay manager. It is Listener.go's dispatchMessage handoff point for
// every MessageTypeRelay* message.
func (backend *Backend) ProcessRelayEvent(peer *PeerInfo, msg protocol.Message) error {
	switch msg.Type {
	case protocol.MessageTypeRelayCreate:
		return backend.handleRelayCreate(peer, msg.Payload)
	case protocol.MessageTypeRelayStatus:
		return backend.handleRelayStatus(peer, msg.Payload)
	case protocol.MessageTypeRelayData:
		return backend.handleRelayData(peer, msg.Payload)
	case protocol.MessageTypeRelayDataAck:
		return backend.handleRelayDataAck(peer, msg.Payload)
	default:
		return fmt.Errorf("core: %s is not a relay message", msg.Type)
	}
}

// handleRelayCreate admits a circuit this instance did not originate,
// becoming either its End (no more hops remain) or a Between forwarder
// (§4.6).
func (backend *Backend) handleRelayCreate(peer *PeerInfo, raw []byte) error {
	payload, err := protocol.DecodeRelayCreate(raw)
	if err != nil {
		return err
	}

	if payload.Hops == 0 {
		link, err := backend.Relays.Open(payload.Port, 0, payload.FinalEndpoint, relay.PositionEnd, uint64(peer.LUID), relayNoPeer)
		if err != nil {
			return err
		}
		if err := link.TransitionTo(relay.StatusConnect, relay.ExceptionNone); err != nil {
			return err
		}
		if err := link.TransitionTo(relay.StatusConnected, relay.ExceptionNone); err != nil {
			return err
		}
		backend.Filters.RelayStatusChange(payload.Port, relay.StatusConnected)
		return backend.sendRelayStatus(peer, payload.Port, relay.StatusUpdateConnected)
	}

	originIP := hostIP(payload.Origin)
	finalIP := hostIP(payload.FinalEndpoint)
	candidates := backend.relayCandidates(peer.LUID)
	hop, selectErr := relay.SelectNextHop(candidates, backend.localIPs(), originIP, finalIP, backend.relayExclusionRules())
	if selectErr != nil {
		link, err := backend.Relays.Open(payload.Port, 0, payload.FinalEndpoint, relay.PositionBetween, uint64(peer.LUID), relayNoPeer)
		if err == nil {
			_ = link.TransitionTo(relay.StatusConnect, relay.ExceptionNone)
			_ = link.TransitionTo(relay.StatusException, relay.ExceptionNoPeersAvailable)
		}
		return backend.sendRelayStatus(peer, payload.Port, relay.StatusUpdateNoPeersAvailable)
	}
	nextPeer, ok := backend.Peers.Get(protocol.PeerLUID(hop.PeerLUID))
	if !ok {
		return backend.sendRelayStatus(peer, payload.Port, relay.StatusUpdateNoPeersAvailable)
	}

	link, err := backend.Relays.Open(payload.Port, 0, payload.FinalEndpoint, relay.PositionBetween, uint64(peer.LUID), hop.PeerLUID)
	if err != nil {
		return err
	}
	if err := link.TransitionTo(relay.StatusConnect, relay.ExceptionNone); err != nil {
		return err
	}

	forward := protocol.RelayCreatePayload{Port: payload.Port, Hops: payload.Hops - 1, Origin: payload.Origin, FinalEndpoint: payload.FinalEndpoint}
	if err := backend.sendRelayCreate(nextPeer, forward); err != nil {
		return err
	}
	return link.TransitionTo(relay.StatusConnecting, relay.ExceptionNone)
}

// handleRelayStatus applies an inbound status update to the local link
// and, unless the update is terminal in that direction, propagates it to
// the link's other neighbour (§4.6).
func (backend *Backend) handleRelayStatus(peer *PeerInfo, raw []byte) error {
	payload, err := protocol.DecodeRelayStatus(raw)
	if err != nil {
		return err
	}
	link, ok := backend.Relays.Get(payload.Port)
	if !ok {
		return fmt.Errorf("core: relay status for unknown port %d", payload.Port)
	}

	update := relay.StatusUpdate(payload.Status)
	if err := link.ApplyStatusUpdate(uint64(peer.LUID), update); err != nil {
		return err
	}
	backend.Filters.RelayStatusChange(payload.Port, link.Status())

	other := link.OutgoingPeer()
	if other.PeerLUID == uint64(peer.LUID) {
		other = link.IncomingPeer()
	}
	if other.PeerLUID == relayNoPeer || !link.MayForwardStatusTo(other.PeerLUID) {
		return nil
	}
	otherPeer, ok := backend.Peers.Get(protocol.PeerLUID(other.PeerLUID))
	if !ok {
		return nil
	}
	return backend.sendRelayStatus(otherPeer, payload.Port, update)
}

// handleRelayData forwards one RelayData frame to the other side of the
// link it arrived on, or delivers it locally if this instance is the
// circuit's Beginning or End, always acknowledging the hop it came in on
// (§4.6).
func (backend *Backend) handleRelayData(peer *PeerInfo, raw []byte) error {
	payload, err := protocol.DecodeRelayData(raw)
	if err != nil {
		return err
	}
	link, ok := backend.Relays.Get(payload.Port)
	if !ok {
		return fmt.Errorf("core: relay data for unknown port %d", payload.Port)
	}

	if err := backend.sendRelayDataAck(peer, payload.Port, payload.MessageID); err != nil {
		backend.Filters.LogError("handleRelayData", "port %d: ack to peer %d: %v", payload.Port, peer.LUID, err)
	}

	next := link.OutgoingPeer()
	if next.PeerLUID == uint64(peer.LUID) {
		next = link.IncomingPeer()
	}
	if next.PeerLUID == relayNoPeer {
		backend.Filters.RelayData(payload.Port, payload.Data)
		return nil
	}

	nextPeer, ok := backend.Peers.Get(protocol.PeerLUID(next.PeerLUID))
	if !ok {
		return fmt.Errorf("core: relay data on port %d: next hop %d is gone", payload.Port, next.PeerLUID)
	}
	if !link.RateLimit.CanSend() {
		backend.Filters.LogError("handleRelayData", "port %d: outgoing window full, forwarding anyway", payload.Port)
	}
	id := link.RateLimit.NewMessageID()
	link.RateLimit.AddInFlight(id, len(payload.Data), time.Now())
	return backend.sendRelayData(nextPeer, payload.Port, id, payload.Data)
}

// handleRelayDataAck feeds one hop's round-trip sample into that link's
// adaptive MTU estimate (§4.6, §8.10).
func (backend *Backend) handleRelayDataAck(peer *PeerInfo, raw []byte) error {
	payload, err := protocol.DecodeRelayDataAck(raw)
	if err != nil {
		return err
	}
	link, ok := backend.Relays.Get(payload.Port)
	if !ok {
		return fmt.Errorf("core: relay data ack for unknown port %d", payload.Port)
	}
	link.RateLimit.Ack(payload.MessageID, time.Now())
	return nil
}
