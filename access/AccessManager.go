/*
File Name:  AccessManager.go

Top-level access manager (§4.2) composing filters, reputation, rate
limiters and subnet limits behind a single is_ip_allowed entry point, plus
the independent peer allow-list. Ported from AccessManager.h/.cpp's role as
a thin façade over the four IP sub-services.
*/

package access

import (
	"net"
	"time"
)

// CheckKind selects which sub-checks IsIPAllowed applies.
type CheckKind uint8

const (
	CheckFilters CheckKind = 1 << iota
	CheckReputation
	CheckSubnetLimits
	CheckAll = CheckFilters | CheckReputation | CheckSubnetLimits
)

// Manager is the access control façade used by the session and relay
// packages to admit or reject a connecting address or peer.
type Manager struct {
	Filters      *IPFilters
	Reputation   *Reputation
	DirectLimit  *RateLimiter
	RelayLimit   *RateLimiter
	SubnetLimits *SubnetLimits
	Peers        *PeerAccessControl
}

// NewManager assembles a Manager from its sub-services' tunables.
func NewManager(reputationImproveInterval time.Duration,
	directInterval time.Duration, directMaxPerInterval uint64,
	relayInterval time.Duration, relayMaxPerInterval uint64,
	peerDefault PeerAccessDefault, requireAuthentication bool) *Manager {

	rep := NewReputation(reputationImproveInterval)
	return &Manager{
		Filters:      NewIPFilters(),
		Reputation:   rep,
		DirectLimit:  NewRateLimiter(directInterval, directMaxPerInterval, rep),
		RelayLimit:   NewRateLimiter(relayInterval, relayMaxPerInterval, rep),
		SubnetLimits: NewSubnetLimits(),
		Peers:        NewPeerAccessControl(peerDefault, requireAuthentication),
	}
}

// IsIPAllowed combines filters, reputation, and subnet limits per check.
func (m *Manager) IsIPAllowed(ip net.IP, check CheckKind) bool {
	if check&CheckFilters != 0 && !m.Filters.IsAllowed(ip) {
		return false
	}
	if check&CheckReputation != 0 && !m.Reputation.HasAcceptableReputation(ip) {
		return false
	}
	if check&CheckSubnetLimits != 0 && !m.SubnetLimits.CanAcceptConnection(ip) {
		return false
	}
	return true
}
