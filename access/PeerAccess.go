/*
File Name:  PeerAccess.go

Peer allow-list (§4.2), ported from PeerAccessControl.h/.cpp. Maps a
PeerUUID to an optional public key and an allowed flag. Adding an entry
with a public key requires the UUID to self-certify against it.
*/

package access

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec"

	"github.com/QuantumGateNet/core/protocol"
)

// PeerAccessDefault is the fallback policy for a peer with no explicit entry.
type PeerAccessDefault uint8

const (
	PeerAccessNotAllowed PeerAccessDefault = iota
	PeerAccessAllowed
)

type peerAccessDetails struct {
	publicKey []byte
	algo      protocol.SigAlgo
	hasKey    bool
	allowed   bool
}

// PeerAccessControl is the peer allow-list.
type PeerAccessControl struct {
	mutex         sync.RWMutex
	entries       map[protocol.PeerUUID]*peerAccessDetails
	defaultPolicy PeerAccessDefault
	requireAuth   bool
}

// NewPeerAccessControl returns an empty allow-list under defaultPolicy.
// requireAuthentication, if set, makes an unknown peer never allowed
// regardless of defaultPolicy.
func NewPeerAccessControl(defaultPolicy PeerAccessDefault, requireAuthentication bool) *PeerAccessControl {
	return &PeerAccessControl{
		entries:       make(map[protocol.PeerUUID]*peerAccessDetails),
		defaultPolicy: defaultPolicy,
		requireAuth:   requireAuthentication,
	}
}

// AddPeerEd25519 adds or replaces puuid's entry, verifying that puuid was
// correctly derived from pub before accepting it.
func (p *PeerAccessControl) AddPeerEd25519(puuid protocol.PeerUUID, pub ed25519.PublicKey, allowed bool) error {
	if !puuid.VerifyEd25519(pub) {
		return fmt.Errorf("access: public key does not self-certify peer uuid %s", puuid)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.entries[puuid] = &peerAccessDetails{publicKey: pub, algo: protocol.SigAlgoEd25519, hasKey: true, allowed: allowed}
	return nil
}

// AddPeerSecp256k1 adds or replaces puuid's entry using the legacy signing
// family, verifying self-certification first.
func (p *PeerAccessControl) AddPeerSecp256k1(puuid protocol.PeerUUID, pub *btcec.PublicKey, allowed bool) error {
	if !puuid.VerifySecp256k1(pub) {
		return fmt.Errorf("access: public key does not self-certify peer uuid %s", puuid)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.entries[puuid] = &peerAccessDetails{publicKey: pub.SerializeCompressed(), algo: protocol.SigAlgoSecp256k1, hasKey: true, allowed: allowed}
	return nil
}

// AddPeerWithoutKey adds or replaces puuid's entry with only an allowed
// flag, no public key bound.
func (p *PeerAccessControl) AddPeerWithoutKey(puuid protocol.PeerUUID, allowed bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.entries[puuid] = &peerAccessDetails{allowed: allowed}
}

// RemovePeer deletes puuid's entry.
func (p *PeerAccessControl) RemovePeer(puuid protocol.PeerUUID) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	delete(p.entries, puuid)
}

// IsAllowed reports whether puuid may connect, applying defaultPolicy and
// requireAuthentication for unknown peers.
func (p *PeerAccessControl) IsAllowed(puuid protocol.PeerUUID) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if e, ok := p.entries[puuid]; ok {
		return e.allowed
	}
	if p.requireAuth {
		return false
	}
	return p.defaultPolicy == PeerAccessAllowed
}

// PublicKey returns the bound public key for puuid, if any.
func (p *PeerAccessControl) PublicKey(puuid protocol.PeerUUID) (key []byte, algo protocol.SigAlgo, ok bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	e, found := p.entries[puuid]
	if !found || !e.hasKey {
		return nil, 0, false
	}
	return e.publicKey, e.algo, true
}
