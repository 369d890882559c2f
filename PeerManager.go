/*
File Name:  PeerManager.go

Peer directory and the pool-affine scheduling model of §5: N pools, a
peer bound at creation to the pool with the fewest peers and staying
bound for its lifetime. Per §9's "coroutine-free concurrency" design
note, the teacher's worker-thread pools become pool-affine bookkeeping
only; actual execution is one goroutine per peer (Go's scheduler already
multiplexes goroutines onto OS threads), with the pool assignment
preserved so the least-loaded invariant and metrics stay meaningful.
Grounded on the teacher's Peernet.go peerList/peerlistMutex pattern,
generalized from a fixed map keyed by compressed secp256k1 public key to
one keyed by protocol.PeerLUID with an additional endpoint index for
connect_to_callback's session-reuse rule (§4.8).
*/

package core

import (
	"net"
	"sync"

	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/session"
)

// PeerInfo bundles a peer's session with the directory bookkeeping the
// peer manager and dialer need. Its own fields are guarded by mutex so
// callers across subsystems can read consistent snapshots.
type PeerInfo struct {
	mutex sync.RWMutex

	LUID     protocol.PeerLUID
	UUID     protocol.PeerUUID
	Endpoint string // "ip:port" this peer was dialed to or accepted from.
	Session  *session.Session

	pool int
}

// Pool returns the index of the pool this peer is bound to.
func (p *PeerInfo) Pool() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.pool
}

type peerPool struct {
	mutex sync.Mutex
	peers map[protocol.PeerLUID]*PeerInfo
}

// PeerManager is the process-wide peer directory. It assigns each new
// peer to a pool, tracks peers by LUID and by endpoint (for connect_to
// reuse), and generates PeerLUIDs.
type PeerManager struct {
	luidGen protocol.LUIDGenerator

	mutex      sync.RWMutex
	byLUID     map[protocol.PeerLUID]*PeerInfo
	byEndpoint map[string]*PeerInfo

	pools []*peerPool
}

// NewPeerManager creates a manager with poolCount pools. poolCount is
// clamped to at least 1.
func NewPeerManager(poolCount int) *PeerManager {
	if poolCount < 1 {
		poolCount = 1
	}
	pools := make([]*peerPool, poolCount)
	for i := range pools {
		pools[i] = &peerPool{peers: make(map[protocol.PeerLUID]*PeerInfo)}
	}
	return &PeerManager{
		byLUID:     make(map[protocol.PeerLUID]*PeerInfo),
		byEndpoint: make(map[string]*PeerInfo),
		pools:      pools,
	}
}

// leastLoadedPool returns the index of the pool currently holding the
// fewest peers. Ties resolve to the lowest index, making assignment
// deterministic for equal load.
func (m *PeerManager) leastLoadedPool() int {
	best := 0
	bestLoad := -1
	for i, pool := range m.pools {
		pool.mutex.Lock()
		load := len(pool.peers)
		pool.mutex.Unlock()
		if bestLoad == -1 || load < bestLoad {
			best, bestLoad = i, load
		}
	}
	return best
}

// Add allocates a PeerLUID, binds the peer to the least-loaded pool, and
// registers it in the directory. endpoint may be empty for peers without
// a stable reusable address (e.g. relayed circuits).
func (m *PeerManager) Add(uuid protocol.PeerUUID, sess *session.Session, endpoint string) *PeerInfo {
	luid := m.luidGen.Next()
	poolIdx := m.leastLoadedPool()

	peer := &PeerInfo{LUID: luid, UUID: uuid, Endpoint: endpoint, Session: sess, pool: poolIdx}

	m.pools[poolIdx].mutex.Lock()
	m.pools[poolIdx].peers[luid] = peer
	m.pools[poolIdx].mutex.Unlock()

	m.mutex.Lock()
	m.byLUID[luid] = peer
	if endpoint != "" {
		m.byEndpoint[endpoint] = peer
	}
	m.mutex.Unlock()

	return peer
}

// Get returns the peer registered under luid, if any.
func (m *PeerManager) Get(luid protocol.PeerLUID) (*PeerInfo, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	peer, ok := m.byLUID[luid]
	return peer, ok
}

// GetByEndpoint returns a peer already connected to endpoint, used by
// connect_to_callback's reuse rule (§4.8). Only peers whose session is in
// StateReady are eligible for reuse.
func (m *PeerManager) GetByEndpoint(endpoint string) (*PeerInfo, bool) {
	m.mutex.RLock()
	peer, ok := m.byEndpoint[endpoint]
	m.mutex.RUnlock()
	if !ok || peer.Session.State() != session.StateReady {
		return nil, false
	}
	return peer, true
}

// Remove drops peer from the directory and its bound pool.
func (m *PeerManager) Remove(luid protocol.PeerLUID) {
	m.mutex.Lock()
	peer, ok := m.byLUID[luid]
	if ok {
		delete(m.byLUID, luid)
		if peer.Endpoint != "" && m.byEndpoint[peer.Endpoint] == peer {
			delete(m.byEndpoint, peer.Endpoint)
		}
	}
	m.mutex.Unlock()
	if !ok {
		return
	}

	pool := m.pools[peer.Pool()]
	pool.mutex.Lock()
	delete(pool.peers, luid)
	pool.mutex.Unlock()
}

// Count returns the total number of registered peers across all pools.
func (m *PeerManager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.byLUID)
}

// Range calls fn once for every peer currently in the directory. It
// snapshots the peer list under the read lock and holds no lock while fn
// runs, so fn may call back into the PeerManager.
func (m *PeerManager) Range(fn func(*PeerInfo)) {
	m.mutex.RLock()
	peers := make([]*PeerInfo, 0, len(m.byLUID))
	for _, peer := range m.byLUID {
		peers = append(peers, peer)
	}
	m.mutex.RUnlock()

	for _, peer := range peers {
		fn(peer)
	}
}

// PoolLoad returns the number of peers currently bound to pool index i.
func (m *PeerManager) PoolLoad(i int) int {
	if i < 0 || i >= len(m.pools) {
		return 0
	}
	m.pools[i].mutex.Lock()
	defer m.pools[i].mutex.Unlock()
	return len(m.pools[i].peers)
}

// endpointKey returns addr's string form as a stable endpoint key.
func endpointKey(addr net.Addr) string {
	return addr.String()
}
