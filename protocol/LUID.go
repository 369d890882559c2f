package protocol

import "sync/atomic"

// LUIDGenerator issues process-local PeerLUID values. The zero value is
// ready to use; values start at 1 so 0 can be reserved as "unassigned".
type LUIDGenerator struct {
	counter uint64
}

// Next returns the next PeerLUID. Safe for concurrent use, mirroring the
// teacher's atomic.AddUint32 sequence-number pattern.
func (g *LUIDGenerator) Next() PeerLUID {
	return PeerLUID(atomic.AddUint64(&g.counter, 1))
}
