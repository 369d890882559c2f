package protocol

import "sync"

// reassemblyKey identifies one fragmented extender buffer in flight.
type reassemblyKey struct {
	peer     PeerLUID
	extender ExtenderUUID
}

// Reassembler concatenates PartialBegin/Partial/PartialEnd ExtenderCommunication
// fragments, in arrival order, per (peer, extender UUID) (§4.4).
type Reassembler struct {
	mu      sync.Mutex
	pending map[reassemblyKey][]byte
}

// NewReassembler returns a ready-to-use Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[reassemblyKey][]byte)}
}

// Feed processes one inbound Message for peer luid. It returns the
// completed payload and true once a PartialEnd fragment arrives; for
// PartialBegin/Partial fragments it buffers and returns (nil, false). A
// non-fragmented message is returned unchanged with ok=true.
func (r *Reassembler) Feed(luid PeerLUID, msg Message) (payload []byte, ok bool) {
	if !msg.Flags.Partial() {
		return msg.Payload, true
	}

	key := reassemblyKey{peer: luid, extender: msg.ExtenderUUID}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case msg.Flags&FlagPartialBegin != 0:
		r.pending[key] = append([]byte{}, msg.Payload...)
		return nil, false
	case msg.Flags&FlagPartial != 0:
		r.pending[key] = append(r.pending[key], msg.Payload...)
		return nil, false
	case msg.Flags&FlagPartialEnd != 0:
		buf := append(r.pending[key], msg.Payload...)
		delete(r.pending, key)
		return buf, true
	}

	return msg.Payload, true
}

// Discard drops any in-flight reassembly state for a peer, called when a
// session disconnects mid-fragment.
func (r *Reassembler) Discard(luid PeerLUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.pending {
		if key.peer == luid {
			delete(r.pending, key)
		}
	}
}
