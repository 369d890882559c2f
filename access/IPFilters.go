/*
File Name:  IPFilters.go

Address allow/block filters (§4.2). An address is allowed unless it falls
inside a block range and does not also fall inside an allow range. A
filter's id is a persistent hash of its normalized (address, mask) pair,
ported from the original's GetFilterID/AddFilterImpl: the same CIDR always
hashes to the same id, so a caller can recompute it without having stored
the value AddFilter returned, and re-adding an identical filter is rejected
rather than silently duplicated.
*/

package access

import (
	"fmt"
	"net"
	"sync"

	"lukechampine.com/blake3"
)

// FilterType distinguishes an allow entry from a block entry.
type FilterType uint8

const (
	FilterBlocked FilterType = iota
	FilterAllowed
)

// FilterID identifies one added filter for later removal. It is derived
// from the filter's normalized (address, mask) pair, not assigned
// sequentially, so it is reproducible from the CIDR text alone.
type FilterID uint64

type ipFilter struct {
	id      FilterID
	network *net.IPNet
}

// IPFilters holds the allow and block CIDR ranges.
type IPFilters struct {
	mutex sync.RWMutex
	allow []ipFilter
	block []ipFilter
}

// NewIPFilters returns an empty filter set; no addresses are blocked.
func NewIPFilters() *IPFilters {
	return &IPFilters{}
}

// filterID hashes network's normalized string form into a FilterID,
// matching the original's Hash::GetNonPersistentHash(ip+mask) scheme.
func filterID(network *net.IPNet) FilterID {
	h := blake3.Sum256([]byte(network.String()))
	var id uint64
	for i := 0; i < 8; i++ {
		id = id<<8 | uint64(h[i])
	}
	return FilterID(id)
}

// ErrFilterExists is returned when cidr under typ was already added.
var ErrFilterExists = fmt.Errorf("access: filter already exists")

// hasFilter reports whether list already contains id. Caller holds mutex.
func hasFilter(list []ipFilter, id FilterID) bool {
	for _, entry := range list {
		if entry.id == id {
			return true
		}
	}
	return false
}

// AddFilter parses cidr (e.g. "10.0.0.0/8") and adds it under typ, returning
// its id (usable with RemoveFilter and reproducible from cidr alone). It
// rejects re-adding a filter already present for the same typ.
func (f *IPFilters) AddFilter(cidr string, typ FilterType) (FilterID, error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return 0, fmt.Errorf("access: parse cidr %q: %w", cidr, err)
	}
	id := filterID(network)

	f.mutex.Lock()
	defer f.mutex.Unlock()

	list := &f.block
	if typ == FilterAllowed {
		list = &f.allow
	}
	if hasFilter(*list, id) {
		return 0, ErrFilterExists
	}
	*list = append(*list, ipFilter{id: id, network: network})
	return id, nil
}

// RemoveFilter removes a previously added filter of the given type.
func (f *IPFilters) RemoveFilter(id FilterID, typ FilterType) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	list := &f.block
	if typ == FilterAllowed {
		list = &f.allow
	}
	for i, entry := range *list {
		if entry.id == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func isInAny(list []ipFilter, ip net.IP) bool {
	for _, entry := range list {
		if entry.network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsAllowed reports whether ip is allowed through the filters.
func (f *IPFilters) IsAllowed(ip net.IP) bool {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if !isInAny(f.block, ip) {
		return true
	}
	return isInAny(f.allow, ip)
}
