/*
File Name:  RateLimiter.go

Direct and relay connection-attempt rate limiters (§4.2), ported from
IPAccessDetails::AddConnectionAttempt: the window resets first if the
interval elapsed, the counter is always incremented next, and only the
comparison against max-per-interval happens after incrementing — so every
attempt beyond the max within one window triggers a Moderate deterioration.
*/

package access

import (
	"net"
	"sync"
	"time"
)

type attemptWindow struct {
	amount      uint64
	windowStart time.Time
}

// RateLimiter tracks connection attempts per address against an interval
// and a maximum, deteriorating reputation on overflow.
type RateLimiter struct {
	mutex        sync.Mutex
	interval     time.Duration
	maxPerWindow uint64
	windows      map[string]*attemptWindow
	reputation   *Reputation
	now          func() time.Time
}

// NewRateLimiter creates a limiter that reports attempts over maxPerWindow
// within interval as deserving a Moderate reputation deterioration on rep.
func NewRateLimiter(interval time.Duration, maxPerWindow uint64, rep *Reputation) *RateLimiter {
	return &RateLimiter{
		interval:     interval,
		maxPerWindow: maxPerWindow,
		windows:      make(map[string]*attemptWindow),
		reputation:   rep,
		now:          time.Now,
	}
}

// AddAttempt records a connection attempt from ip. It returns true unless
// the attempt pushed the window over max-per-interval and the resulting
// reputation deterioration left the address with an unacceptable score.
func (l *RateLimiter) AddAttempt(ip net.IP) bool {
	l.mutex.Lock()
	key := ip.String()
	w, ok := l.windows[key]
	if !ok {
		w = &attemptWindow{windowStart: l.now()}
		l.windows[key] = w
	}

	if l.now().Sub(w.windowStart) >= l.interval {
		w.amount = 0
		w.windowStart = l.now()
	}
	w.amount++
	overflow := w.amount > l.maxPerWindow
	l.mutex.Unlock()

	if !overflow {
		return true
	}
	return l.reputation.UpdateReputation(ip, UpdateDeteriorateModerate) > acceptableThreshold
}
