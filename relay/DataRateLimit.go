/*
File Name:  DataRateLimit.go

Per-link data-rate/window limiter, ported from
original_source/QuantumGateLib/Core/Relay/RelayDataRateLimit.h. A window of
WindowSize in-flight messages bounds how much unacked data a link may have
outstanding; each ACK's round-trip time and size feed an online mean/stddev
that adapts the link's MTU estimate.
*/

package relay

import (
	"math"
	"sync"
	"time"

	"github.com/QuantumGateNet/core/protocol"
)

// WindowSize is the maximum number of unacknowledged RelayData messages per
// link direction (§4.6's "Relay window" invariant, W = 2).
const WindowSize = 2

// MinMTUSize is the floor the adaptive MTU estimate never drops below.
const MinMTUSize = 1 << 16

// MaxMTUSize is the ceiling the adaptive MTU estimate never grows past,
// matching protocol.MaxPlaintext: a relay hop can never usefully forward a
// single message larger than the largest inner Message the wire format
// itself allows.
const MaxMTUSize = protocol.MaxPlaintext

// ewmaBlend is the EWMA weight applied to the *previous* MTU estimate; close
// to 1 makes the estimate resistant to one-off delay spikes.
const ewmaBlend = 0.95

// onlineVariance is Welford's single-pass mean/variance accumulator.
type onlineVariance struct {
	count int
	mean  float64
	m2    float64
}

func (v *onlineVariance) addSample(x float64) {
	v.count++
	delta := x - v.mean
	v.mean += delta / float64(v.count)
	delta2 := x - v.mean
	v.m2 += delta * delta2
}

func (v *onlineVariance) variance() float64 {
	if v.count < 2 {
		return 0
	}
	return v.m2 / float64(v.count-1)
}

func (v *onlineVariance) stdDev() float64 {
	return math.Sqrt(v.variance())
}

// minDev2 is the restart threshold: mean - 2*stddev.
func (v *onlineVariance) minDev2() float64 {
	return v.mean - 2*v.stdDev()
}

func (v *onlineVariance) restart() {
	*v = onlineVariance{}
}

type mtuDetails struct {
	id       uint64
	numBytes int
	sentAt   time.Time
}

// DataRateLimit tracks in-flight RelayData messages for one link direction
// and adapts an MTU estimate from their round-trip times.
type DataRateLimit struct {
	mutex sync.Mutex

	nextMessageID uint64
	inFlight      []mtuDetails

	rttVariance onlineVariance
	mtuVariance onlineVariance

	mtuSize int
}

// NewDataRateLimit returns a limiter seeded at MinMTUSize.
func NewDataRateLimit() DataRateLimit {
	return DataRateLimit{mtuSize: MinMTUSize}
}

// NewMessageID allocates the next RelayMessageID for an outbound message.
func (d *DataRateLimit) NewMessageID() uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	id := d.nextMessageID
	d.nextMessageID++
	return id
}

// CanSend reports whether the window has room for another in-flight message.
func (d *DataRateLimit) CanSend() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.inFlight) < WindowSize
}

// AddInFlight records id as sent, occupying one window slot. It returns
// false if the window was already full (the caller must call CanSend first).
func (d *DataRateLimit) AddInFlight(id uint64, numBytes int, sentAt time.Time) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if len(d.inFlight) >= WindowSize {
		return false
	}
	d.inFlight = append(d.inFlight, mtuDetails{id: id, numBytes: numBytes, sentAt: sentAt})
	return true
}

// Ack processes a RelayDataAck for id received at ackTime, freeing its
// window slot and updating the MTU estimate from its round-trip time.
func (d *DataRateLimit) Ack(id uint64, ackTime time.Time) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	idx := -1
	for i, m := range d.inFlight {
		if m.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	sent := d.inFlight[idx]
	d.inFlight = append(d.inFlight[:idx], d.inFlight[idx+1:]...)

	if !ackTime.After(sent.sentAt) {
		return false
	}
	rtt := ackTime.Sub(sent.sentAt)
	d.recordAck(rtt, sent.numBytes)
	return true
}

// recordAck updates the RTT/MTU online statistics and the EWMA MTU
// estimate, restarting both accumulators together whenever the new RTT
// drops below mean-2*stddev (a regime change, not noise).
func (d *DataRateLimit) recordAck(rtt time.Duration, numBytes int) {
	rttns := float64(rtt.Nanoseconds())

	if d.rttVariance.count > 0 && rttns < d.rttVariance.minDev2() {
		d.rttVariance.restart()
		d.mtuVariance.restart()
	}

	d.rttVariance.addSample(rttns)
	d.mtuVariance.addSample(float64(numBytes))

	meanns := d.rttVariance.mean
	dataRatePerSecond := d.mtuVariance.mean / (d.rttVariance.mean / 1e9)

	mtu := float64(d.mtuSize)
	if rttns <= meanns {
		increase := dataRatePerSecond * (1.0 - (rttns / meanns))
		if MaxMTUSize-mtu > increase {
			mtu += increase
		} else {
			mtu = MaxMTUSize
		}
	} else {
		decrease := dataRatePerSecond * (1.0 - (meanns / rttns))
		if decrease < mtu {
			mtu -= decrease
			if mtu < MinMTUSize {
				mtu = MinMTUSize
			}
		} else {
			mtu = MinMTUSize
		}
	}

	d.mtuSize = int(ewmaBlend*float64(d.mtuSize) + (1-ewmaBlend)*mtu)
}

// MTUSize returns the current adaptive MTU estimate.
func (d *DataRateLimit) MTUSize() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.mtuSize
}

// WindowBytes returns the window capacity expressed in bytes at the
// current MTU estimate.
func (d *DataRateLimit) WindowBytes() int {
	return WindowSize * d.MTUSize()
}
