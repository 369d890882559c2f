package access

import (
	"net"
	"testing"
)

func TestSubnetLimitsAdmitsUpToMax(t *testing.T) {
	s := NewSubnetLimits()
	if err := s.AddLimit(net.IPv4len, 24, 2); err != nil {
		t.Fatal(err)
	}

	a := net.ParseIP("203.0.113.1")
	b := net.ParseIP("203.0.113.2")
	c := net.ParseIP("203.0.113.3")

	if !s.CanAcceptConnection(a) {
		t.Fatal("first connection should be admitted")
	}
	s.AddConnection(a)

	if !s.CanAcceptConnection(b) {
		t.Fatal("second connection should be admitted")
	}
	s.AddConnection(b)

	if s.CanAcceptConnection(c) {
		t.Error("third connection in the same /24 should be rejected")
	}
}

func TestSubnetLimitsAllowsOverflowForExistingConnections(t *testing.T) {
	s := NewSubnetLimits()
	a := net.ParseIP("198.51.100.1")
	b := net.ParseIP("198.51.100.2")
	c := net.ParseIP("198.51.100.3")

	// No limit configured yet: all three are admitted freely.
	for _, ip := range []net.IP{a, b, c} {
		s.AddConnection(ip)
	}

	if err := s.AddLimit(net.IPv4len, 24, 2); err != nil {
		t.Fatal(err)
	}

	// Existing connections are folded in even though they exceed the new
	// max; a brand new connection in the same subnet must now be rejected.
	d := net.ParseIP("198.51.100.4")
	if s.CanAcceptConnection(d) {
		t.Error("new connection should be rejected once the folded-in count exceeds max")
	}

	s.RemoveConnection(a)
	s.RemoveConnection(b)
	s.RemoveConnection(c)
	if !s.CanAcceptConnection(d) {
		t.Error("removing the grandfathered connections should free up room")
	}
}

func TestSubnetLimitsDifferentFamiliesIndependent(t *testing.T) {
	s := NewSubnetLimits()
	if err := s.AddLimit(net.IPv4len, 24, 1); err != nil {
		t.Fatal(err)
	}
	v6 := net.ParseIP("2001:db8::1")
	if !s.CanAcceptConnection(v6) {
		t.Error("an IPv6 address should be unaffected by an IPv4-only limit")
	}
}
