package monitor

import (
	"net"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

// Target represents a ping target. It is immutable once parsed.
type Target struct {
	addr netip.Addr
}

// ParseTarget parses an IPv4 or IPv6 address literal (optionally with an
// IPv6 zone). Host names are rejected.
func ParseTarget(s string) (Target, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return Target{}, errors.Wrapf(err, "invalid target %q", s)
	}
	return TargetFrom(addr), nil
}

// ParseTargets parses every address, failing on the first invalid one.
// Duplicates are kept.
func ParseTargets(args []string) ([]Target, error) {
	targets := make([]Target, 0, len(args))
	for _, arg := range args {
		t, err := ParseTarget(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// TargetFrom wraps addr. IPv4-mapped IPv6 addresses are treated as IPv4.
func TargetFrom(addr netip.Addr) Target {
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	return Target{addr: addr}
}

// Addr returns the target address.
func (t Target) Addr() netip.Addr {
	return t.addr
}

// IPAddr returns a fresh net.IPAddr for the target.
func (t Target) IPAddr() *net.IPAddr {
	return &net.IPAddr{
		IP:   net.IP(t.addr.AsSlice()),
		Zone: t.addr.Zone(),
	}
}

// IsIPv4 reports whether the target is an IPv4 address.
func (t Target) IsIPv4() bool {
	return t.addr.Is4()
}

func (t Target) String() string {
	return t.addr.String()
}
