// Package maddr wraps github.com/multiformats/go-multiaddr to give the
// signalling overlay the address shape it needs: a transport
// host/port, an optional "direct" marker, an optional "star" marker, and
// zero, one, or two embedded PIDs.
//
// Addresses look like:
//
//	/ip4/127.0.0.1/tcp/12345/http/p2p-webrtc-direct
//	/ip4/127.0.0.1/tcp/12345/http/p2p-webrtc-direct/p2p/<relayPID>/p2p-webrtc-star/p2p/<destPID>
//
// "p2p-webrtc-direct" and "p2p-webrtc-star" are not in go-multiaddr's
// built-in protocol table (they're historical js-libp2p protocol names), so
// this package registers them as zero-size flag protocols at init time, the
// same extension mechanism multiaddr documents for application-specific
// components.
package maddr

import (
	"fmt"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/1ureka/webrtc-star/internal/pid"
)

// Custom protocol codes. Chosen well outside the range of multiaddr's
// built-in table (which tops out in the low thousands) to avoid collisions.
const (
	codeWebRTCDirect = 0x1A19
	codeWebRTCStar   = 0x1A1A
)

func init() {
	for _, p := range []ma.Protocol{
		{
			Name: "p2p-webrtc-direct",
			Code: codeWebRTCDirect,
			VCode: ma.CodeToVarint(codeWebRTCDirect),
		},
		{
			Name:  "p2p-webrtc-star",
			Code:  codeWebRTCStar,
			VCode: ma.CodeToVarint(codeWebRTCStar),
		},
	} {
		if err := ma.AddProtocol(p); err != nil {
			// Re-registration on repeated package init (tests importing
			// this package more than once in the same binary) is harmless.
			continue
		}
	}
}

// Address is an opaque multi-component locator.
type Address struct {
	ma ma.Multiaddr
}

// Parse decodes a multiaddr string into an Address.
func Parse(s string) (Address, error) {
	m, err := ma.NewMultiaddr(s)
	if err != nil {
		return Address{}, fmt.Errorf("maddr: parse %q: %w", s, err)
	}
	return Address{ma: m}, nil
}

// String returns the canonical multiaddr text form.
func (a Address) String() string {
	if a.ma == nil {
		return ""
	}
	return a.ma.String()
}

// Multiaddr exposes the underlying multiaddr.Multiaddr for callers (e.g. an
// inbound-connection upgrader) that need the raw value.
func (a Address) Multiaddr() ma.Multiaddr { return a.ma }

// Direct reports whether the address carries the "direct" marker
// (p2p-webrtc-direct).
func (a Address) Direct() bool {
	return a.hasComponent(codeWebRTCDirect)
}

// Star reports whether the address carries the "star" marker
// (p2p-webrtc-star), indicating signalling-overlay use.
func (a Address) Star() bool {
	return a.hasComponent(codeWebRTCStar)
}

func (a Address) hasComponent(code int) bool {
	if a.ma == nil {
		return false
	}
	found := false
	ma.ForEach(a.ma, func(c ma.Component) bool {
		if c.Protocol().Code == code {
			found = true
			return false
		}
		return true
	})
	return found
}

// HostPort extracts the transport host/port pair (ip4/ip6/dns + tcp/udp).
func (a Address) HostPort() (host, port string, ok bool) {
	if a.ma == nil {
		return "", "", false
	}
	ma.ForEach(a.ma, func(c ma.Component) bool {
		switch c.Protocol().Code {
		case ma.P_IP4, ma.P_IP6, ma.P_DNS, ma.P_DNS4, ma.P_DNS6:
			host = c.Value()
		case ma.P_TCP, ma.P_UDP:
			port = c.Value()
		}
		return true
	})
	return host, port, host != "" && port != ""
}

// pids returns every embedded /p2p/<PID> component value, in order.
func (a Address) pids() []pid.PID {
	if a.ma == nil {
		return nil
	}
	var out []pid.PID
	ma.ForEach(a.ma, func(c ma.Component) bool {
		if c.Protocol().Code == ma.P_P2P {
			out = append(out, pid.PID(c.Value()))
		}
		return true
	})
	return out
}

// OwnerPID returns the PID of the node that owns the listener this address
// names (the first embedded /p2p/<PID> component: the relay/listener PID
// in a star address, or the sole PID in a plain direct address).
func (a Address) OwnerPID() (pid.PID, bool) {
	ps := a.pids()
	if len(ps) == 0 {
		return "", false
	}
	return ps[0], true
}

// DestPID returns the destination PID embedded after the star marker, when
// present (the second /p2p/<PID> component).
func (a Address) DestPID() (pid.PID, bool) {
	ps := a.pids()
	if len(ps) < 2 {
		return "", false
	}
	return ps[1], true
}

// WithOwner returns a copy of a with a trailing /p2p/<owner> component
// appended, used by a listener to build its announced address.
func WithOwner(base Address, owner pid.PID) (Address, error) {
	comp, err := ma.NewComponent("p2p", owner.String())
	if err != nil {
		return Address{}, err
	}
	return Address{ma: base.ma.Encapsulate(comp)}, nil
}

// WithStarDest returns a copy of a with the star marker and a destination
// PID appended, used by a dialer constructing a relayed target address.
func WithStarDest(base Address, dest pid.PID) (Address, error) {
	star, err := ma.NewComponent("p2p-webrtc-star", "")
	if err != nil {
		return Address{}, err
	}
	destComp, err := ma.NewComponent("p2p", dest.String())
	if err != nil {
		return Address{}, err
	}
	return Address{ma: base.ma.Encapsulate(star).Encapsulate(destComp)}, nil
}
