package star

import (
	"context"
	"sync"

	"github.com/1ureka/webrtc-star/internal/config"
	"github.com/1ureka/webrtc-star/internal/dial"
	"github.com/1ureka/webrtc-star/internal/healthmon"
	"github.com/1ureka/webrtc-star/internal/listen"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/relay"
)

// Listener re-exports internal/listen's tagged-variant interface so
// callers of the facade never need to import internal/listen directly.
type Listener = listen.Listener

// Transport is the facade of the overlay: a single entry point wiring the
// dial engine, listen engine, and (in Relay role) the routing table
// together under one role configuration.
type Transport struct {
	Self pid.PID
	Cfg  config.Config

	monitor *healthmon.Monitor
	router  *relay.Router
	dialer  *dial.Dialer

	mu        sync.Mutex
	listeners []listen.Listener
	primarySC *relay.Channel
}

// New constructs a Transport. self is this node's own PID (internal/pid.New()
// for a fresh identity).
func New(self pid.PID, cfg config.Config) *Transport {
	t := &Transport{Self: self, Cfg: cfg, monitor: healthmon.NewMonitor()}
	if cfg.Role() == config.RoleRelay {
		t.router = relay.NewRouter(nil, t.monitor)
	}
	t.dialer = dial.NewDialer(self, cfg, t, t.monitor, t.getPrimarySC)
	return t
}

func (t *Transport) getPrimarySC() (*relay.Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.primarySC == nil {
		return nil, false
	}
	return t.primarySC, true
}

// RegisterSignallingChannel satisfies dial.SCRegistry. A PeerSC opened by
// this node's own dialer toward its primary relay becomes the node's
// primary SC and is additionally handed to every registered
// *listen.SigListener; a RelaySC opened by a Relay-role node's dialer
// folds into the router.
func (t *Transport) RegisterSignallingChannel(sc *relay.Channel) {
	if sc.Kind() == relay.PeerSC {
		t.mu.Lock()
		t.primarySC = sc
		listeners := append([]listen.Listener{}, t.listeners...)
		t.mu.Unlock()

		for _, l := range listeners {
			if sig, ok := l.(*listen.SigListener); ok {
				sig.RegisterSignallingChannel(sc)
			}
		}
		return
	}
	if t.router != nil {
		t.router.Attach(sc)
	}
}

// UnregisterSignallingChannel satisfies dial.SCRegistry.
func (t *Transport) UnregisterSignallingChannel(sc *relay.Channel) {
	t.mu.Lock()
	if t.primarySC == sc {
		t.primarySC = nil
	}
	t.mu.Unlock()
}

// Dial filters the target, then attempts to establish a connection.
func (t *Transport) Dial(ctx context.Context, target maddr.Address, opts dial.Options) (*Connection, error) {
	if !t.filterOne(target, false) {
		return nil, ErrRejectedAddress
	}
	return t.dialer.Dial(ctx, target, opts)
}

// Listen creates a listener for addr, choosing between SigListener and
// HTTPListener: SigListener only when signalling is enabled and addr
// carries the star marker.
func (t *Transport) Listen(addr maddr.Address) (Listener, error) {
	if !t.filterOne(addr, true) {
		return nil, ErrRejectedAddress
	}

	var l listen.Listener
	if t.Cfg.SignallingEnabled && addr.Star() {
		sig := listen.NewSigListener(t.Self, t.Cfg, addr)
		if sc, ok := t.getPrimarySC(); ok {
			sig.RegisterSignallingChannel(sc)
		}
		l = sig
	} else {
		var router interface {
			Attach(ch *relay.Channel)
		}
		if t.Cfg.Role() == config.RoleRelay {
			router = t.router
		}
		http := listen.NewHTTPListener(t.Self, t.Cfg, router)
		if err := http.Listen(addr); err != nil {
			return nil, err
		}
		l = http
	}

	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
	return l, nil
}

// Filter keeps only addresses whose protocol stack matches the "direct"
// family, additionally requiring (for "star" addresses) that signalling is
// enabled and, when listening, that the embedded owner PID equals the
// primary relay PID.
func (t *Transport) Filter(addrs []maddr.Address, forListen bool) []maddr.Address {
	out := make([]maddr.Address, 0, len(addrs))
	for _, a := range addrs {
		if t.filterOne(a, forListen) {
			out = append(out, a)
		}
	}
	return out
}

func (t *Transport) filterOne(a maddr.Address, forListen bool) bool {
	if !a.Direct() {
		return false
	}
	if !a.Star() {
		return true
	}
	if !t.Cfg.SignallingEnabled {
		return false
	}
	if forListen {
		owner, ok := a.OwnerPID()
		return ok && owner == t.Cfg.RelayPeerID
	}
	return true
}

// Close tears down the router (if any) and the health monitor.
func (t *Transport) Close() error {
	if t.router != nil {
		t.router.Close()
	}
	t.monitor.Stop()

	t.mu.Lock()
	listeners := append([]listen.Listener{}, t.listeners...)
	t.mu.Unlock()
	for _, l := range listeners {
		l.Close()
	}
	return nil
}
