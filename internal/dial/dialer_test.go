package dial

import (
	"context"
	"testing"
	"time"

	"github.com/1ureka/webrtc-star/internal/config"
	"github.com/1ureka/webrtc-star/internal/enginefake"
	"github.com/1ureka/webrtc-star/internal/healthmon"
	"github.com/1ureka/webrtc-star/internal/listen"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/relay"
)

type noopRegistry struct{}

func (noopRegistry) RegisterSignallingChannel(sc *relay.Channel)   {}
func (noopRegistry) UnregisterSignallingChannel(sc *relay.Channel) {}

func TestChoosePath(t *testing.T) {
	relayPID := pid.New()
	starAddr := mustAddr(t, "/ip4/1.2.3.4/tcp/1/http/p2p-webrtc-direct/p2p/"+relayPID.String()+"/p2p-webrtc-star/p2p/"+pid.New().String())
	plainAddr := mustAddr(t, "/ip4/1.2.3.4/tcp/1/http/p2p-webrtc-direct")
	relayOwnedAddr := mustAddr(t, "/ip4/1.2.3.4/tcp/1/http/p2p-webrtc-direct/p2p/"+relayPID.String())

	cases := []struct {
		name string
		cfg  config.Config
		addr maddr.Address
		want path
	}{
		{"signalling off, plain", config.Config{SignallingEnabled: false}, plainAddr, pathHTTP},
		{"signalling off, star", config.Config{SignallingEnabled: false}, starAddr, pathRejected},
		{"signalling on, star", config.Config{SignallingEnabled: true}, starAddr, pathSC},
		{"signalling on, relay role", config.Config{SignallingEnabled: true, NodeType: config.RoleRelay}, plainAddr, pathHTTPWithSC},
		{"signalling on, peer dialing its relay", config.Config{SignallingEnabled: true, NodeType: config.RolePeer, RelayPeerID: relayPID}, relayOwnedAddr, pathHTTPWithSC},
		{"signalling on, peer dialing a stranger", config.Config{SignallingEnabled: true, NodeType: config.RolePeer, RelayPeerID: relayPID}, plainAddr, pathHTTP},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &Dialer{Cfg: tc.cfg}
			if got := d.choosePath(tc.addr); got != tc.want {
				t.Errorf("choosePath: got %v, want %v", got, tc.want)
			}
		})
	}
}

func mustAddr(t *testing.T, s string) maddr.Address {
	t.Helper()
	a, err := maddr.Parse(s)
	if err != nil {
		t.Fatalf("maddr.Parse(%q): %v", s, err)
	}
	return a
}

func TestDialHTTPRoundTrip(t *testing.T) {
	listenerFactory := enginefake.NewFactory()
	listenerCfg := config.Config{NodeType: config.RolePeer, EngineFactory: listenerFactory}
	l := listen.NewHTTPListener(pid.New(), listenerCfg, nil)
	if err := l.Listen(mustAddr(t, "/ip4/127.0.0.1/tcp/0/http/p2p-webrtc-direct")); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	dialerFactory := enginefake.NewFactory()
	dialerCfg := config.Config{NodeType: config.RolePeer, EngineFactory: dialerFactory}
	monitor := healthmon.NewMonitor()
	t.Cleanup(monitor.Stop)
	d := NewDialer(pid.New(), dialerCfg, noopRegistry{}, monitor, func() (*relay.Channel, bool) { return nil, false })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, l.Addrs()[0], Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if conn.AppDC == nil {
		t.Fatal("expected a non-nil application data channel")
	}
}

func TestDialRejectsStarAddressWhenSignallingDisabled(t *testing.T) {
	relayPID := pid.New()
	starAddr := mustAddr(t, "/ip4/1.2.3.4/tcp/1/http/p2p-webrtc-direct/p2p/"+relayPID.String()+"/p2p-webrtc-star/p2p/"+pid.New().String())

	d := &Dialer{Cfg: config.Config{SignallingEnabled: false}}
	_, err := d.Dial(context.Background(), starAddr, Options{})
	if err == nil {
		t.Fatal("expected an error dialing a star address with signalling disabled")
	}
}

func TestDialSCFailsWithoutPrimarySC(t *testing.T) {
	d := &Dialer{
		Cfg:       config.Config{SignallingEnabled: true},
		PrimarySC: func() (*relay.Channel, bool) { return nil, false },
	}
	relayPID := pid.New()
	starAddr := mustAddr(t, "/ip4/1.2.3.4/tcp/1/http/p2p-webrtc-direct/p2p/"+relayPID.String()+"/p2p-webrtc-star/p2p/"+pid.New().String())

	_, err := d.Dial(context.Background(), starAddr, Options{})
	if err == nil {
		t.Fatal("expected an error dialing via SC with no primary SC open")
	}
}

func TestDialHTTPCancellationBeforeReady(t *testing.T) {
	factory := enginefake.NewFactory()
	cfg := config.Config{NodeType: config.RolePeer, EngineFactory: factory}
	monitor := healthmon.NewMonitor()
	t.Cleanup(monitor.Stop)
	d := NewDialer(pid.New(), cfg, noopRegistry{}, monitor, func() (*relay.Channel, bool) { return nil, false })

	// Nothing is listening on this port, so the HTTP request fails (or the
	// context deadline passes first) and the dial must return an error
	// rather than hang.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	addr := mustAddr(t, "/ip4/127.0.0.1/tcp/1/http/p2p-webrtc-direct")
	if _, err := d.Dial(ctx, addr, Options{}); err == nil {
		t.Fatal("expected an error dialing an address with nothing listening")
	}
}
