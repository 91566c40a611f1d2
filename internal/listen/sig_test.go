package listen

import (
	"testing"
	"time"

	"github.com/1ureka/webrtc-star/internal/config"
	"github.com/1ureka/webrtc-star/internal/enginefake"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/relay"
	"github.com/1ureka/webrtc-star/internal/signal"
	"github.com/1ureka/webrtc-star/internal/xmsg"
)

// fakeSC is a minimal engine.DataChannel standing in for the underlying
// transport of a *relay.Channel in these tests.
type fakeSC struct {
	onMsg func([]byte)
}

func (f *fakeSC) Send(data []byte) error    { return nil }
func (f *fakeSC) OnMessage(fn func([]byte)) { f.onMsg = fn }
func (f *fakeSC) OnOpen(fn func())          {}
func (f *fakeSC) OnClose(fn func())         {}
func (f *fakeSC) ReadyState() string        { return "open" }
func (f *fakeSC) Close() error              { return nil }
func (f *fakeSC) deliver(raw []byte)        { f.onMsg(raw) }

// TestRelayedConnectionAddressUsesRequestDst pins a SigListener's address
// construction: it builds the tracked Connection's RemoteAddress from its
// own announced address plus the ConnectRequest's Dst, not its Src.
func TestRelayedConnectionAddressUsesRequestDst(t *testing.T) {
	factory := enginefake.NewFactory()
	cfg := config.Config{NodeType: config.RolePeer, EngineFactory: factory}

	self := pid.New()
	l := NewSigListener(self, cfg, mustAddr(t, "/ip4/127.0.0.1/tcp/9000/http/p2p-webrtc-direct/p2p/"+self.String()))

	scTransport := &fakeSC{}
	sc := relay.NewChannel(scTransport, relay.PeerSC)
	l.RegisterSignallingChannel(sc)

	requester := pid.New()
	offer := signal.Envelope{Kind: signal.Offer, Payload: []byte("offer-sdp")}
	req := xmsg.ConnectRequest(requester, self, offer)
	scTransport.deliver(xmsg.Encode(req))

	select {
	case c := <-l.Connections():
		dst, ok := c.RemoteAddress.DestPID()
		if !ok || dst != self {
			t.Fatalf("RemoteAddress dest PID: got %v (ok=%v), want %v", dst, ok, self)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tracked connection")
	}
}

func TestSigListenerIgnoresNonConnectRequest(t *testing.T) {
	factory := enginefake.NewFactory()
	cfg := config.Config{NodeType: config.RolePeer, EngineFactory: factory}

	self := pid.New()
	l := NewSigListener(self, cfg, mustAddr(t, "/ip4/127.0.0.1/tcp/9000/http/p2p-webrtc-direct"))

	scTransport := &fakeSC{}
	sc := relay.NewChannel(scTransport, relay.PeerSC)
	l.RegisterSignallingChannel(sc)

	scTransport.deliver(xmsg.Encode(xmsg.Join(pid.New())))

	select {
	case c := <-l.Connections():
		t.Fatalf("unexpected tracked connection from a JoinRequest: %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}
