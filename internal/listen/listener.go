// Package listen implements the listen side of the signalling overlay: the
// HTTPListener (plain offer/answer HTTP endpoint, with relay-router
// wiring) and the SigListener (inbound offers arriving over a pre-opened
// PeerSC).
//
// Built around a net.Listen plus mux plus http.Serve skeleton, adapted from
// a persistent WebSocket duplex to a single-shot request/response cycle
// since the HTTP path here is offer-in/answer-out, not a multiplexed
// signalling session.
package listen

import (
	"sync"

	"github.com/1ureka/webrtc-star/internal/engine"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/relay"
	starconn "github.com/1ureka/webrtc-star/internal/star/conn"
	"github.com/1ureka/webrtc-star/internal/util"
)

// SCKind tags the query parameter `signalling_channel`.
type SCKind string

const (
	SCKindNone  SCKind = "none"
	SCKindPeer  SCKind = "peer"
	SCKindRelay SCKind = "relay"
)

// Listener is the tagged-variant interface both HTTPListener and
// SigListener satisfy.
type Listener interface {
	Listen(addr maddr.Address) error
	Close() error
	Addrs() []maddr.Address
	Connections() <-chan *starconn.Connection
	Closed() <-chan struct{}
}

// connTracker is the shared "track inbound connections, untrack on close"
// bookkeeping used by both listener variants.
type connTracker struct {
	mu    sync.Mutex
	conns map[*starconn.Connection]struct{}

	connCh  chan *starconn.Connection
	closeCh chan struct{}
	once    sync.Once
}

func newConnTracker() *connTracker {
	return &connTracker{
		conns:   make(map[*starconn.Connection]struct{}),
		connCh:  make(chan *starconn.Connection, 16),
		closeCh: make(chan struct{}),
	}
}

func (t *connTracker) track(c *starconn.Connection) {
	t.mu.Lock()
	t.conns[c] = struct{}{}
	t.mu.Unlock()
	util.Stats.AddConn()
	select {
	case t.connCh <- c:
	default:
	}
}

func (t *connTracker) untrack(c *starconn.Connection) {
	t.mu.Lock()
	_, existed := t.conns[c]
	delete(t.conns, c)
	t.mu.Unlock()
	if existed {
		util.Stats.RemoveConn()
	}
}

func (t *connTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *connTracker) emitClose() {
	t.once.Do(func() { close(t.closeCh) })
}

// awaitDeferredReadiness implements "deferred SC readiness": a rendezvous
// primitive specialised to a single optional condition. Resolves
// immediately if no SC was requested, otherwise blocks until the SC's open
// callback fires.
func awaitDeferredReadiness(want bool) (resolve func(), wait <-chan struct{}) {
	ch := make(chan struct{})
	if !want {
		close(ch)
		return func() {}, ch
	}
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }, ch
}

// relayAttacher is the subset of internal/relay.Router an HTTPListener in
// Relay role uses to fold a freshly opened RelaySC into routing.
type relayAttacher interface {
	Attach(ch *relay.Channel)
}

// awaitAppOpen invokes fn, on its own goroutine, once dc reaches "open".
// The engine's OnReady fires at the ICE/DTLS level, which precedes the
// application data channel's own SCTP open transition, so a Connection
// must not be tracked until this resolves separately.
func awaitAppOpen(dc engine.DataChannel, fn func()) {
	if dc == nil || dc.ReadyState() == "open" {
		go fn()
		return
	}
	dc.OnOpen(func() { go fn() })
}
