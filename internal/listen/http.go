package listen

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/1ureka/webrtc-star/internal/config"
	"github.com/1ureka/webrtc-star/internal/engine"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/relay"
	"github.com/1ureka/webrtc-star/internal/signal"
	starconn "github.com/1ureka/webrtc-star/internal/star/conn"
	"github.com/1ureka/webrtc-star/internal/util"
)

// HTTPListener is a plain HTTP server serving the single `/` offer/answer
// endpoint, plus SC registration for the dial engine's own outbound
// PeerSC/RelaySC (forwarding purposes).
type HTTPListener struct {
	Self    pid.PID
	Cfg     config.Config
	Router  relayAttacher // nil unless Cfg.Role() == config.RoleRelay

	tracker  *connTracker
	listener net.Listener
	server   *http.Server
	addr     maddr.Address
}

// NewHTTPListener constructs an HTTPListener. router may be nil for a Peer
// node (only a Relay needs to fold SCs into routing tables).
func NewHTTPListener(self pid.PID, cfg config.Config, router relayAttacher) *HTTPListener {
	return &HTTPListener{
		Self:    self,
		Cfg:     cfg,
		Router:  router,
		tracker: newConnTracker(),
	}
}

func (l *HTTPListener) Listen(addr maddr.Address) error {
	host, port, ok := addr.HostPort()
	if !ok {
		return fmt.Errorf("listen: %w: address has no host/port", starconn.ErrRejectedAddress)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return err
	}
	l.listener = ln

	announced, err := maddr.WithOwner(addr, l.Self)
	if err != nil {
		ln.Close()
		return err
	}
	l.addr = announced

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handle)
	l.server = &http.Server{Handler: mux}

	go func() {
		if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			util.LogWarning("listen: http server exited: %v", err)
		}
	}()
	return nil
}

// handle implements the HTTPListener request flow.
func (l *HTTPListener) handle(w http.ResponseWriter, r *http.Request) {
	remoteHost, remotePort, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || remoteHost == "" || remotePort == "" || r.URL == nil {
		http.Error(w, "malformed request", http.StatusInternalServerError)
		return
	}
	signalParam := r.URL.Query().Get("signal")
	if signalParam == "" {
		http.Error(w, "malformed request", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	envelope, err := signal.DecodeFromHTTP(signalParam)
	if err != nil || envelope.Kind != signal.Offer {
		w.WriteHeader(http.StatusOK)
		return
	}

	scTag := SCKind(r.URL.Query().Get("signalling_channel"))
	if scTag == "" {
		scTag = SCKindNone
	}

	conn, err := l.Cfg.EngineFactory.NewReceiver(r.Context(), l.Cfg.ReceiverOptions)
	if err != nil {
		util.LogWarning("listen: %v: %v", starconn.ErrEngineError, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	resolve, scOpen := awaitDeferredReadiness(scTag != SCKindNone)

	if scTag == SCKindPeer || scTag == SCKindRelay {
		kind := relay.PeerSC
		if scTag == SCKindRelay {
			kind = relay.RelaySC
		}
		raw, err := conn.CreateDataChannel(scKindLabelFor(kind))
		if err == nil {
			sc := relay.NewChannel(raw, kind)
			raw.OnOpen(func() {
				resolve()
				if scTag == SCKindRelay && l.Router != nil {
					l.Router.Attach(sc)
				}
			})
		}
	}

	answered := make(chan struct{})
	conn.OnLocalSignal(func(e signal.Envelope) {
		select {
		case <-answered:
			return
		default:
		}
		fmt.Fprint(w, signal.EncodeForHTTP(e))
		close(answered)
	})

	conn.OnReady(func() {
		awaitAppOpen(conn.AppDataChannel(), func() {
			<-scOpen
			remote, err := remoteAddress(remoteHost, remotePort)
			if err != nil {
				return
			}
			c := &starconn.Connection{
				AppDC:         conn.AppDataChannel(),
				RemoteAddress: remote,
				OpenedAt:      time.Now(),
			}
			l.tracker.track(c)
			trackConnClose(conn.AppDataChannel(), func() { l.tracker.untrack(c) })
		})
	})

	if err := conn.FeedSignal(envelope); err != nil {
		util.LogWarning("listen: %v: %v", starconn.ErrEngineError, err)
	}

	select {
	case <-answered:
	case <-r.Context().Done():
	}
}

func remoteAddress(host, port string) (maddr.Address, error) {
	return maddr.Parse(fmt.Sprintf("/ip4/%s/tcp/%s/http/p2p-webrtc-direct", host, port))
}

func trackConnClose(dc engine.DataChannel, fn func()) {
	dc.OnClose(fn)
}

func scKindLabelFor(k relay.Kind) string {
	if k == relay.RelaySC {
		return "relay-sc"
	}
	return "peer-sc"
}

func (l *HTTPListener) Close() error {
	defer l.tracker.emitClose()
	if l.server == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		l.server.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(starconn.CloseTimeout):
	}
	return nil
}

func (l *HTTPListener) Addrs() []maddr.Address {
	if l.addr.String() == "" {
		return nil
	}
	return []maddr.Address{l.addr}
}

func (l *HTTPListener) Connections() <-chan *starconn.Connection { return l.tracker.connCh }
func (l *HTTPListener) Closed() <-chan struct{}               { return l.tracker.closeCh }

// RegisterSignallingChannel satisfies dial.SCRegistry: a RelaySC created by
// this node's own Dialer also gets folded into routing (Relay role); a
// PeerSC is ignored here, since a plain HTTPListener has no inbound PeerSC
// concept beyond relay forwarding.
func (l *HTTPListener) RegisterSignallingChannel(sc *relay.Channel) {
	if sc.Kind() == relay.RelaySC && l.Router != nil {
		l.Router.Attach(sc)
	}
}

// UnregisterSignallingChannel satisfies dial.SCRegistry. Relay routing
// untracks itself via the channel's own close event (see relay.Router),
// so there is nothing further to do here.
func (l *HTTPListener) UnregisterSignallingChannel(sc *relay.Channel) {}
