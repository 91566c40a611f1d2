// Package dial implements the dial engine: path selection, the HTTP
// offer/answer path, the SC (relayed) path, and PeerSC supervision.
//
// The HTTP exchange generalizes a peer-connection plus single-DataChannel
// setup and a WebSocket-based offer exchange into a single GET/POST
// request/response cycle.
package dial

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/1ureka/webrtc-star/internal/config"
	"github.com/1ureka/webrtc-star/internal/engine"
	"github.com/1ureka/webrtc-star/internal/healthmon"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/relay"
	"github.com/1ureka/webrtc-star/internal/signal"
	starconn "github.com/1ureka/webrtc-star/internal/star/conn"
	"github.com/1ureka/webrtc-star/internal/util"
	"github.com/1ureka/webrtc-star/internal/xmsg"
)

// SCRegistry is the subset of the listen engine the dial engine needs for
// SC supervision: registering a freshly opened PeerSC for inbound use and
// dropping it again once it closes.
type SCRegistry interface {
	RegisterSignallingChannel(sc *relay.Channel)
	UnregisterSignallingChannel(sc *relay.Channel)
}

// path is the outcome of choosePath's decision table.
type path int

const (
	pathRejected path = iota
	pathHTTP
	pathHTTPWithSC
	pathSC
)

// Options bundles the per-dial knobs outside the path-selection table.
// Cancellation itself travels via the ctx argument to Dial.
type Options struct {
	HTTPClient *http.Client
}

// Dialer implements the dial operation. One Dialer is shared by a
// transport facade for its whole lifetime; PrimarySC reports the current
// outbound PeerSC to the configured relay, if any is open.
type Dialer struct {
	Self      pid.PID
	Cfg       config.Config
	Registry  SCRegistry
	Monitor   *healthmon.Monitor
	PrimarySC func() (*relay.Channel, bool)

	broker *responseBroker
}

// NewDialer constructs a Dialer ready to use.
func NewDialer(self pid.PID, cfg config.Config, registry SCRegistry, monitor *healthmon.Monitor, primarySC func() (*relay.Channel, bool)) *Dialer {
	return &Dialer{
		Self:      self,
		Cfg:       cfg,
		Registry:  registry,
		Monitor:   monitor,
		PrimarySC: primarySC,
		broker:    newResponseBroker(),
	}
}

// choosePath implements the path-selection decision table.
func (d *Dialer) choosePath(target maddr.Address) path {
	if !d.Cfg.SignallingEnabled {
		if target.Star() {
			return pathRejected
		}
		return pathHTTP
	}

	if target.Star() {
		return pathSC
	}

	if d.Cfg.Role() == config.RoleRelay {
		return pathHTTPWithSC
	}

	// Peer, signalling enabled, no star marker: HTTP, with a PeerSC
	// created only if the target *is* the primary relay.
	if owner, ok := target.OwnerPID(); ok && owner == d.Cfg.RelayPeerID {
		return pathHTTPWithSC
	}
	return pathHTTP
}

// Dial selects a path and attempts to establish a connection to target.
func (d *Dialer) Dial(ctx context.Context, target maddr.Address, opts Options) (*starconn.Connection, error) {
	switch d.choosePath(target) {
	case pathRejected:
		return nil, starconn.ErrRejectedAddress
	case pathSC:
		return d.dialSC(ctx, target)
	case pathHTTPWithSC:
		kind := relay.PeerSC
		if d.Cfg.Role() == config.RoleRelay {
			kind = relay.RelaySC
		}
		return d.dialHTTP(ctx, target, true, kind, opts)
	default:
		return d.dialHTTP(ctx, target, false, relay.PeerSC, opts)
	}
}

// dialHTTP implements the HTTP offer/answer path.
func (d *Dialer) dialHTTP(ctx context.Context, target maddr.Address, withSC bool, scKind relay.Kind, opts Options) (*starconn.Connection, error) {
	host, port, ok := target.HostPort()
	if !ok {
		return nil, fmt.Errorf("dial: %w: address has no host/port", starconn.ErrRejectedAddress)
	}

	var conn engine.Conn
	conn, err := d.Cfg.EngineFactory.NewInitiator(ctx, d.Cfg.InitiatorOptions)
	if err != nil {
		return nil, fmt.Errorf("dial: %w: %v", starconn.ErrEngineError, err)
	}

	appReady := make(chan struct{})
	conn.AppDataChannel().OnOpen(func() { close(appReady) })

	scReady := make(chan struct{})
	if withSC {
		raw, err := conn.CreateDataChannel(scKindLabel(scKind))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("dial: %w: %v", starconn.ErrEngineError, err)
		}
		sc := relay.NewChannel(raw, scKind)
		raw.OnOpen(func() {
			d.superviseSC(conn, sc, scKind)
			close(scReady)
		})
	} else {
		close(scReady)
	}

	connFail := make(chan error, 1)
	conn.OnError(func(err error) {
		if isNormalClose(err) {
			reportChannelError(err)
			return
		}
		connFail <- err
	})

	answerCh := make(chan signal.Envelope, 1)
	conn.OnLocalSignal(func(e signal.Envelope) {
		if e.Kind != signal.Offer {
			return
		}
		body, err := postOffer(ctx, httpClientOf(opts), host, port, e, scQueryTag(withSC, scKind))
		if err != nil {
			connFail <- err
			return
		}
		if len(body) == 0 {
			return
		}
		answer, err := signal.DecodeFromHTTP(body)
		if err != nil {
			connFail <- err
			return
		}
		answerCh <- answer
	})

	go func() {
		select {
		case a := <-answerCh:
			if err := conn.FeedSignal(a); err != nil {
				connFail <- err
			}
		case <-ctx.Done():
		}
	}()

	if err := allOf(ctx, waitSignal(appReady, connFail), waitSignal(scReady, connFail)); err != nil {
		conn.Close()
		if err == ctx.Err() {
			return nil, starconn.ErrAborted
		}
		return nil, fmt.Errorf("dial: %w: %v", starconn.ErrEngineError, err)
	}

	return &starconn.Connection{
		AppDC:         conn.AppDataChannel(),
		RemoteAddress: target,
		OpenedAt:      time.Now(),
	}, nil
}

// dialSC implements the relayed signalling-channel path.
func (d *Dialer) dialSC(ctx context.Context, target maddr.Address) (*starconn.Connection, error) {
	primary, ok := d.PrimarySC()
	if !ok {
		return nil, starconn.ErrRelayUnavailable
	}
	dstPID, ok := target.DestPID()
	if !ok {
		return nil, fmt.Errorf("dial: %w: star address missing destination PID", starconn.ErrRejectedAddress)
	}

	conn, err := d.Cfg.EngineFactory.NewInitiator(ctx, d.Cfg.InitiatorOptions)
	if err != nil {
		return nil, fmt.Errorf("dial: %w: %v", starconn.ErrEngineError, err)
	}

	appReady := make(chan struct{})
	conn.AppDataChannel().OnOpen(func() { close(appReady) })
	connFail := make(chan error, 1)
	conn.OnError(func(err error) {
		if isNormalClose(err) {
			reportChannelError(err)
			return
		}
		connFail <- err
	})

	responseCh := make(chan xmsg.Message, 1)
	cancel := d.broker.register(d.Self, dstPID, responseCh)

	conn.OnLocalSignal(func(e signal.Envelope) {
		if e.Kind != signal.Offer {
			return
		}
		req := xmsg.ConnectRequest(d.Self, dstPID, e)
		if err := primary.Send(xmsg.Encode(req)); err != nil {
			connFail <- err
		}
	})

	go func() {
		select {
		case resp := <-responseCh:
			if err := conn.FeedSignal(resp.Signal); err != nil {
				connFail <- err
			}
		case <-ctx.Done():
			cancel()
		}
	}()

	if err := allOf(ctx, waitSignal(appReady, connFail)); err != nil {
		conn.Close()
		if err == ctx.Err() {
			return nil, starconn.ErrAborted
		}
		return nil, fmt.Errorf("dial: %w: %v", starconn.ErrEngineError, err)
	}

	dest, err := maddr.WithStarDest(target, dstPID)
	if err != nil {
		dest = target
	}

	return &starconn.Connection{
		AppDC:         conn.AppDataChannel(),
		RemoteAddress: dest,
		OpenedAt:      time.Now(),
	}, nil
}

// superviseSC implements SC supervision: sending the JoinRequest (PeerSC
// only; a JoinRequest on a RelaySC is a protocol violation), broker attachment (so this Dialer's own outbound
// ConnectRequests get their responses routed back), registration with the
// Listen engine, health monitoring, and reopen-on-close.
func (d *Dialer) superviseSC(conn engine.Conn, sc *relay.Channel, kind relay.Kind) {
	sc.OnMessage(d.broker.dispatch)

	if kind == relay.PeerSC {
		if err := sc.Send(xmsg.Encode(xmsg.Join(d.Self))); err != nil {
			util.LogWarning("dial: JoinRequest send failed: %v", err)
		}
	}
	if d.Registry != nil {
		d.Registry.RegisterSignallingChannel(sc)
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if d.Registry != nil {
				d.Registry.UnregisterSignallingChannel(sc)
			}
			d.reopenIfAlive(conn, kind)
		})
	}
	sc.OnClose(cleanup)
	if d.Monitor != nil {
		d.Monitor.Watch(sc, cleanup)
	}
}

// reportChannelError logs an SC-level error, downgrading the
// "Transport channel closed" string to debug level since it is a normal
// close in disguise.
func reportChannelError(err error) {
	if isNormalClose(err) {
		util.LogDebug("dial: signalling channel closed: %v", err)
		return
	}
	util.LogWarning("dial: signalling channel error: %v", err)
}

// reopenIfAlive attempts to reopen a new SC on the still-alive parent
// connection, if that connection is not closed.
func (d *Dialer) reopenIfAlive(conn engine.Conn, kind relay.Kind) {
	raw, err := conn.CreateDataChannel(scKindLabel(kind))
	if err != nil {
		// Parent connection is gone; nothing to reopen onto.
		return
	}
	sc := relay.NewChannel(raw, kind)
	raw.OnOpen(func() { d.superviseSC(conn, sc, kind) })
}

// isNormalClose treats errors whose message equals "Transport channel
// closed" as a normal close, not an error.
func isNormalClose(err error) bool {
	return err != nil && err.Error() == "Transport channel closed"
}

func scKindLabel(k relay.Kind) string {
	if k == relay.RelaySC {
		return "relay-sc"
	}
	return "peer-sc"
}

func scQueryTag(withSC bool, k relay.Kind) string {
	if !withSC {
		return "none"
	}
	if k == relay.RelaySC {
		return "relay"
	}
	return "peer"
}

func postOffer(ctx context.Context, client *http.Client, host, port string, e signal.Envelope, scTag string) (string, error) {
	u := url.URL{Scheme: "http", Host: host + ":" + port}
	q := url.Values{}
	q.Set("signal", signal.EncodeForHTTP(e))
	q.Set("signalling_channel", scTag)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func httpClientOf(opts Options) *http.Client {
	if opts.HTTPClient != nil {
		return opts.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
