package listen

import (
	"context"
	"time"

	"github.com/1ureka/webrtc-star/internal/config"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/relay"
	"github.com/1ureka/webrtc-star/internal/signal"
	starconn "github.com/1ureka/webrtc-star/internal/star/conn"
	"github.com/1ureka/webrtc-star/internal/util"
	"github.com/1ureka/webrtc-star/internal/xmsg"
)

// SigListener has no HTTP server of its own: it is driven entirely by a
// pre-opened PeerSC handed in by the dial engine.
type SigListener struct {
	Self pid.PID
	Cfg  config.Config

	tracker *connTracker
	sc      *relay.Channel
	addr    maddr.Address
}

// NewSigListener constructs a SigListener for the given announced address
// (the listening multi-address plus this node's own PID; see SPEC_FULL.md's
// open-question decision 2 on relayed-connection addressing).
func NewSigListener(self pid.PID, cfg config.Config, addr maddr.Address) *SigListener {
	return &SigListener{Self: self, Cfg: cfg, tracker: newConnTracker(), addr: addr}
}

// RegisterSignallingChannel wires the pre-opened PeerSC so inbound
// ConnectRequests on it reach this listener.
func (l *SigListener) RegisterSignallingChannel(sc *relay.Channel) {
	l.sc = sc
	sc.OnMessage(l.handleMessage)
	sc.OnClose(l.handleSCClose)
}

func (l *SigListener) Listen(addr maddr.Address) error {
	l.addr = addr
	return nil
}

// handleMessage handles each inbound message on the SC. A ConnectRequest
// creates a receiver and sends the local answer back as a ConnectResponse
// on the same SC. Any other kind is ignored.
func (l *SigListener) handleMessage(raw []byte) {
	msg, err := xmsg.Decode(raw)
	if err != nil {
		util.LogWarning("listen: %v", err)
		return
	}
	if msg.Type != xmsg.TypeConnectRequest {
		return
	}
	if msg.Signal.Kind != signal.Offer {
		return
	}

	conn, err := l.Cfg.EngineFactory.NewReceiver(context.Background(), l.Cfg.ReceiverOptions)
	if err != nil {
		util.LogWarning("listen: %v: %v", starconn.ErrEngineError, err)
		return
	}

	conn.OnLocalSignal(func(e signal.Envelope) {
		if e.Kind != signal.Answer {
			return
		}
		resp := xmsg.ConnectResponse(msg.Dst, msg.Src, e)
		if err := l.sc.Send(xmsg.Encode(resp)); err != nil {
			util.LogWarning("listen: ConnectResponse send failed: %v", err)
		}
	})

	conn.OnReady(func() {
		awaitAppOpen(conn.AppDataChannel(), func() {
			dest, err := maddr.WithStarDest(l.addr, msg.Dst)
			if err != nil {
				dest = l.addr
			}
			c := &starconn.Connection{
				AppDC:         conn.AppDataChannel(),
				RemoteAddress: dest,
				OpenedAt:      time.Now(),
			}
			l.tracker.track(c)
			trackConnClose(conn.AppDataChannel(), func() { l.tracker.untrack(c) })
		})
	})

	if err := conn.FeedSignal(msg.Signal); err != nil {
		util.LogWarning("listen: %v: %v", starconn.ErrEngineError, err)
	}
}

// handleSCClose runs when the SC closes: the listener transitions to
// inactive, dropping its multi-address from Addrs() and emitting close.
func (l *SigListener) handleSCClose() {
	l.addr = maddr.Address{}
	l.tracker.emitClose()
}

func (l *SigListener) Close() error {
	if l.sc != nil {
		return l.sc.Close()
	}
	return nil
}

func (l *SigListener) Addrs() []maddr.Address {
	if l.addr.String() == "" {
		return nil
	}
	return []maddr.Address{l.addr}
}

func (l *SigListener) Connections() <-chan *starconn.Connection { return l.tracker.connCh }
func (l *SigListener) Closed() <-chan struct{}               { return l.tracker.closeCh }
