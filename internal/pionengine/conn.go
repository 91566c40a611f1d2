package pionengine

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/webrtc-star/internal/engine"
	"github.com/1ureka/webrtc-star/internal/signal"
)

// role selects whether a conn produces the offer or the answer. Only the
// offer triggers state transitions downstream.
type role int

const (
	roleInitiator role = iota
	roleReceiver
)

// conn implements engine.Conn, wrapping a single *webrtc.PeerConnection:
// OnICECandidate trickling, OnConnectionStateChange bookkeeping, and
// OnOpen-gated readiness, generalized from one fixed tunnel DataChannel to
// whatever local signals and channels the caller asks for.
type conn struct {
	pc   *webrtc.PeerConnection
	role role
	cfg  Config

	mu          sync.Mutex
	localSigFns []func(signal.Envelope)
	readyFns    []func()
	errFns      []func(error)
	readyOnce   sync.Once

	appDC   *dataChannel
	appOnce sync.Once
}

// appChannelLabel is the label pion negotiates for the primary application
// data channel.
const appChannelLabel = "app"

func newConn(cfg Config, r role) (*conn, error) {
	pc, err := cfg.newPeerConnection()
	if err != nil {
		return nil, err
	}
	c := &conn{pc: pc, role: r, cfg: cfg}

	pc.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			return
		}
		payload, _ := json.Marshal(ice.ToJSON())
		c.emitLocal(signal.Envelope{Kind: signal.Candidate, Payload: payload})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateConnected:
			c.emitReady()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			c.emitError(errConnectionState(s))
		}
	})

	switch r {
	case roleInitiator:
		// The initiator creates the application DataChannel up front so
		// its negotiation rides the first offer, then immediately offers.
		raw, err := pc.CreateDataChannel(appChannelLabel, nil)
		if err != nil {
			pc.Close()
			return nil, err
		}
		c.appOnce.Do(func() {
			c.mu.Lock()
			c.appDC = wrapDataChannel(raw)
			c.mu.Unlock()
		})
		if err := c.createOffer(); err != nil {
			pc.Close()
			return nil, err
		}

	case roleReceiver:
		// The receiver's application DataChannel arrives once the remote
		// offer is applied and pion negotiates the channel in.
		pc.OnDataChannel(func(raw *webrtc.DataChannel) {
			if raw.Label() != appChannelLabel {
				return
			}
			c.appOnce.Do(func() {
				c.mu.Lock()
				c.appDC = wrapDataChannel(raw)
				c.mu.Unlock()
			})
		})
	}

	return c, nil
}

func (c *conn) emitLocal(e signal.Envelope) {
	c.mu.Lock()
	fns := append([]func(signal.Envelope){}, c.localSigFns...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (c *conn) emitReady() {
	c.readyOnce.Do(func() {
		c.mu.Lock()
		fns := append([]func(){}, c.readyFns...)
		c.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
}

func (c *conn) emitError(err error) {
	c.mu.Lock()
	fns := append([]func(error){}, c.errFns...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (c *conn) OnLocalSignal(fn func(signal.Envelope)) {
	c.mu.Lock()
	c.localSigFns = append(c.localSigFns, fn)
	c.mu.Unlock()
}

func (c *conn) OnReady(fn func()) {
	c.mu.Lock()
	c.readyFns = append(c.readyFns, fn)
	c.mu.Unlock()
}

func (c *conn) OnError(fn func(error)) {
	c.mu.Lock()
	c.errFns = append(c.errFns, fn)
	c.mu.Unlock()
}

// FeedSignal applies a remote signal. Offers/answers set the remote
// description (and, for a receiver seeing the first offer, trigger local
// answer creation); candidates are added directly.
func (c *conn) FeedSignal(s signal.Envelope) error {
	switch s.Kind {
	case signal.Offer:
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer, SDP: string(s.Payload),
		}); err != nil {
			return err
		}
		if c.role == roleReceiver {
			return c.createAndSendAnswer()
		}
		return nil

	case signal.Answer:
		return c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer, SDP: string(s.Payload),
		})

	case signal.Candidate:
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal(s.Payload, &init); err != nil {
			return err
		}
		return c.pc.AddICECandidate(init)

	default:
		// Unspecified envelope kinds outside offer/answer/candidate are
		// silently dropped, covering any stray out-of-flow signal traffic.
		return nil
	}
}

// createOffer is called by the dial engine once the app DC (and, if
// requested, the SC) have been created, to start the initiator side.
func (c *conn) createOffer() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	c.emitLocal(signal.Envelope{Kind: signal.Offer, Payload: []byte(offer.SDP)})
	return nil
}

func (c *conn) createAndSendAnswer() error {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	c.emitLocal(signal.Envelope{Kind: signal.Answer, Payload: []byte(answer.SDP)})
	return nil
}

func (c *conn) AppDataChannel() engine.DataChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appDC == nil {
		return nil
	}
	return c.appDC
}

func (c *conn) CreateDataChannel(label string) (engine.DataChannel, error) {
	raw, err := c.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return wrapDataChannel(raw), nil
}

func (c *conn) Close() error {
	return c.pc.Close()
}
