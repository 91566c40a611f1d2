// Package enginefake provides an in-process internal/engine.Factory for
// tests of the dial and listen engines, so they can be exercised without a
// real WebRTC stack.
//
// It follows a linked-pair fake idiom, scaled down: Conns are not linked to
// each other, so the code under test carries signals between them (an
// initiator emits an offer, a receiver fed that offer emits an answer, and
// an initiator fed the answer reports ready). Each Conn's AppDataChannel
// opens once that Conn reports ready; Link wires two DataChannels together.
package enginefake

import (
	"context"
	"errors"
	"sync"

	"github.com/1ureka/webrtc-star/internal/engine"
	"github.com/1ureka/webrtc-star/internal/signal"
)

// Factory is an engine.Factory creating unlinked fake Conns. An offer
// emitted through an initiator's OnLocalSignal callback reaches a receiver
// only if the code under test feeds it into that receiver's FeedSignal.
type Factory struct {
	mu      sync.Mutex
	explode bool // NewInitiator/NewReceiver return an error when true
}

// NewFactory creates a standalone Factory.
func NewFactory() *Factory { return &Factory{} }

// FailNext makes the next NewInitiator/NewReceiver call return an error,
// for exercising engine-setup-failure paths.
func (f *Factory) FailNext() {
	f.mu.Lock()
	f.explode = true
	f.mu.Unlock()
}

func (f *Factory) takeFail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.explode
	f.explode = false
	return v
}

// NewInitiator ignores opts: this fake has no per-attempt knobs to apply it
// to, since it simulates neither ICE servers nor any other transport-level
// setting.
func (f *Factory) NewInitiator(ctx context.Context, opts any) (engine.Conn, error) {
	if f.takeFail() {
		return nil, errors.New("enginefake: forced NewInitiator failure")
	}
	c := newConn()
	c.role = roleInitiator
	return c, nil
}

func (f *Factory) NewReceiver(ctx context.Context, opts any) (engine.Conn, error) {
	if f.takeFail() {
		return nil, errors.New("enginefake: forced NewReceiver failure")
	}
	c := newConn()
	c.role = roleReceiver
	return c, nil
}

type role int

const (
	roleInitiator role = iota
	roleReceiver
)

// Conn is a fake engine.Conn. An initiator-role Conn emits one Offer once
// its OnLocalSignal callback is first registered. On its own, a
// receiver-role Conn answers any fed-in Offer by auto-emitting a matching
// Answer and then ready, which is
// enough to black-box test HTTP/SC listener handlers without a paired
// initiator. Tests that need both sides of a connection instead use Link to
// wire two Conns' data channels together directly.
type Conn struct {
	mu        sync.Mutex
	role      role
	localSig  func(signal.Envelope)
	ready     func()
	errFn     func(error)
	app       *DataChannel
	channels  []*DataChannel
	readySent bool
	offerSent bool
}

func newConn() *Conn {
	return &Conn{app: newDataChannel("app")}
}

func (c *Conn) OnLocalSignal(fn func(signal.Envelope)) {
	c.mu.Lock()
	c.localSig = fn
	offer := c.role == roleInitiator && !c.offerSent
	c.offerSent = true
	c.mu.Unlock()
	if offer {
		go c.EmitLocalSignal(signal.Envelope{Kind: signal.Offer, Payload: []byte("fake-offer")})
	}
}

func (c *Conn) FeedSignal(s signal.Envelope) error {
	c.mu.Lock()
	r := c.role
	c.mu.Unlock()
	switch {
	case r == roleReceiver && s.Kind == signal.Offer:
		go func() {
			c.EmitLocalSignal(signal.Envelope{Kind: signal.Answer, Payload: s.Payload})
			c.EmitReady()
		}()
	case r == roleInitiator && s.Kind == signal.Answer:
		// A real engine reaches readiness once ICE connects after the
		// answer arrives; this fake treats receipt of the answer itself
		// as sufficient, since there is no ICE layer to simulate.
		go c.EmitReady()
	}
	return nil
}

func (c *Conn) OnReady(fn func()) {
	c.mu.Lock()
	c.ready = fn
	c.mu.Unlock()
}

func (c *Conn) OnError(fn func(error)) {
	c.mu.Lock()
	c.errFn = fn
	c.mu.Unlock()
}

func (c *Conn) CreateDataChannel(label string) (engine.DataChannel, error) {
	dc := newDataChannel(label)
	c.mu.Lock()
	c.channels = append(c.channels, dc)
	c.mu.Unlock()
	return dc, nil
}

func (c *Conn) AppDataChannel() engine.DataChannel { return c.app }

func (c *Conn) Close() error {
	c.app.Close()
	c.mu.Lock()
	channels := append([]*DataChannel{}, c.channels...)
	c.mu.Unlock()
	for _, dc := range channels {
		dc.Close()
	}
	return nil
}

// EmitLocalSignal fires the registered OnLocalSignal callback, simulating
// the engine producing an offer/answer/candidate.
func (c *Conn) EmitLocalSignal(e signal.Envelope) {
	c.mu.Lock()
	fn := c.localSig
	c.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// EmitReady fires the registered OnReady callback and opens the app channel
// (and any auxiliary channels already created), matching the real engine's
// "ready implies data channels usable" contract.
func (c *Conn) EmitReady() {
	c.mu.Lock()
	if c.readySent {
		c.mu.Unlock()
		return
	}
	c.readySent = true
	fn := c.ready
	c.app.open()
	channels := append([]*DataChannel{}, c.channels...)
	c.mu.Unlock()
	for _, dc := range channels {
		dc.open()
	}
	if fn != nil {
		fn()
	}
}

// EmitError fires the registered OnError callback.
func (c *Conn) EmitError(err error) {
	c.mu.Lock()
	fn := c.errFn
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// DataChannel is a fake engine.DataChannel. Two DataChannels can be linked
// (see Link) so that Send on one invokes the other's OnMessage callback
// synchronously, sufficient for the single-goroutine-per-step tests this
// package supports.
type DataChannel struct {
	mu      sync.Mutex
	label   string
	state   string
	onMsg   func([]byte)
	onOpen  func()
	onClose func()
	peer    *DataChannel
}

func newDataChannel(label string) *DataChannel {
	return &DataChannel{label: label, state: "connecting"}
}

// Link makes a and b deliver to each other's OnMessage callback.
func Link(a, b *DataChannel) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

func (d *DataChannel) open() {
	d.mu.Lock()
	d.state = "open"
	fn := d.onOpen
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *DataChannel) Send(data []byte) error {
	d.mu.Lock()
	peer := d.peer
	d.mu.Unlock()
	if peer == nil {
		return nil
	}
	peer.mu.Lock()
	fn := peer.onMsg
	peer.mu.Unlock()
	if fn != nil {
		fn(data)
	}
	return nil
}

func (d *DataChannel) OnMessage(fn func([]byte)) {
	d.mu.Lock()
	d.onMsg = fn
	d.mu.Unlock()
}

func (d *DataChannel) OnOpen(fn func()) {
	d.mu.Lock()
	alreadyOpen := d.state == "open"
	d.onOpen = fn
	d.mu.Unlock()
	if alreadyOpen {
		fn()
	}
}

func (d *DataChannel) OnClose(fn func()) {
	d.mu.Lock()
	d.onClose = fn
	d.mu.Unlock()
}

func (d *DataChannel) ReadyState() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *DataChannel) Close() error {
	d.mu.Lock()
	if d.state == "closed" {
		d.mu.Unlock()
		return nil
	}
	d.state = "closed"
	fn := d.onClose
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}
