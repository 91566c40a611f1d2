// Package relay implements the relay router: the per-peer and
// peer-to-peer signalling-channel tables, the JoinRequest/forwarding
// algorithm, and channel untracking.
//
// The table shape is a mutex-guarded map with Register/Unregister/Route
// methods, generalized from a simple id-to-channel map to
// map[pid.PID]*Channel plus an ordered relay-neighbour list.
package relay

import (
	"fmt"
	"sync"

	"github.com/1ureka/webrtc-star/internal/engine"
	"github.com/1ureka/webrtc-star/internal/pid"
)

// Kind classifies an SC by who is on each end.
type Kind int

const (
	PeerSC Kind = iota
	RelaySC
)

// State is the per-SC state machine.
type State int

const (
	StateAttached State = iota
	StateJoined           // PeerSC only
	StateRelayed          // RelaySC only
	StateClosing
	StateClosed
)

// Channel wraps an engine.DataChannel with the routing metadata the relay
// router needs: its kind, state, and (once known) the remote PID.
type Channel struct {
	dc   engine.DataChannel
	kind Kind

	mu         sync.Mutex
	state      State
	remote     pid.PID
	haveRemote bool
}

// String renders a compact identifier for logging.
func (c *Channel) String() string {
	kind := "peer"
	if c.kind == RelaySC {
		kind = "relay"
	}
	if p, ok := c.RemotePID(); ok {
		return fmt.Sprintf("%sSC(%s)", kind, p)
	}
	return fmt.Sprintf("%sSC(unjoined)", kind)
}

// NewChannel wraps dc as an SC of the given kind, freshly attached.
func NewChannel(dc engine.DataChannel, kind Kind) *Channel {
	return &Channel{dc: dc, kind: kind, state: StateAttached}
}

// Kind reports whether this is a PeerSC or RelaySC.
func (c *Channel) Kind() Kind { return c.kind }

// Send transmits raw bytes on the underlying data channel.
func (c *Channel) Send(raw []byte) error { return c.dc.Send(raw) }

// OnMessage proxies to the underlying data channel.
func (c *Channel) OnMessage(fn func([]byte)) { c.dc.OnMessage(fn) }

// OnClose proxies to the underlying data channel.
func (c *Channel) OnClose(fn func()) { c.dc.OnClose(fn) }

// ReadyState satisfies internal/healthmon.Watchable.
func (c *Channel) ReadyState() string { return c.dc.ReadyState() }

// Close closes the underlying data channel and marks the state terminal.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	return c.dc.Close()
}

// State returns the current state-machine state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RemotePID returns the PID registered for this channel by a JoinRequest,
// if any.
func (c *Channel) RemotePID() (pid.PID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote, c.haveRemote
}

func (c *Channel) setRemotePID(p pid.PID) {
	c.mu.Lock()
	c.remote = p
	c.haveRemote = true
	c.mu.Unlock()
}
