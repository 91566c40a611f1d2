package relay

import (
	"errors"
	"sync"

	"github.com/1ureka/webrtc-star/internal/healthmon"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/seencache"
	"github.com/1ureka/webrtc-star/internal/util"
	"github.com/1ureka/webrtc-star/internal/xmsg"
)

// ErrProtocolViolation is reported (and the message dropped) when a
// JoinRequest arrives on a RelaySC.
var ErrProtocolViolation = errors.New("relay: JoinRequest on a RelaySC")

// Router owns the peerTable and relayList and implements the
// JoinRequest-handling and forwarding algorithms.
type Router struct {
	seen    *seencache.Cache
	monitor *healthmon.Monitor

	mu        sync.RWMutex
	peerTable map[pid.PID]*Channel
	relayList []*Channel
}

// NewRouter creates an empty Router. seen and monitor may be nil to use
// package defaults (a fresh seencache.Cache with DefaultTTL, and no health
// monitoring; useful in tests that drive Untrack manually).
func NewRouter(seen *seencache.Cache, monitor *healthmon.Monitor) *Router {
	if seen == nil {
		seen = seencache.New(seencache.DefaultTTL)
	}
	return &Router{
		seen:      seen,
		monitor:   monitor,
		peerTable: make(map[pid.PID]*Channel),
	}
}

// Attach registers ch with the router and wires its close handling: the
// data channel's own close event, and (if a monitor is configured) the
// periodic health sweep, both converge on Untrack exactly once.
func (r *Router) Attach(ch *Channel) {
	var once sync.Once
	untrack := func() { once.Do(func() { r.Untrack(ch) }) }

	ch.OnClose(untrack)
	if r.monitor != nil {
		unwatch := r.monitor.Watch(ch, untrack)
		_ = unwatch // router only needs the sweep side; callers close via ch.Close
	}

	if ch.Kind() == RelaySC {
		r.mu.Lock()
		r.relayList = append(r.relayList, ch)
		r.mu.Unlock()
		ch.setState(StateRelayed)
	}

	ch.OnMessage(func(raw []byte) {
		r.handleMessage(ch, raw)
	})
}

func (r *Router) handleMessage(from *Channel, raw []byte) {
	msg, err := xmsg.Decode(raw)
	if err != nil {
		util.LogWarning("relay: dropping malformed message from %v: %v", from, err)
		return
	}

	if msg.Type == xmsg.TypeJoinRequest {
		r.handleJoinRequest(from, msg)
		return
	}

	r.forward(from, msg.Dst, raw)
}

// handleJoinRequest handles an inbound JoinRequest: the first JoinRequest
// on a PeerSC registers it; a JoinRequest on a RelaySC is a protocol
// violation (dropped, logged); a PID re-registering on a different SC has
// the newest registration win.
func (r *Router) handleJoinRequest(from *Channel, msg xmsg.Message) {
	if from.Kind() == RelaySC {
		util.LogWarning("%v", ErrProtocolViolation)
		return
	}

	r.mu.Lock()
	r.peerTable[msg.PeerID] = from
	r.mu.Unlock()

	from.setRemotePID(msg.PeerID)
	from.setState(StateJoined)
}

// forward applies seen-cache dedup, then direct delivery if dst is a known
// peer, else floods the relay list minus the inbound neighbour. Send
// failures are logged and do not abort the fan-out.
func (r *Router) forward(from *Channel, dst pid.PID, raw []byte) {
	if r.seen.Observe(raw) {
		return
	}

	r.mu.RLock()
	target, ok := r.peerTable[dst]
	r.mu.RUnlock()

	if ok {
		if err := target.Send(raw); err != nil {
			util.LogWarning("relay: forward to %s failed: %v", dst, err)
		}
		return
	}

	r.mu.RLock()
	neighbours := make([]*Channel, 0, len(r.relayList))
	for _, rsc := range r.relayList {
		if rsc != from {
			neighbours = append(neighbours, rsc)
		}
	}
	r.mu.RUnlock()

	for _, rsc := range neighbours {
		if err := rsc.Send(raw); err != nil {
			util.LogWarning("relay: flood forward failed: %v", err)
		}
	}
}

// Untrack removes ch from both tables. Idempotent and safe to call from
// multiple triggers (close event, health-monitor sweep, router shutdown).
func (r *Router) Untrack(ch *Channel) {
	r.mu.Lock()
	if p, ok := ch.RemotePID(); ok {
		if current, exists := r.peerTable[p]; exists && current == ch {
			delete(r.peerTable, p)
		}
	}
	for i, rsc := range r.relayList {
		if rsc == ch {
			r.relayList = append(r.relayList[:i], r.relayList[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	ch.setState(StateClosed)
}

// Lookup returns the channel registered for a PID, if any.
func (r *Router) Lookup(p pid.PID) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.peerTable[p]
	return ch, ok
}

// Close tears down every tracked channel and empties both tables.
func (r *Router) Close() {
	r.mu.Lock()
	all := make([]*Channel, 0, len(r.peerTable)+len(r.relayList))
	for _, ch := range r.peerTable {
		all = append(all, ch)
	}
	all = append(all, r.relayList...)
	r.peerTable = make(map[pid.PID]*Channel)
	r.relayList = nil
	r.mu.Unlock()

	for _, ch := range all {
		_ = ch.Close()
	}
}
