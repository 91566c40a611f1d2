package dial

import (
	"sync"

	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/xmsg"
)

// responseBroker demultiplexes ConnectResponse messages arriving on a
// single PeerSC across however many dials are concurrently awaiting one.
// The (src,dst) filter in the awaited response handler disambiguates
// answers for interleaved dials sharing one outbound SC.
type responseBroker struct {
	mu       sync.Mutex
	awaiters map[responseKey]chan<- xmsg.Message
}

type responseKey struct {
	src pid.PID // expected answerer (the dial target)
	dst pid.PID // self
}

func newResponseBroker() *responseBroker {
	return &responseBroker{awaiters: make(map[responseKey]chan<- xmsg.Message)}
}

// register installs a one-shot awaiter for a ConnectResponse from target
// addressed back to self. The returned cancel func removes the awaiter
// ("uninstalled as soon as the awaited response is delivered" also happens
// implicitly, via dispatch deleting the entry it serves).
func (b *responseBroker) register(self, target pid.PID, ch chan<- xmsg.Message) (cancel func()) {
	key := responseKey{src: target, dst: self}
	b.mu.Lock()
	b.awaiters[key] = ch
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.awaiters, key)
		b.mu.Unlock()
	}
}

// dispatch is installed once as the PeerSC's sole OnMessage handler.
func (b *responseBroker) dispatch(raw []byte) {
	msg, err := xmsg.Decode(raw)
	if err != nil || msg.Type != xmsg.TypeConnectResponse {
		return
	}
	key := responseKey{src: msg.Src, dst: msg.Dst}
	b.mu.Lock()
	ch, ok := b.awaiters[key]
	if ok {
		delete(b.awaiters, key)
	}
	b.mu.Unlock()
	if ok {
		select {
		case ch <- msg:
		default:
		}
	}
}
