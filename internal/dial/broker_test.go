package dial

import (
	"testing"
	"time"

	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/signal"
	"github.com/1ureka/webrtc-star/internal/xmsg"
)

func TestBrokerDispatchesToMatchingAwaiter(t *testing.T) {
	b := newResponseBroker()
	self := pid.New()
	target := pid.New()

	ch := make(chan xmsg.Message, 1)
	b.register(self, target, ch)

	resp := xmsg.ConnectResponse(target, self, signal.Envelope{Kind: signal.Answer, Payload: []byte("x")})
	b.dispatch(xmsg.Encode(resp))

	select {
	case got := <-ch:
		if got.Src != target || got.Dst != self {
			t.Errorf("unexpected message: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched response")
	}
}

func TestBrokerIgnoresUnmatchedResponse(t *testing.T) {
	b := newResponseBroker()
	self := pid.New()
	target := pid.New()
	stranger := pid.New()

	ch := make(chan xmsg.Message, 1)
	b.register(self, target, ch)

	resp := xmsg.ConnectResponse(stranger, self, signal.Envelope{Kind: signal.Answer, Payload: []byte("x")})
	b.dispatch(xmsg.Encode(resp))

	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery for unmatched (src,dst): %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerDisambiguatesConcurrentAwaiters(t *testing.T) {
	b := newResponseBroker()
	self := pid.New()
	targetA := pid.New()
	targetB := pid.New()

	chA := make(chan xmsg.Message, 1)
	chB := make(chan xmsg.Message, 1)
	b.register(self, targetA, chA)
	b.register(self, targetB, chB)

	b.dispatch(xmsg.Encode(xmsg.ConnectResponse(targetB, self, signal.Envelope{Kind: signal.Answer, Payload: []byte("b")})))
	b.dispatch(xmsg.Encode(xmsg.ConnectResponse(targetA, self, signal.Envelope{Kind: signal.Answer, Payload: []byte("a")})))

	gotA := <-chA
	gotB := <-chB
	if gotA.Src != targetA {
		t.Errorf("chA: got src %v, want %v", gotA.Src, targetA)
	}
	if gotB.Src != targetB {
		t.Errorf("chB: got src %v, want %v", gotB.Src, targetB)
	}
}

func TestBrokerCancelRemovesAwaiter(t *testing.T) {
	b := newResponseBroker()
	self := pid.New()
	target := pid.New()

	ch := make(chan xmsg.Message, 1)
	cancel := b.register(self, target, ch)
	cancel()

	resp := xmsg.ConnectResponse(target, self, signal.Envelope{Kind: signal.Answer, Payload: []byte("x")})
	b.dispatch(xmsg.Encode(resp))

	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery after cancel: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}
