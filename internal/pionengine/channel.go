package pionengine

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/webrtc-star/internal/util"
)

// Backpressure thresholds: pause sends when the SCTP buffer backs up,
// resume once it has drained.
const (
	highWaterMark = 256 * 1024
	lowWaterMark  = 64 * 1024
)

// dataChannel adapts a *webrtc.DataChannel to engine.DataChannel, adding an
// open-gate and backpressure behaviour on top of the raw pion channel.
type dataChannel struct {
	raw *webrtc.DataChannel

	drainSignal chan struct{}

	mu         sync.Mutex
	openOnce   sync.Once
	closeOnce  sync.Once
	openFns    []func()
	closeFns   []func()
}

func wrapDataChannel(raw *webrtc.DataChannel) *dataChannel {
	dc := &dataChannel{
		raw:         raw,
		drainSignal: make(chan struct{}, 1),
	}

	raw.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case dc.drainSignal <- struct{}{}:
		default:
		}
	})

	raw.OnOpen(func() {
		dc.mu.Lock()
		fns := append([]func(){}, dc.openFns...)
		dc.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})

	raw.OnClose(func() {
		dc.mu.Lock()
		fns := append([]func(){}, dc.closeFns...)
		dc.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})

	return dc
}

// Send blocks for backpressure (no context here: internal/engine.DataChannel
// keeps Send synchronous, and a blocked Send cannot be cancelled).
func (dc *dataChannel) Send(data []byte) error {
	if dc.raw.BufferedAmount() > uint64(highWaterMark) {
		<-dc.drainSignal
	}
	if err := dc.raw.Send(data); err != nil {
		return err
	}
	util.Stats.AddSent(len(data))
	return nil
}

func (dc *dataChannel) OnMessage(fn func(data []byte)) {
	dc.raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		util.Stats.AddRecv(len(msg.Data))
		fn(msg.Data)
	})
}

func (dc *dataChannel) OnOpen(fn func()) {
	dc.mu.Lock()
	dc.openFns = append(dc.openFns, fn)
	dc.mu.Unlock()
}

func (dc *dataChannel) OnClose(fn func()) {
	dc.mu.Lock()
	dc.closeFns = append(dc.closeFns, fn)
	dc.mu.Unlock()
}

// ReadyState surfaces pion's reported state as lowercase strings so that
// internal/healthmon can compare against "closed" without a pion import.
func (dc *dataChannel) ReadyState() string {
	switch dc.raw.ReadyState() {
	case webrtc.DataChannelStateConnecting:
		return "connecting"
	case webrtc.DataChannelStateOpen:
		return "open"
	case webrtc.DataChannelStateClosing:
		return "closing"
	case webrtc.DataChannelStateClosed:
		return "closed"
	default:
		return "error"
	}
}

func (dc *dataChannel) Close() error {
	return dc.raw.Close()
}
