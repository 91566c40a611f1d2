// Package engine defines the abstraction boundary for the "peer engine":
// the external interactive-connection-establishment library treated as out
// of scope. The signalling overlay consumes exactly a fixed set of
// capabilities (create-initiator, create-receiver, feed-signal,
// emit-local-signal, emit-ready, emit-error, close, and
// auxiliary-data-channel creation) and nothing else, so that no package
// above this one needs to import a concrete WebRTC library.
//
// internal/pionengine provides the concrete implementation used by this
// module, on top of pion/webrtc/v4.
package engine

import (
	"context"

	"github.com/1ureka/webrtc-star/internal/signal"
)

// DataChannel is a reliable, ordered, bidirectional byte-message duct
// carried over an established connection: the shape required of both the
// application data channel and any auxiliary signalling channel.
type DataChannel interface {
	// Send transmits a single message.
	Send(data []byte) error
	// OnMessage registers the inbound-message callback.
	OnMessage(fn func(data []byte))
	// OnOpen registers a callback fired once when the channel transitions
	// to open.
	OnOpen(fn func())
	// OnClose registers a callback fired once when the channel transitions
	// to closed. The engine is not always reliable about firing this;
	// callers still need the health monitor.
	OnClose(fn func())
	// ReadyState reports the engine's last-observed state: "connecting",
	// "open", "closing", or "closed".
	ReadyState() string
	// Close closes the channel.
	Close() error
}

// Conn is a single establishment attempt (initiator or receiver side). It
// emits local signals as they are produced (offer first, then trickled
// candidates), accepts remote signals fed back in, and reports readiness or
// failure of the underlying connection.
type Conn interface {
	// OnLocalSignal registers a callback invoked for every signal the
	// engine produces locally. The first call for an initiator is always
	// an Offer; for a receiver, the first call is always an Answer.
	OnLocalSignal(fn func(signal.Envelope))
	// FeedSignal delivers a remote signal (offer, answer, or candidate)
	// into the engine.
	FeedSignal(s signal.Envelope) error
	// OnReady registers a callback invoked once the underlying connection
	// is established and ready for data-channel traffic.
	OnReady(fn func())
	// OnError registers a callback invoked if establishment fails.
	OnError(fn func(error))
	// CreateDataChannel opens an auxiliary data channel (used for the
	// signalling channel) on top of this connection.
	CreateDataChannel(label string) (DataChannel, error)
	// AppDataChannel returns the primary application data channel created
	// automatically when the attempt was constructed. On the initiator side
	// it is available immediately; on the receiver side it becomes
	// available once the remote peer's channel is negotiated in (callers
	// should not call this until after OnReady or a dedicated channel
	// notification; internal/listen calls it only from its OnReady
	// callback).
	AppDataChannel() DataChannel
	// Close tears down the attempt and any data channels created on it.
	Close() error
}

// Factory creates initiator and receiver establishment attempts. A single
// Factory is configured once (with STUN servers, ICE options, etc. opaque to
// this package) and reused for every dial/listen attempt. opts carries the
// config package's InitiatorOptions/ReceiverOptions bag through unexamined;
// a concrete Factory decides whether and how to interpret it.
type Factory interface {
	// NewInitiator starts an attempt where the local side produces the
	// offer (the dialer's role).
	NewInitiator(ctx context.Context, opts any) (Conn, error)
	// NewReceiver starts an attempt where the local side produces the
	// answer (the listener's role).
	NewReceiver(ctx context.Context, opts any) (Conn, error)
}
