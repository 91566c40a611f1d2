// Package conn holds the connection record and sentinel errors shared by
// internal/dial, internal/listen, and internal/star, kept in a leaf
// package so those lower layers never need to import the facade package
// itself (internal/star re-exports everything here under its own name for
// callers).
package conn

import (
	"errors"
	"time"

	"github.com/1ureka/webrtc-star/internal/engine"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/xmsg"
)

// CloseTimeout bounds graceful teardown of a listener.
const CloseTimeout = 2 * time.Second

// Connection is the record surrendered to the caller (or to an inbound
// upgrader) once both the application data channel and, if requested, the
// auxiliary SC have reached "open".
type Connection struct {
	AppDC         engine.DataChannel
	RemoteAddress maddr.Address
	OpenedAt      time.Time
}

// Sentinel errors, checkable with errors.Is at every layer boundary.
var (
	ErrAborted          = errors.New("star: aborted")
	ErrRejectedAddress  = errors.New("star: address requires signalling overlay, which is disabled")
	ErrRelayUnavailable = errors.New("star: no open signalling channel to primary relay")
	ErrMalformedRequest = xmsg.ErrMalformedSignal
	ErrEngineError      = errors.New("star: peer engine error")
	ErrChannelClosed    = errors.New("star: channel closed")
)
