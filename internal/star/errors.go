package star

import "github.com/1ureka/webrtc-star/internal/star/conn"

// Sentinel errors re-exported from internal/star/conn so callers can write
// star.ErrAborted etc. while internal/dial and internal/listen depend only
// on the leaf package.
var (
	ErrAborted          = conn.ErrAborted
	ErrRejectedAddress  = conn.ErrRejectedAddress
	ErrRelayUnavailable = conn.ErrRelayUnavailable
	ErrMalformedRequest = conn.ErrMalformedRequest
	ErrEngineError      = conn.ErrEngineError
	ErrChannelClosed    = conn.ErrChannelClosed
)
