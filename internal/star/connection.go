// Package star implements the transport facade: Dial, Listen, Filter, and
// role configuration, tying together the dial engine, listen engine, and
// relay router.
//
// This generalizes a single fixed host/client pairing into arbitrary
// dial/listen calls against a configured role and relay.
package star

import (
	"github.com/1ureka/webrtc-star/internal/star/conn"
)

// CloseTimeout bounds graceful teardown of a listener.
const CloseTimeout = conn.CloseTimeout

// Connection is the record surrendered to the caller (or to an inbound
// upgrader) once both the application data channel and, if requested, the
// auxiliary SC have reached "open".
type Connection = conn.Connection
