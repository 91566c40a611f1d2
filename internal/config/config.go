// Package config holds the transport facade's configuration.
package config

import (
	"github.com/1ureka/webrtc-star/internal/engine"
	"github.com/1ureka/webrtc-star/internal/pid"
)

// Role is the node's fixed-at-construction role.
type Role string

const (
	RolePeer  Role = "peer"
	RoleRelay Role = "relay"
)

// Config is recognised by the transport facade.
type Config struct {
	// SignallingEnabled turns on SC paths (dial/listen over relayed SCs
	// rather than HTTP alone).
	SignallingEnabled bool

	// NodeType defaults to RolePeer when left zero.
	NodeType Role

	// RelayPeerID is required when SignallingEnabled && NodeType==RolePeer.
	RelayPeerID pid.PID

	// EngineFactory is the external peer engine. Required.
	EngineFactory engine.Factory

	// InitiatorOptions / ReceiverOptions are opaque bags forwarded
	// unexamined to EngineFactory.NewInitiator/NewReceiver on every dial
	// or listen attempt; this package does not interpret them.
	InitiatorOptions any
	ReceiverOptions  any
}

// Role returns the configured role, defaulting to Peer.
func (c Config) Role() Role {
	if c.NodeType == "" {
		return RolePeer
	}
	return c.NodeType
}
