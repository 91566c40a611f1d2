// Package pionengine implements internal/engine's abstractions on top of
// github.com/pion/webrtc/v4. It is the only package in this module that
// imports pion.
package pionengine

import (
	"github.com/pion/webrtc/v4"
)

// Config holds the ICE server list and pion SettingEngine for a factory. A
// Config (or *Config) passed as the initiatorOptions/receiverOptions bag
// overrides them for one attempt (see factory.withOverride). A fixed Google
// STUN pair is the default, but it is configurable.
type Config struct {
	ICEServers []string
	Setting    webrtc.SettingEngine
}

// defaultICEServers is the default STUN server list.
var defaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// DefaultConfig returns a Config with the default STUN servers.
func DefaultConfig() Config {
	return Config{ICEServers: defaultICEServers}
}

func (c Config) newPeerConnection() (*webrtc.PeerConnection, error) {
	servers := c.ICEServers
	if len(servers) == 0 {
		servers = defaultICEServers
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(c.Setting))
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: servers}},
	})
}
