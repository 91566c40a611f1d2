package pionengine

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/webrtc-star/internal/engine"
)

// factory implements engine.Factory.
type factory struct {
	cfg Config
}

// NewFactory creates an engine.Factory backed by pion/webrtc/v4.
func NewFactory(cfg Config) engine.Factory {
	return &factory{cfg: cfg}
}

func (f *factory) NewInitiator(ctx context.Context, opts any) (engine.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newConn(f.withOverride(opts), roleInitiator)
}

func (f *factory) NewReceiver(ctx context.Context, opts any) (engine.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newConn(f.withOverride(opts), roleReceiver)
}

// withOverride applies a per-attempt Config passed as InitiatorOptions or
// ReceiverOptions, overriding ICEServers and Setting on top of the
// factory's own Config. Any other type (including nil) is ignored, leaving
// f.cfg untouched.
func (f *factory) withOverride(opts any) Config {
	override, ok := opts.(Config)
	if !ok {
		if p, ok := opts.(*Config); ok && p != nil {
			override = *p
		} else {
			return f.cfg
		}
	}
	cfg := f.cfg
	if len(override.ICEServers) > 0 {
		cfg.ICEServers = override.ICEServers
	}
	cfg.Setting = override.Setting
	return cfg
}

func errConnectionState(s webrtc.PeerConnectionState) error {
	return fmt.Errorf("pionengine: peer connection %s", s.String())
}
