package pionengine

import (
	"reflect"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestWithOverrideIgnoresUnknownOptionType(t *testing.T) {
	f := &factory{cfg: Config{ICEServers: []string{"stun:base.example:3478"}}}

	got := f.withOverride("not a pionengine.Config")
	if !reflect.DeepEqual(got, f.cfg) {
		t.Fatalf("withOverride with an unrelated type: got %+v, want unchanged %+v", got, f.cfg)
	}

	got = f.withOverride(nil)
	if !reflect.DeepEqual(got, f.cfg) {
		t.Fatalf("withOverride(nil): got %+v, want unchanged %+v", got, f.cfg)
	}
}

func TestWithOverrideAppliesICEServers(t *testing.T) {
	f := &factory{cfg: Config{ICEServers: []string{"stun:base.example:3478"}}}

	override := Config{ICEServers: []string{"stun:override.example:3478"}}
	got := f.withOverride(override)
	if !reflect.DeepEqual(got.ICEServers, override.ICEServers) {
		t.Fatalf("ICEServers: got %v, want %v", got.ICEServers, override.ICEServers)
	}

	gotPtr := f.withOverride(&override)
	if !reflect.DeepEqual(gotPtr.ICEServers, override.ICEServers) {
		t.Fatalf("ICEServers via pointer: got %v, want %v", gotPtr.ICEServers, override.ICEServers)
	}
}

func TestWithOverrideKeepsBaseICEServersWhenOmitted(t *testing.T) {
	f := &factory{cfg: Config{ICEServers: []string{"stun:base.example:3478"}}}

	got := f.withOverride(Config{Setting: webrtc.SettingEngine{}})
	if !reflect.DeepEqual(got.ICEServers, f.cfg.ICEServers) {
		t.Fatalf("ICEServers: got %v, want base %v unchanged", got.ICEServers, f.cfg.ICEServers)
	}
}
