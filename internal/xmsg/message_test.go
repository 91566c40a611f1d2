package xmsg

import (
	"testing"

	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/signal"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := pid.PID("peer-src")
	dst := pid.PID("peer-dst")
	env := signal.Envelope{Kind: signal.Offer, Payload: []byte("offer-sdp")}

	cases := []struct {
		name string
		msg  Message
	}{
		{"JoinRequest", Join(src)},
		{"ConnectRequest", ConnectRequest(src, dst, env)},
		{"ConnectResponse", ConnectResponse(src, dst, env)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := Encode(tc.msg)
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if decoded.Type != tc.msg.Type {
				t.Errorf("Type mismatch: got %q, want %q", decoded.Type, tc.msg.Type)
			}
			if decoded.Src != tc.msg.Src || decoded.Dst != tc.msg.Dst || decoded.PeerID != tc.msg.PeerID {
				t.Errorf("addressing fields mismatch: got %+v, want %+v", decoded, tc.msg)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("garbage")},
		{"unknown type", []byte(`{"type":"Bogus"}`)},
		{"empty", []byte{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.data); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestDigestStableOverExactBytes(t *testing.T) {
	raw := Encode(Join(pid.PID("abc")))
	d1 := Digest(raw)
	d2 := Digest(append([]byte(nil), raw...))
	if d1 != d2 {
		t.Errorf("Digest not stable over identical bytes: %s != %s", d1, d2)
	}

	other := Encode(Join(pid.PID("xyz")))
	if Digest(other) == d1 {
		t.Error("Digest collided for different messages")
	}
}
