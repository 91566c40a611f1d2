package listen

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/1ureka/webrtc-star/internal/config"
	"github.com/1ureka/webrtc-star/internal/enginefake"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/signal"
)

func mustAddr(t *testing.T, s string) maddr.Address {
	t.Helper()
	a, err := maddr.Parse(s)
	if err != nil {
		t.Fatalf("maddr.Parse(%q): %v", s, err)
	}
	return a
}

func TestHTTPListenerAnswersOffer(t *testing.T) {
	factory := enginefake.NewFactory()
	cfg := config.Config{NodeType: config.RolePeer, EngineFactory: factory}
	l := NewHTTPListener(pid.New(), cfg, nil)

	if err := l.Listen(mustAddr(t, "/ip4/127.0.0.1/tcp/0/http/p2p-webrtc-direct")); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	addr := l.Addrs()[0]
	host, port, _ := addr.HostPort()
	base := "http://" + host + ":" + port + "/"

	offer := signal.Envelope{Kind: signal.Offer, Payload: []byte("offer-sdp")}
	resp, err := http.Get(base + "?signal=" + signal.EncodeForHTTP(offer))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	answer, err := signal.DecodeFromHTTP(string(body))
	if err != nil {
		t.Fatalf("DecodeFromHTTP(%q): %v", body, err)
	}
	if answer.Kind != signal.Answer {
		t.Errorf("Kind: got %v, want Answer", answer.Kind)
	}

	select {
	case c := <-l.Connections():
		if c.RemoteAddress.String() == "" {
			t.Error("expected a non-empty remote address on the tracked connection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tracked connection")
	}
}

func TestHTTPListenerRejectsMalformedRequest(t *testing.T) {
	factory := enginefake.NewFactory()
	cfg := config.Config{NodeType: config.RolePeer, EngineFactory: factory}
	l := NewHTTPListener(pid.New(), cfg, nil)

	if err := l.Listen(mustAddr(t, "/ip4/127.0.0.1/tcp/0/http/p2p-webrtc-direct")); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	addr := l.Addrs()[0]
	host, port, _ := addr.HostPort()

	resp, err := http.Get("http://" + host + ":" + port + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}
