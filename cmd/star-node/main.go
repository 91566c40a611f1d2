// star-node: CLI entry point.
//
// Runs a single node of the signalling overlay: a Peer that dials through
// a Relay, or the Relay itself. No bespoke out-of-band signaling phase is
// needed beyond the HTTP offer/answer endpoint this tool serves directly.
//
// It is launched non-interactively via CLI flags (-role, -listen, -dial,
// -signalling, -relay-pid).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/webrtc-star/internal/config"
	"github.com/1ureka/webrtc-star/internal/dial"
	"github.com/1ureka/webrtc-star/internal/maddr"
	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/pionengine"
	"github.com/1ureka/webrtc-star/internal/star"
	"github.com/1ureka/webrtc-star/internal/util"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	role := flag.String("role", "peer", "Role: peer or relay")
	listenAddr := flag.String("listen", "", "Multi-address to listen on (e.g. /ip4/0.0.0.0/tcp/12345/http/p2p-webrtc-direct)")
	dialAddr := flag.String("dial", "", "Multi-address to dial once and echo a test message to")
	signalling := flag.Bool("signalling", false, "Enable the signalling overlay (SC paths)")
	relayPID := flag.String("relay-pid", "", "Primary relay's PID (required for a Peer with -signalling)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("star-node v%s", version))

	self := pid.New()
	util.LogInfo("self PID: %s", self)

	nodeRole := config.RolePeer
	if *role == "relay" {
		nodeRole = config.RoleRelay
	}

	cfg := config.Config{
		SignallingEnabled: *signalling,
		NodeType:          nodeRole,
		RelayPeerID:       pid.PID(*relayPID),
		EngineFactory:     pionengine.NewFactory(pionengine.DefaultConfig()),
	}

	util.StartStatsReporter(ctx)

	transport := star.New(self, cfg)
	defer transport.Close()

	if *listenAddr != "" {
		addr, err := maddr.Parse(*listenAddr)
		if err != nil {
			util.LogError("invalid -listen address: %v", err)
			os.Exit(1)
		}
		l, err := transport.Listen(addr)
		if err != nil {
			util.LogError("listen failed: %v", err)
			os.Exit(1)
		}
		util.LogSuccess("listening: %v", l.Addrs())
		go echoLoop(l)
	}

	if *dialAddr != "" {
		addr, err := maddr.Parse(*dialAddr)
		if err != nil {
			util.LogError("invalid -dial address: %v", err)
			os.Exit(1)
		}
		go runDial(ctx, transport, addr)
	}

	<-ctx.Done()
	util.LogInfo("shutting down")
}

// echoLoop implements the S1/S3/S4 echo application: every inbound
// connection's application DC gets its messages bounced straight back.
func echoLoop(l star.Listener) {
	for {
		select {
		case c, ok := <-l.Connections():
			if !ok {
				return
			}
			c.AppDC.OnMessage(func(data []byte) {
				if err := c.AppDC.Send(data); err != nil {
					util.LogWarning("echo: send failed: %v", err)
				}
			})
		case <-l.Closed():
			return
		}
	}
}

func runDial(ctx context.Context, transport *star.Transport, addr maddr.Address) {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c, err := transport.Dial(dialCtx, addr, dial.Options{})
	if err != nil {
		util.LogError("dial failed: %v", err)
		return
	}
	util.LogSuccess("dial succeeded: %s", c.RemoteAddress)

	replies := make(chan []byte, 1)
	c.AppDC.OnMessage(func(data []byte) { replies <- data })

	payload := []byte("some data")
	if err := c.AppDC.Send(payload); err != nil {
		util.LogError("send failed: %v", err)
		return
	}

	select {
	case reply := <-replies:
		if string(reply) == string(payload) {
			util.LogSuccess("echo round-trip OK (%d bytes)", len(reply))
		} else {
			util.LogWarning("echo mismatch: got %q", reply)
		}
	case <-ctx.Done():
	}
}
