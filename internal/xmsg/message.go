// Package xmsg implements the signalling-message wire format: JoinRequest,
// ConnectRequest, and ConnectResponse, carried as a self-describing tagged
// union so a relay can route on a `dst` field without needing to know the
// `signal` payload's shape.
//
// A single flat struct with every field optional (Type/SDP/Candidate) would
// also work; xmsg instead uses three variants and a nested signal envelope
// instead of a bare SDP string, since this overlay forwards signals it
// never interprets.
package xmsg

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/1ureka/webrtc-star/internal/pid"
	"github.com/1ureka/webrtc-star/internal/signal"
)

// Type discriminates the three signalling-message shapes.
type Type string

const (
	TypeJoinRequest     Type = "JoinRequest"
	TypeConnectRequest  Type = "ConnectRequest"
	TypeConnectResponse Type = "ConnectResponse"
)

// Message is the tagged union of signalling-message shapes. Exactly one of
// the payload shapes is meaningful, selected by Type.
type Message struct {
	Type Type `json:"type"`

	// JoinRequest
	PeerID pid.PID `json:"peerId,omitempty"`

	// ConnectRequest / ConnectResponse
	Src    pid.PID        `json:"src,omitempty"`
	Dst    pid.PID        `json:"dst,omitempty"`
	Signal signal.Envelope `json:"signal,omitempty"`
}

// ErrMalformedSignal is returned when the payload parses as JSON but carries
// an unrecognised Type.
var ErrMalformedSignal = errors.New("xmsg: malformed signalling message")

// ErrCodecError is returned when the payload does not parse as JSON at all.
var ErrCodecError = errors.New("xmsg: codec error")

// Join builds a JoinRequest.
func Join(self pid.PID) Message {
	return Message{Type: TypeJoinRequest, PeerID: self}
}

// ConnectRequest builds an offer-carrying ConnectRequest.
func ConnectRequest(src, dst pid.PID, sig signal.Envelope) Message {
	return Message{Type: TypeConnectRequest, Src: src, Dst: dst, Signal: sig}
}

// ConnectResponse builds an answer-carrying ConnectResponse.
func ConnectResponse(src, dst pid.PID, sig signal.Envelope) Message {
	return Message{Type: TypeConnectResponse, Src: src, Dst: dst, Signal: sig}
}

// Encode serialises a Message to its on-the-wire bytes.
func Encode(m Message) []byte {
	data, _ := json.Marshal(m)
	return data
}

// Decode parses on-the-wire bytes into a Message. Unknown Type values are
// surfaced as ErrMalformedSignal so the caller drops the message rather
// than acting on it.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrCodecError, err)
	}
	switch m.Type {
	case TypeJoinRequest, TypeConnectRequest, TypeConnectResponse:
	default:
		return Message{}, fmt.Errorf("%w: unrecognised type %q", ErrMalformedSignal, m.Type)
	}
	return m, nil
}

// Digest computes a strong hash over the exact on-the-wire bytes of a
// message, used by the seen-cache. It MUST be computed over the bytes as
// received, never a re-serialised form, so that different relays observing
// the same forwarded message produce the same digest regardless of
// field-ordering quirks in their own JSON encoder.
func Digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
