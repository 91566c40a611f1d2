// Package signal defines the offer/answer/candidate envelope exchanged
// between the signalling overlay and the peer engine.
package signal

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Kind discriminates the three signal shapes the peer engine emits/consumes.
// Only Offer triggers state transitions in the dial/listen engines; Answer
// and Candidate are forwarded opaquely.
type Kind string

const (
	Offer     Kind = "offer"
	Answer    Kind = "answer"
	Candidate Kind = "candidate"
)

// Envelope wraps a single signal emitted by, or fed into, the peer engine.
type Envelope struct {
	Kind    Kind   `json:"kind"`
	Payload []byte `json:"payload"`
}

// wireEnvelope is the JSON-on-the-wire shape: Payload is binary, so it is
// base64-encoded inside the JSON object (the envelope itself is additionally
// base58-wrapped only at the HTTP transport boundary, by EncodeForHTTP).
type wireEnvelope struct {
	Kind    Kind   `json:"kind"`
	Payload string `json:"payload"`
}

// ErrMalformedSignal is returned when bytes parse as JSON but are not a
// recognised envelope (e.g. an empty or unknown kind).
var ErrMalformedSignal = errors.New("signal: malformed envelope")

// ErrCodecError is returned when bytes do not even parse as JSON.
var ErrCodecError = errors.New("signal: codec error")

// Encode serialises an Envelope to its on-the-wire JSON form.
func Encode(e Envelope) []byte {
	w := wireEnvelope{
		Kind:    e.Kind,
		Payload: base64.StdEncoding.EncodeToString(e.Payload),
	}
	data, _ := json.Marshal(w) // wireEnvelope always marshals cleanly
	return data
}

// Decode parses the on-the-wire JSON form back into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrCodecError, err)
	}
	switch w.Kind {
	case Offer, Answer, Candidate:
	default:
		return Envelope{}, fmt.Errorf("%w: unrecognised kind %q", ErrMalformedSignal, w.Kind)
	}
	payload, err := base64.StdEncoding.DecodeString(w.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrCodecError, err)
	}
	return Envelope{Kind: w.Kind, Payload: payload}, nil
}

// EncodeForHTTP wraps an envelope in base58 for binary-safe transport as an
// HTTP query parameter.
func EncodeForHTTP(e Envelope) string {
	return base58.Encode(Encode(e))
}

// DecodeFromHTTP reverses EncodeForHTTP.
func DecodeFromHTTP(s string) (Envelope, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrCodecError, err)
	}
	return Decode(raw)
}
