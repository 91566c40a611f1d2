// Package pid defines the opaque peer-identity type shared by every
// signalling component.
package pid

import "github.com/google/uuid"

// PID is an opaque peer identity. Equality is by bytes.
type PID string

// Empty reports whether p carries no identity.
func (p PID) Empty() bool { return p == "" }

// String satisfies fmt.Stringer.
func (p PID) String() string { return string(p) }

// New generates a fresh random PID. Nodes that are not configured with a
// stable identity (e.g. an ephemeral dialing peer) call this once at
// construction.
func New() PID {
	return PID(uuid.NewString())
}
