// Package transport adapts a WebRTC data channel into the small contract the
// rest of the program depends on: endpoints addressed by rendezvous
// identifier, and ordered reliable channels with open/data/close/error
// events. Everything above this package is transport-agnostic, which is also
// what makes the state machines testable on in-memory fakes.
package transport

import (
	"context"
	"errors"
)

// Contract errors surfaced by endpoint creation and dialing.
var (
	// ErrIDInUse means the rendezvous infrastructure rejected the endpoint
	// identifier because another live endpoint holds it.
	ErrIDInUse = errors.New("endpoint id already in use")

	// ErrPeerAbsent means the dialed identifier is not registered.
	ErrPeerAbsent = errors.New("remote endpoint not found")
)

// ConnState mirrors the raw ICE connectivity state of a channel's underlying
// link. The failure monitor keys off these values.
type ConnState string

const (
	StateNew          ConnState = "new"
	StateChecking     ConnState = "checking"
	StateConnected    ConnState = "connected"
	StateCompleted    ConnState = "completed"
	StateDisconnected ConnState = "disconnected"
	StateFailed       ConnState = "failed"
	StateClosed       ConnState = "closed"
)

// Connector creates endpoints against the rendezvous infrastructure.
type Connector interface {
	// CreateEndpoint claims id. Fails with ErrIDInUse when the id is held
	// by another live endpoint.
	CreateEndpoint(ctx context.Context, id string) (Endpoint, error)

	// CreateAnonymousEndpoint claims a fresh transport-assigned identifier,
	// used by joiners who never need a human-shareable address.
	CreateAnonymousEndpoint(ctx context.Context) (Endpoint, error)
}

// Endpoint is a local addressable rendezvous handle. At most one endpoint is
// live per peer; callers destroy the previous one before creating the next.
type Endpoint interface {
	ID() string

	// OnInbound registers the handler invoked for every inbound connection
	// offer. The channel it receives has not opened yet; wait on Opened.
	OnInbound(fn func(Channel))

	// Dial opens an outbound channel toward remoteID. The returned channel
	// is not yet open; dial-time failures surface through its Done and Err.
	Dial(ctx context.Context, remoteID string) (Channel, error)

	// Destroy tears down the endpoint and every channel it owns. Idempotent.
	Destroy() error
}

// Channel is an established (or establishing) ordered reliable message
// stream. Message boundaries are preserved; delivery is in send order once
// Opened fires; Done eventually fires for any link that stops functioning.
type Channel interface {
	// Opened is closed once the channel is ready to carry messages.
	Opened() <-chan struct{}

	// Done is closed when the channel is gone for any reason.
	Done() <-chan struct{}

	// Err reports why the channel ended. Nil after a local Close.
	Err() error

	State() ConnState
	OnStateChange(fn func(ConnState))

	OnMessage(fn func(data []byte))
	Send(data []byte) error

	// Close tears the channel down. Idempotent.
	Close() error
}
