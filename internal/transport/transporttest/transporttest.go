// Package transporttest provides in-memory implementations of the transport
// interfaces. Two linked Channel instances simulate a bidirectional link with
// synchronous, in-order delivery, so tests stay deterministic.
package transporttest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayase/duelgrid/internal/transport"
)

// Compile-time interface checks.
var (
	_ transport.Channel   = (*Channel)(nil)
	_ transport.Endpoint  = (*Endpoint)(nil)
	_ transport.Connector = (*Connector)(nil)
)

// ErrDestroyed is the failure every pending channel of a destroyed endpoint
// reports.
var ErrDestroyed = errors.New("endpoint destroyed")

// Channel is one end of an in-memory link.
type Channel struct {
	mu      sync.Mutex
	peer    *Channel
	state   transport.ConnState
	stateFn func(transport.ConnState)
	msgFn   func([]byte)
	err     error

	opened    chan struct{}
	openOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// Pipe creates a linked pair of channels. Neither end is open until Open is
// called.
func Pipe() (a, b *Channel) {
	a = newChannel()
	b = newChannel()
	a.peer = b
	b.peer = a
	return a, b
}

func newChannel() *Channel {
	return &Channel{
		state:  transport.StateNew,
		opened: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Open marks both ends of the link open, as a real link would.
func (c *Channel) Open() {
	c.openEnd()
	if c.peer != nil {
		c.peer.openEnd()
	}
}

func (c *Channel) openEnd() {
	c.openOnce.Do(func() {
		c.SetState(transport.StateConnected)
		close(c.opened)
	})
}

// Fail terminates this end with err. The peer end is untouched, letting
// tests model one-sided failures.
func (c *Channel) Fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.SetState(transport.StateFailed)
		close(c.done)
	})
}

// SetState records the state and fires the registered callback, mimicking
// an ICE transition.
func (c *Channel) SetState(s transport.ConnState) {
	c.mu.Lock()
	c.state = s
	fn := c.stateFn
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (c *Channel) Opened() <-chan struct{} { return c.opened }
func (c *Channel) Done() <-chan struct{}   { return c.done }

func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Channel) State() transport.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) OnStateChange(fn func(transport.ConnState)) {
	c.mu.Lock()
	c.stateFn = fn
	c.mu.Unlock()
}

func (c *Channel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	c.msgFn = fn
	c.mu.Unlock()
}

// Send delivers data synchronously to the peer's OnMessage handler.
func (c *Channel) Send(data []byte) error {
	select {
	case <-c.done:
		return errors.New("send on closed channel")
	default:
	}
	if c.peer == nil {
		return errors.New("no peer")
	}
	c.peer.mu.Lock()
	fn := c.peer.msgFn
	c.peer.mu.Unlock()
	if fn != nil {
		fn(append([]byte(nil), data...))
	}
	return nil
}

// Close shuts down both ends, as tearing down a real link does.
func (c *Channel) Close() error {
	c.closeEnd()
	if c.peer != nil {
		c.peer.closeEnd()
	}
	return nil
}

func (c *Channel) closeEnd() {
	c.closeOnce.Do(func() {
		c.SetState(transport.StateClosed)
		close(c.done)
	})
}

// ---------------------------------------------------------------------------
// Connector and endpoints
// ---------------------------------------------------------------------------

// Connector is an in-memory transport.Connector. Endpoints register under
// their ids and dials between registered endpoints succeed; a dial to an
// unknown id fails the returned channel with transport.ErrPeerAbsent.
type Connector struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
	anonSeq   int

	// OnDial, when set, replaces the default dial behavior. The local end
	// is already returned to the dialer; the hook decides whether and when
	// anything happens to it.
	OnDial func(remoteID string, local, remote *Channel)
}

func NewConnector() *Connector {
	return &Connector{endpoints: make(map[string]*Endpoint)}
}

func (c *Connector) CreateEndpoint(_ context.Context, id string) (transport.Endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.endpoints[id]; taken {
		return nil, transport.ErrIDInUse
	}
	ep := &Endpoint{id: id, owner: c}
	c.endpoints[id] = ep
	return ep, nil
}

func (c *Connector) CreateAnonymousEndpoint(ctx context.Context) (transport.Endpoint, error) {
	c.mu.Lock()
	c.anonSeq++
	id := fmt.Sprintf("anon-%d", c.anonSeq)
	c.mu.Unlock()
	return c.CreateEndpoint(ctx, id)
}

// Lookup returns the endpoint registered under id, if any.
func (c *Connector) Lookup(id string) (*Endpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep, ok := c.endpoints[id]
	return ep, ok
}

func (c *Connector) remove(id string) {
	c.mu.Lock()
	delete(c.endpoints, id)
	c.mu.Unlock()
}

// Endpoint is an in-memory transport.Endpoint.
type Endpoint struct {
	id    string
	owner *Connector

	mu        sync.Mutex
	inbound   func(transport.Channel)
	pending   []*Channel
	destroyed bool
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) OnInbound(fn func(transport.Channel)) {
	e.mu.Lock()
	e.inbound = fn
	e.mu.Unlock()
}

// Dial returns the local end of a fresh pipe. With no OnDial hook set, the
// remote end is handed to the target's inbound handler and the link opens
// immediately; dialing an unknown id fails the local end with ErrPeerAbsent.
func (e *Endpoint) Dial(_ context.Context, remoteID string) (transport.Channel, error) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil, ErrDestroyed
	}
	local, remote := Pipe()
	e.pending = append(e.pending, local)
	e.mu.Unlock()

	if hook := e.owner.OnDial; hook != nil {
		hook(remoteID, local, remote)
		return local, nil
	}

	target, ok := e.owner.Lookup(remoteID)
	if !ok {
		local.Fail(transport.ErrPeerAbsent)
		return local, nil
	}

	target.mu.Lock()
	fn := target.inbound
	target.mu.Unlock()
	if fn != nil {
		fn(remote)
	}
	local.Open()
	return local, nil
}

// Destroy unregisters the endpoint and fails every channel it dialed, so a
// link that opens after destruction can never reach the caller.
func (e *Endpoint) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	e.owner.remove(e.id)
	for _, ch := range pending {
		ch.Fail(ErrDestroyed)
	}
	return nil
}
