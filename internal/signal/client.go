package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// ErrIDInUse is returned by Dial when the broker rejects the id claim because
// another live endpoint already holds it.
var ErrIDInUse = errors.New("endpoint id already in use")

// wsDialElapsed bounds the connect-retry loop against a flaky broker link.
const wsDialElapsed = 10 * time.Second

// Client is one registered endpoint's connection to the broker.
type Client struct {
	conn *websocket.Conn
	id   string

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	handler   func(Frame)

	closeOnce sync.Once
	done      chan struct{}

	errMu sync.Mutex
	err   error
}

// Dial connects to the broker and claims id. The read pump is not started
// until Start, so the caller can attach its frame handler without racing
// inbound frames.
func Dial(ctx context.Context, brokerURL, id string) (*Client, error) {
	var conn *websocket.Conn

	connect := func() error {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, brokerURL, nil)
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = wsDialElapsed
	if err := backoff.Retry(connect, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	c := &Client{
		conn: conn,
		id:   id,
		done: make(chan struct{}),
	}

	if err := c.Send(Frame{Type: TypeRegister, From: id}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send register claim: %w", err)
	}

	var reply Frame
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read register reply: %w", err)
	}

	switch reply.Type {
	case TypeRegistered:
		return c, nil
	case TypeIDTaken:
		conn.Close()
		return nil, fmt.Errorf("register %q: %w", id, ErrIDInUse)
	default:
		conn.Close()
		return nil, fmt.Errorf("unexpected register reply %q", reply.Type)
	}
}

// ID returns the identifier this client registered with the broker.
func (c *Client) ID() string { return c.id }

// OnFrame sets the handler invoked for every inbound broker frame.
func (c *Client) OnFrame(fn func(Frame)) {
	c.handlerMu.Lock()
	c.handler = fn
	c.handlerMu.Unlock()
}

// Start launches the read pump. Frames arriving before OnFrame was called
// are dropped.
func (c *Client) Start() {
	go func() {
		for {
			var f Frame
			if err := c.conn.ReadJSON(&f); err != nil {
				c.fail(err)
				return
			}
			c.handlerMu.RLock()
			fn := c.handler
			c.handlerMu.RUnlock()
			if fn != nil {
				fn(f)
			}
		}
	}()
}

// Send writes one frame, guarded against concurrent writers.
func (c *Client) Send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// Done is closed when the broker connection is gone, either through Close or
// through a read failure.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended. Nil after a clean Close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close announces departure and tears down the connection. Idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.Send(Frame{Type: TypeBye, From: c.id}) // best effort
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		_ = c.conn.Close()
		close(c.done)
	})
}
