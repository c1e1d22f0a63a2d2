// Package rendezvous turns a short human-shareable room code into a working
// peer channel. Hosting claims a prefixed endpoint id derived from a random
// code, retrying forever on collisions; joining dials that id under a
// bounded wait.
package rendezvous

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ayase/duelgrid/internal/transport"
	"github.com/ayase/duelgrid/internal/util"
)

// CodePrefix partitions this application's ids from anything else sharing
// the rendezvous infrastructure.
const CodePrefix = "duelgrid-"

const (
	// DefaultDialTimeout bounds the wait for a joined channel to open.
	DefaultDialTimeout = 20 * time.Second

	// defaultRetryDelay spaces out re-draws after a room-code collision.
	defaultRetryDelay = 500 * time.Millisecond
)

// Error taxonomy surfaced to the caller. Collisions never are; they are
// retried internally with a fresh draw.
var (
	ErrInvalidCode     = errors.New("room code must be exactly 4 digits")
	ErrRendezvousFatal = errors.New("could not create rendezvous endpoint")
	ErrDialTimeout     = errors.New("no connection established within the join window")
	ErrDialRejected    = errors.New("room not reachable")
)

var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

// GenerateCode draws a uniform random 4-digit code in [1000, 9999].
func GenerateCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(9000))
	return strconv.Itoa(int(n.Int64()) + 1000)
}

// Manager owns the local endpoint for the duration of one rendezvous
// attempt. Starting a new attempt always destroys the previous endpoint
// first; at most one is live per peer.
type Manager struct {
	// Connector creates endpoints. Required.
	Connector transport.Connector

	// DialTimeout bounds JoinRoom's wait for open. Zero means the default.
	DialTimeout time.Duration

	// RetryDelay spaces out collision retries. Zero means the default.
	RetryDelay time.Duration

	// GenerateCode draws room codes; replaced in tests. Nil means the
	// package-level GenerateCode.
	GenerateCode func() string

	mu sync.Mutex
	ep transport.Endpoint
}

func NewManager(c transport.Connector) *Manager {
	return &Manager{Connector: c}
}

// HostRoom claims a fresh room. Collisions with live rooms are expected —
// codes are drawn from a small space with no central reservation — so each
// one triggers an independent re-draw after a short delay, indefinitely,
// until ctx is cancelled. Any other creation failure is fatal.
func (m *Manager) HostRoom(ctx context.Context) (string, transport.Endpoint, error) {
	m.Destroy()

	var (
		code string
		ep   transport.Endpoint
	)

	claim := func() error {
		code = m.generateCode()
		e, err := m.Connector.CreateEndpoint(ctx, CodePrefix+code)
		if err == nil {
			ep = e
			return nil
		}
		if errors.Is(err, transport.ErrIDInUse) {
			util.LogDebug("room code %s in use, drawing another", code)
			return err
		}
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrRendezvousFatal, err))
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(m.retryDelay()), ctx)
	if err := backoff.Retry(claim, policy); err != nil {
		return "", nil, err
	}

	m.setCurrent(ep)
	return code, ep, nil
}

// JoinRoom validates code and dials the hosting endpoint. Malformed codes
// fail immediately with ErrInvalidCode and no network activity. The wait for
// the channel to open is bounded by DialTimeout; on expiry the local
// endpoint is destroyed, which also closes the pending channel so a late
// open can never surface.
func (m *Manager) JoinRoom(ctx context.Context, code string) (transport.Channel, error) {
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%q: %w", code, ErrInvalidCode)
	}

	m.Destroy()

	ep, err := m.Connector.CreateAnonymousEndpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendezvousFatal, err)
	}
	m.setCurrent(ep)

	ch, err := ep.Dial(ctx, CodePrefix+code)
	if err != nil {
		m.Destroy()
		return nil, err
	}

	timer := time.NewTimer(m.dialTimeout())
	defer timer.Stop()

	select {
	case <-ch.Opened():
		return ch, nil

	case <-ch.Done():
		err := ch.Err()
		m.Destroy()
		if errors.Is(err, transport.ErrPeerAbsent) {
			return nil, fmt.Errorf("room %s: %w", code, ErrDialRejected)
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("room %s: %w", code, ErrDialRejected)

	case <-timer.C:
		m.Destroy()
		return nil, ErrDialTimeout

	case <-ctx.Done():
		m.Destroy()
		return nil, ctx.Err()
	}
}

// Current returns the live endpoint, if any.
func (m *Manager) Current() transport.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ep
}

// Destroy tears down the current endpoint. Idempotent; called before every
// new attempt and on return to the menu.
func (m *Manager) Destroy() {
	m.mu.Lock()
	ep := m.ep
	m.ep = nil
	m.mu.Unlock()

	if ep != nil {
		_ = ep.Destroy()
	}
}

func (m *Manager) setCurrent(ep transport.Endpoint) {
	m.mu.Lock()
	m.ep = ep
	m.mu.Unlock()
}

func (m *Manager) generateCode() string {
	if m.GenerateCode != nil {
		return m.GenerateCode()
	}
	return GenerateCode()
}

func (m *Manager) dialTimeout() time.Duration {
	if m.DialTimeout > 0 {
		return m.DialTimeout
	}
	return DefaultDialTimeout
}

func (m *Manager) retryDelay() time.Duration {
	if m.RetryDelay > 0 {
		return m.RetryDelay
	}
	return defaultRetryDelay
}
