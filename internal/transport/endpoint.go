package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ayase/duelgrid/internal/signal"
	"github.com/ayase/duelgrid/internal/util"
)

// Dialer implements Connector on top of the rendezvous broker and WebRTC.
type Dialer struct {
	cfg Config
}

var _ Connector = (*Dialer)(nil)

func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg}
}

func (d *Dialer) CreateEndpoint(ctx context.Context, id string) (Endpoint, error) {
	cli, err := signal.Dial(ctx, d.cfg.BrokerURL, id)
	if err != nil {
		if errors.Is(err, signal.ErrIDInUse) {
			return nil, fmt.Errorf("create endpoint %q: %w", id, ErrIDInUse)
		}
		return nil, fmt.Errorf("create endpoint %q: %w", id, err)
	}

	ep := &endpoint{
		cfg:      d.cfg,
		cli:      cli,
		channels: make(map[string]*channel),
	}
	cli.OnFrame(ep.handleFrame)
	cli.Start()
	return ep, nil
}

func (d *Dialer) CreateAnonymousEndpoint(ctx context.Context) (Endpoint, error) {
	return d.CreateEndpoint(ctx, uuid.NewString())
}

// endpoint is one registered broker identity plus the channels keyed by the
// remote identifier they are bound to.
type endpoint struct {
	cfg Config
	cli *signal.Client

	mu       sync.Mutex
	inbound  func(Channel)
	channels map[string]*channel

	destroyOnce sync.Once
}

var _ Endpoint = (*endpoint)(nil)

func (ep *endpoint) ID() string { return ep.cli.ID() }

func (ep *endpoint) OnInbound(fn func(Channel)) {
	ep.mu.Lock()
	ep.inbound = fn
	ep.mu.Unlock()
}

func (ep *endpoint) Dial(ctx context.Context, remoteID string) (Channel, error) {
	ch, err := newChannel(ep.cfg, ep, remoteID)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", remoteID, err)
	}
	ep.remember(remoteID, ch)

	if err := ch.sendOffer(); err != nil {
		ch.fail(err)
		return nil, fmt.Errorf("dial %q: %w", remoteID, err)
	}
	return ch, nil
}

func (ep *endpoint) Destroy() error {
	ep.destroyOnce.Do(func() {
		ep.mu.Lock()
		chans := make([]*channel, 0, len(ep.channels))
		for _, ch := range ep.channels {
			chans = append(chans, ch)
		}
		ep.mu.Unlock()

		for _, ch := range chans {
			_ = ch.Close()
		}
		_ = ep.cli.Close()
	})
	return nil
}

// handleFrame is the single dispatch point for broker frames.
func (ep *endpoint) handleFrame(f signal.Frame) {
	switch f.Type {
	case signal.TypeOffer:
		ep.handleOffer(f)

	case signal.TypeAnswer:
		if ch, ok := ep.lookup(f.From); ok {
			if err := ch.acceptAnswer(f.SDP); err != nil {
				util.LogWarning("failed to apply answer from %s: %v", f.From, err)
				ch.fail(err)
			}
		}

	case signal.TypeCandidate:
		if ch, ok := ep.lookup(f.From); ok {
			if err := ch.addCandidate(f.Candidate); err != nil {
				util.LogDebug("failed to apply candidate from %s: %v", f.From, err)
			}
		}

	case signal.TypePeerAbsent:
		// From names the absent target of our own forward.
		if ch, ok := ep.lookup(f.From); ok {
			ch.fail(ErrPeerAbsent)
		}

	case signal.TypeBye:
		if ch, ok := ep.lookup(f.From); ok {
			ch.fail(fmt.Errorf("remote endpoint %s left", f.From))
		}
	}
}

func (ep *endpoint) handleOffer(f signal.Frame) {
	ep.mu.Lock()
	inbound := ep.inbound
	ep.mu.Unlock()
	if inbound == nil {
		util.LogDebug("dropping offer from %s: no inbound handler", f.From)
		return
	}

	ch, err := newChannel(ep.cfg, ep, f.From)
	if err != nil {
		util.LogWarning("failed to create channel for %s: %v", f.From, err)
		return
	}
	ep.remember(f.From, ch)

	if err := ch.acceptOffer(f.SDP); err != nil {
		util.LogWarning("failed to answer offer from %s: %v", f.From, err)
		ch.fail(err)
		return
	}

	// The handler usually blocks waiting for the channel to open; keep the
	// frame pump free.
	go inbound(ch)
}

func (ep *endpoint) remember(remoteID string, ch *channel) {
	ep.mu.Lock()
	ep.channels[remoteID] = ch
	ep.mu.Unlock()
}

func (ep *endpoint) lookup(remoteID string) (*channel, bool) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ch, ok := ep.channels[remoteID]
	return ch, ok
}

func (ep *endpoint) forget(remoteID string) {
	ep.mu.Lock()
	delete(ep.channels, remoteID)
	ep.mu.Unlock()
}
