// Package app contains the top-level orchestration for the interactive
// client: it ties the rendezvous manager, the transport, the lifecycle
// machine and the terminal play loop together.
package app

import (
	"github.com/kelindar/event"

	"github.com/ayase/duelgrid/internal/history"
	"github.com/ayase/duelgrid/internal/lifecycle"
	"github.com/ayase/duelgrid/internal/monitor"
	"github.com/ayase/duelgrid/internal/protocol"
	"github.com/ayase/duelgrid/internal/rendezvous"
	"github.com/ayase/duelgrid/internal/session"
	"github.com/ayase/duelgrid/internal/transport"
	"github.com/ayase/duelgrid/internal/util"
)

// Config carries everything the interactive client needs to run.
type Config struct {
	BrokerURL       string
	RelayHost       string
	RelayUsername   string
	RelayCredential string
	HistoryPath     string
}

// Controller owns the long-lived pieces shared by the solo, host and join
// flows: the match history store, the relay-only connector and the
// notification bus.
type Controller struct {
	cfg     Config
	store   *history.Store
	local   session.Identity
	manager *rendezvous.Manager
	bus     *event.Dispatcher
}

func New(cfg Config) (*Controller, error) {
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}

	dialer := transport.NewDialer(transport.Config{
		BrokerURL:  cfg.BrokerURL,
		ICEServers: transport.RelayICEServers(cfg.RelayHost, cfg.RelayUsername, cfg.RelayCredential),
	})

	return &Controller{
		cfg:     cfg,
		store:   store,
		manager: rendezvous.NewManager(dialer),
		bus:     event.NewDispatcher(),
	}, nil
}

func (c *Controller) Store() *history.Store { return c.store }

// SetIdentity fixes the local name and avatar announced to opponents.
func (c *Controller) SetIdentity(id session.Identity) { c.local = id }

func (c *Controller) Close() error {
	c.manager.Destroy()
	return c.store.Close()
}

// ---------------------------------------------------------------------------
// Event loop
// ---------------------------------------------------------------------------

// loop is one flow's lifecycle machine plus the single goroutine that feeds
// it. Producers on other goroutines (transport callbacks, the countdown
// timer, the monitor) post events instead of touching the machine directly.
type loop struct {
	machine *lifecycle.Machine
	events  chan lifecycle.Event
	quit    chan struct{}
	done    chan struct{}
}

func (c *Controller) startLoop() *loop {
	l := &loop{
		machine: lifecycle.NewMachine(c.local, c.bus, c.store),
		events:  make(chan lifecycle.Event, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		for {
			select {
			case <-l.quit:
				return
			case ev := <-l.events:
				l.machine.Handle(ev)
			}
		}
	}()
	return l
}

// post enqueues without blocking. A full queue means the consumer is wedged;
// dropping is preferable to deadlocking a transport callback.
func (l *loop) post(ev lifecycle.Event) {
	select {
	case l.events <- ev:
	default:
		util.LogDebug("event queue full, dropping %T", ev)
	}
}

func (l *loop) stop() {
	close(l.quit)
	<-l.done
}

// attach wires a freshly opened channel into the loop: inbound payloads are
// decoded and stamped with the epoch current at receipt, and the failure
// monitor feeds LinkDown. The returned monitor must be stopped before any
// deliberate teardown so an orderly close is not reported as a failure.
func (l *loop) attach(ch transport.Channel) *monitor.Monitor {
	ch.OnMessage(func(data []byte) {
		msg, err := protocol.Decode(data)
		if err != nil {
			util.LogWarning("dropping malformed peer message: %v", err)
			return
		}
		l.post(lifecycle.FromPeer{Epoch: l.machine.Epoch(), Msg: msg})
	})

	return monitor.Watch(ch, func() bool {
		st := l.machine.State()
		return st == lifecycle.StateConnecting || st == lifecycle.StatePlaying
	}, func(err error) {
		l.post(lifecycle.LinkDown{Err: err})
	})
}
