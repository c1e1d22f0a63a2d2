// Package monitor watches an active channel for signs that the match can no
// longer make progress. There is no reconnection: on an already relay-forced
// path a transient ICE failure will not self-heal within the timescale of a
// fast match, so failing fast beats a silent stall.
package monitor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ayase/duelgrid/internal/transport"
)

// ErrLinkFailure is the unrecoverable-link determination.
var ErrLinkFailure = errors.New("peer link failed")

// Monitor attaches to one channel. onFailure fires at most once, whatever
// combination of close, error, and connectivity-state events arrives.
type Monitor struct {
	ch        transport.Channel
	inMatch   func() bool
	onFailure func(error)

	tripOnce sync.Once
	stopOnce sync.Once
	stopped  chan struct{}
}

// Watch starts monitoring ch. inMatch reports whether the lifecycle is still
// in a state (connecting or playing) where a degraded connectivity state
// matters; channel close and error always matter. onFailure is invoked from
// a transport callback or the monitor goroutine, never twice.
func Watch(ch transport.Channel, inMatch func() bool, onFailure func(error)) *Monitor {
	m := &Monitor{
		ch:        ch,
		inMatch:   inMatch,
		onFailure: onFailure,
		stopped:   make(chan struct{}),
	}

	ch.OnStateChange(func(st transport.ConnState) {
		switch st {
		case transport.StateFailed, transport.StateDisconnected, transport.StateClosed:
			if m.inMatch == nil || m.inMatch() {
				m.trip(fmt.Errorf("%w: connectivity %s", ErrLinkFailure, st))
			}
		}
	})

	go func() {
		select {
		case <-ch.Done():
			if err := ch.Err(); err != nil {
				m.trip(fmt.Errorf("%w: %v", ErrLinkFailure, err))
			} else {
				m.trip(ErrLinkFailure)
			}
		case <-m.stopped:
		}
	}()

	return m
}

// Stop disarms the monitor before a deliberate local teardown, so closing
// our own channel is not reported as a failure. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopped)
		m.ch.OnStateChange(nil)
	})
}

func (m *Monitor) trip(err error) {
	select {
	case <-m.stopped:
		return
	default:
	}
	m.tripOnce.Do(func() {
		m.onFailure(err)
	})
}
