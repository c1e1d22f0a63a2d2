package transport

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/ayase/duelgrid/internal/signal"
	"github.com/ayase/duelgrid/internal/util"
)

// channel wraps one PeerConnection + pre-negotiated DataChannel pair bound to
// a single remote endpoint identifier.
type channel struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	remoteID string
	ep       *endpoint

	openOnce   sync.Once
	openSignal chan struct{}

	closeOnce sync.Once
	done      chan struct{}

	mu      sync.RWMutex
	err     error
	state   ConnState
	stateFn func(ConnState)
	msgFn   func([]byte)
}

var _ Channel = (*channel)(nil)

// newChannel builds the PC/DC pair and wires event plumbing. The caller still
// has to drive the SDP exchange via sendOffer / acceptOffer / acceptAnswer.
func newChannel(cfg Config, ep *endpoint, remoteID string) (*channel, error) {
	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	ch := &channel{
		pc:         pc,
		dc:         dc,
		remoteID:   remoteID,
		ep:         ep,
		openSignal: make(chan struct{}),
		done:       make(chan struct{}),
		state:      StateNew,
	}

	dc.OnOpen(func() {
		ch.openOnce.Do(func() { close(ch.openSignal) })
	})

	dc.OnClose(func() {
		util.LogDebug("data channel to %s closed", remoteID)
		ch.shutdown(nil)
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		ch.mu.RLock()
		fn := ch.msgFn
		ch.mu.RUnlock()
		if fn != nil {
			fn(msg.Data)
		}
	})

	// Trickle local ICE candidates to the remote endpoint via the broker.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, _ := json.Marshal(c.ToJSON())
		if err := ep.cli.Send(signal.Frame{
			Type:      signal.TypeCandidate,
			To:        remoteID,
			Candidate: string(data),
		}); err != nil {
			util.LogDebug("failed to send candidate to %s: %v", remoteID, err)
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		st := ConnState(s.String())
		util.LogDebug("ICE state for %s: %s", remoteID, st)
		ch.mu.Lock()
		ch.state = st
		fn := ch.stateFn
		ch.mu.Unlock()
		if fn != nil {
			fn(st)
		}
	})

	// A dead PeerConnection must still surface as a closed channel, even if
	// the DataChannel close event never fires.
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			ch.shutdown(nil)
		}
	})

	return ch, nil
}

// sendOffer starts the outbound SDP exchange.
func (ch *channel) sendOffer() error {
	offer, err := ch.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := ch.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return ch.ep.cli.Send(signal.Frame{
		Type: signal.TypeOffer,
		To:   ch.remoteID,
		SDP:  offer.SDP,
	})
}

// acceptOffer answers an inbound SDP offer.
func (ch *channel) acceptOffer(sdp string) error {
	if err := ch.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: sdp,
	}); err != nil {
		return err
	}
	answer, err := ch.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := ch.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	return ch.ep.cli.Send(signal.Frame{
		Type: signal.TypeAnswer,
		To:   ch.remoteID,
		SDP:  answer.SDP,
	})
}

// acceptAnswer completes the outbound SDP exchange.
func (ch *channel) acceptAnswer(sdp string) error {
	return ch.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer, SDP: sdp,
	})
}

// addCandidate applies a trickled remote ICE candidate.
func (ch *channel) addCandidate(raw string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(raw), &init); err != nil {
		return err
	}
	return ch.pc.AddICECandidate(init)
}

func (ch *channel) Opened() <-chan struct{} { return ch.openSignal }
func (ch *channel) Done() <-chan struct{}   { return ch.done }

func (ch *channel) Err() error {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.err
}

func (ch *channel) State() ConnState {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.state
}

func (ch *channel) OnStateChange(fn func(ConnState)) {
	ch.mu.Lock()
	ch.stateFn = fn
	ch.mu.Unlock()
}

func (ch *channel) OnMessage(fn func([]byte)) {
	ch.mu.Lock()
	ch.msgFn = fn
	ch.mu.Unlock()
}

func (ch *channel) Send(data []byte) error {
	return ch.dc.Send(data)
}

func (ch *channel) Close() error {
	ch.shutdown(nil)
	return nil
}

// fail ends the channel with a recorded reason (dial rejection, peer gone).
func (ch *channel) fail(err error) {
	ch.shutdown(err)
}

func (ch *channel) shutdown(err error) {
	ch.closeOnce.Do(func() {
		if err != nil {
			ch.mu.Lock()
			ch.err = err
			ch.mu.Unlock()
		}
		_ = ch.dc.Close()
		_ = ch.pc.Close()
		ch.ep.forget(ch.remoteID)
		close(ch.done)
	})
}
