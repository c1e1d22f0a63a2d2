package lifecycle

import (
	"github.com/ayase/duelgrid/internal/protocol"
	"github.com/ayase/duelgrid/internal/session"
	"github.com/ayase/duelgrid/internal/transport"
)

// Event is an input to the state machine: user intents, transport events,
// decoded peer messages, and timer expiries. Producers stamp epoch-sensitive
// events with Machine.Epoch at the moment they are produced; the handler
// drops anything stamped with an older epoch.
type Event interface {
	isEvent()
}

// OpenLobby is the user opening multiplayer hosting.
type OpenLobby struct{}

// Connecting marks the start of an outbound join attempt.
type Connecting struct{}

// Opened fires when the peer channel reaches open. Connection success is
// match start; there is no separate confirmation step for the first match.
type Opened struct {
	Role    session.Role
	Channel transport.Channel
}

// SoloStarted begins a single-player match.
type SoloStarted struct{}

// FromPeer is one decoded session message.
type FromPeer struct {
	Epoch uint64
	Msg   protocol.Message
}

// LocalScore reports that the local engine's score moved.
type LocalScore struct {
	Score int
}

// TimerExpired is the local match clock reaching zero.
type TimerExpired struct {
	Epoch uint64
}

// RestartPressed is the user asking for another match.
type RestartPressed struct{}

// WentHome is the user returning to the menu. Valid in every state.
type WentHome struct{}

// LinkDown is the failure monitor's unrecoverable-link determination.
type LinkDown struct {
	Err error
}

func (OpenLobby) isEvent()      {}
func (Connecting) isEvent()     {}
func (Opened) isEvent()         {}
func (SoloStarted) isEvent()    {}
func (FromPeer) isEvent()       {}
func (LocalScore) isEvent()     {}
func (TimerExpired) isEvent()   {}
func (RestartPressed) isEvent() {}
func (WentHome) isEvent()       {}
func (LinkDown) isEvent()       {}
