package lifecycle

import (
	"github.com/kelindar/event"

	"github.com/ayase/duelgrid/internal/session"
)

// Notification type tags for the kelindar dispatcher.
const (
	evMatchStarted uint32 = iota + 1
	evOpponentJoined
	evScoreChanged
	evOpponentScore
	evMatchEnded
	evLinkLost
	evReturnedHome
)

// MatchStarted announces a transition into PLAYING.
type MatchStarted struct {
	Rematch bool
	Solo    bool
}

// OpponentJoined announces the remote identity learned from START (or a
// SYNC_MAP / GRID_UPDATE refresh).
type OpponentJoined struct {
	Identity session.Identity
}

// ScoreChanged mirrors the local score for renderers.
type ScoreChanged struct {
	Score int
}

// OpponentScore mirrors the remote score display. Final marks a GAME_OVER
// value rather than a live update.
type OpponentScore struct {
	Score int
	Final bool
}

// MatchEnded announces the local transition into GAME_OVER.
type MatchEnded struct {
	LocalScore  int
	RemoteScore int
	Solo        bool
}

// LinkLost announces an unrecoverable link; the machine has already forced
// itself back to the menu.
type LinkLost struct {
	Reason string
}

// ReturnedHome announces arrival back at the menu.
type ReturnedHome struct{}

func (MatchStarted) Type() uint32   { return evMatchStarted }
func (OpponentJoined) Type() uint32 { return evOpponentJoined }
func (ScoreChanged) Type() uint32   { return evScoreChanged }
func (OpponentScore) Type() uint32  { return evOpponentScore }
func (MatchEnded) Type() uint32     { return evMatchEnded }
func (LinkLost) Type() uint32       { return evLinkLost }
func (ReturnedHome) Type() uint32   { return evReturnedHome }

func (m *Machine) publish(ev event.Event) {
	if m.bus == nil {
		return
	}
	switch v := ev.(type) {
	case MatchStarted:
		event.Publish(m.bus, v)
	case OpponentJoined:
		event.Publish(m.bus, v)
	case ScoreChanged:
		event.Publish(m.bus, v)
	case OpponentScore:
		event.Publish(m.bus, v)
	case MatchEnded:
		event.Publish(m.bus, v)
	case LinkLost:
		event.Publish(m.bus, v)
	case ReturnedHome:
		event.Publish(m.bus, v)
	}
}
