// Package lifecycle implements the local match state machine. Each peer runs
// its own machine; the two are never required to agree at any instant, only
// to converge through session messages. All inputs arrive as tagged events
// dispatched through a single handler, driven by one goroutine.
package lifecycle

// State is where this peer is in the match lifecycle.
type State int

const (
	StateMenu State = iota
	StateLobby
	StateConnecting
	StatePlaying
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateMenu:
		return "menu"
	case StateLobby:
		return "lobby"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StateGameOver:
		return "game-over"
	default:
		return "unknown"
	}
}
