// Package protocol defines the session message contract exchanged between two
// peers over an established data channel, and the codec used to put it on the
// wire. One JSON object per channel send; the channel guarantees ordering and
// message boundaries, so no sequence numbering happens here.
package protocol

// Kind identifies the kind of session message.
type Kind string

const (
	KindStart       Kind = "START"        // identity announcement, sent by both sides on open
	KindUpdateScore Kind = "UPDATE_SCORE" // live score refresh
	KindGameOver    Kind = "GAME_OVER"    // sender's final score
	KindReady       Kind = "READY"        // rematch consent
	KindRequestMap  Kind = "REQUEST_MAP"  // ask the host for a state snapshot
	KindGridUpdate  Kind = "GRID_UPDATE"  // host's snapshot reply
	KindSyncMap     Kind = "SYNC_MAP"     // identity refresh only
)

// Message is the union of all session message payloads. Exactly one concrete
// payload type exists per Kind; receivers dispatch on the concrete type.
type Message interface {
	Kind() Kind
}

// Start carries the sender's display identity. Sent by both peers
// independently the moment their channel opens, so each side learns the
// other's identity without waiting for a turn.
type Start struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// UpdateScore overwrites the receiver's remote-score display.
type UpdateScore struct {
	Score int `json:"score"`
}

// GameOver carries the sender's final score. It does not end the receiver's
// match; each peer ends on its own timer.
type GameOver struct {
	Score int `json:"score"`
}

// Ready flags the sender as willing to rematch.
type Ready struct{}

// RequestMap asks the host for a snapshot. Peers in the joiner role ignore it.
type RequestMap struct{}

// GridUpdate is the host's answer to RequestMap. The grid slice is always
// empty in the current protocol revision; grid contents are not resynced.
type GridUpdate struct {
	Grid           [][]int `json:"grid"`
	Score          int     `json:"score"`
	OpponentName   string  `json:"opponentName"`
	OpponentAvatar string  `json:"opponentAvatar"`
}

// SyncMap refreshes the receiver's view of the sender's identity.
type SyncMap struct {
	OpponentName   string `json:"opponentName"`
	OpponentAvatar string `json:"opponentAvatar"`
}

func (Start) Kind() Kind       { return KindStart }
func (UpdateScore) Kind() Kind { return KindUpdateScore }
func (GameOver) Kind() Kind    { return KindGameOver }
func (Ready) Kind() Kind       { return KindReady }
func (RequestMap) Kind() Kind  { return KindRequestMap }
func (GridUpdate) Kind() Kind  { return KindGridUpdate }
func (SyncMap) Kind() Kind     { return KindSyncMap }
