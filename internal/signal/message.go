// Package signal implements the rendezvous broker protocol: endpoints claim
// an identifier over a WebSocket, and SDP/ICE frames are forwarded between
// identifiers until the peers' data channel opens. The broker never sees
// game traffic.
package signal

// FrameType identifies the kind of broker frame.
type FrameType string

const (
	TypeRegister   FrameType = "register"    // claim an endpoint id
	TypeRegistered FrameType = "registered"  // claim accepted
	TypeIDTaken    FrameType = "id-taken"    // claim rejected: id already in use
	TypeOffer      FrameType = "offer"       // forwarded SDP offer
	TypeAnswer     FrameType = "answer"      // forwarded SDP answer
	TypeCandidate  FrameType = "candidate"   // forwarded ICE candidate
	TypePeerAbsent FrameType = "peer-absent" // forward target not registered
	TypeBye        FrameType = "bye"         // endpoint going away
)

func (t FrameType) String() string { return string(t) }

// Frame is the JSON structure exchanged with the broker. From is stamped by
// the broker on forwarded frames so clients cannot spoof the sender.
type Frame struct {
	Type      FrameType `json:"type"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	SDP       string    `json:"sdp,omitempty"`
	Candidate string    `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
