package transport

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Config carries everything needed to reach the rendezvous broker and the
// relay. Traffic is forced through the relay: on the restrictive networks
// this program targets, a direct path that works today stalls tomorrow, and
// the latency cost of TURN is acceptable for a turn-free puzzle match.
type Config struct {
	// BrokerURL is the rendezvous broker WebSocket URL, e.g.
	// wss://rendezvous.example.net/ws.
	BrokerURL string

	// ICEServers must contain at least one TCP-capable and one UDP-capable
	// TURN entry; client networks may block either protocol.
	ICEServers []webrtc.ICEServer
}

// RelayICEServers builds the standard pair of TURN entries (UDP and TCP
// transport variants) for one relay host.
func RelayICEServers(host, username, credential string) []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs:       []string{fmt.Sprintf("turn:%s?transport=udp", host)},
			Username:   username,
			Credential: credential,
		},
		{
			URLs:       []string{fmt.Sprintf("turn:%s?transport=tcp", host)},
			Username:   username,
			Credential: credential,
		},
	}
}

// newPeerConnection creates a PeerConnection restricted to relayed candidate
// pairs. Direct and server-reflexive paths are never attempted.
func newPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	return webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         cfg.ICEServers,
		ICETransportPolicy: webrtc.ICETransportPolicyRelay,
	})
}

// newDataChannel creates the pre-negotiated session DataChannel. Negotiated
// mode (ID 0) lets both sides create the channel independently without
// relying on OnDataChannel. Ordered and reliable: the session protocol
// assumes in-order delivery and performs no sequencing of its own.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	negotiated := true
	id := uint16(0)

	return pc.CreateDataChannel("session", &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
	})
}
