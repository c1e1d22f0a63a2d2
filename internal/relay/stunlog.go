package relay

import (
	"log/slog"
	"net"

	"github.com/pion/stun/v2"
)

// stunLogger wraps a PacketConn and traces STUN traffic at debug level,
// which is usually the only way to see why a client's allocation failed.
type stunLogger struct {
	net.PacketConn
}

func (s *stunLogger) WriteTo(p []byte, addr net.Addr) (n int, err error) {
	if n, err = s.PacketConn.WriteTo(p, addr); err == nil && stun.IsMessage(p) {
		msg := &stun.Message{Raw: p}
		if decErr := msg.Decode(); decErr != nil {
			return
		}
		slog.Debug("STUN out", "type", msg.Type.String(), "to", addr.String())
	}
	return
}

func (s *stunLogger) ReadFrom(p []byte) (n int, addr net.Addr, err error) {
	if n, addr, err = s.PacketConn.ReadFrom(p); err == nil && stun.IsMessage(p) {
		msg := &stun.Message{Raw: p}
		if decErr := msg.Decode(); decErr != nil {
			return
		}
		slog.Debug("STUN in", "type", msg.Type.String(), "from", addr.String())
	}
	return
}
