package signal

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayase/duelgrid/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the broker side: a registry of live endpoints keyed by their
// claimed identifier, forwarding frames between them.
type Server struct {
	mu        sync.Mutex
	endpoints map[string]*brokerConn
}

// brokerConn serializes writes to one registered WebSocket.
type brokerConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *brokerConn) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

func NewServer() *Server {
	return &Server{endpoints: make(map[string]*brokerConn)}
}

// HandleWS upgrades the request and serves one endpoint connection until it
// closes. The first frame must be a register claim; everything after is
// forwarding.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	bc := &brokerConn{conn: conn}

	var reg Frame
	if err := conn.ReadJSON(&reg); err != nil || reg.Type != TypeRegister || reg.From == "" {
		_ = bc.send(Frame{Type: TypeIDTaken}) // malformed claim; treat as unusable
		return
	}

	id := reg.From
	if !s.register(id, bc) {
		slog.Debug("Rejected duplicate endpoint id", "id", id)
		metrics.Collisions.Inc()
		_ = bc.send(Frame{Type: TypeIDTaken, To: id})
		return
	}
	defer s.unregister(id)

	metrics.Registrations.Inc()
	metrics.ActiveEndpoints.Inc()
	defer metrics.ActiveEndpoints.Dec()
	slog.Info("Endpoint registered", "id", id)

	if err := bc.send(Frame{Type: TypeRegistered, To: id}); err != nil {
		return
	}

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			slog.Debug("Endpoint connection closed", "id", id, "error", err)
			return
		}
		switch f.Type {
		case TypeOffer, TypeAnswer, TypeCandidate, TypeBye:
			f.From = id // the broker is authoritative about the sender
			s.forward(bc, f)
		default:
			// Registration frames past the first one are ignored.
		}
	}
}

func (s *Server) register(id string, bc *brokerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.endpoints[id]; taken {
		return false
	}
	s.endpoints[id] = bc
	return true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.endpoints, id)
	s.mu.Unlock()
}

// forward delivers f to its target, or bounces a peer-absent notice back to
// the origin when the target is not registered.
func (s *Server) forward(origin *brokerConn, f Frame) {
	s.mu.Lock()
	target, ok := s.endpoints[f.To]
	s.mu.Unlock()

	if !ok {
		metrics.PeerAbsent.Inc()
		_ = origin.send(Frame{Type: TypePeerAbsent, To: f.From, From: f.To})
		return
	}

	metrics.Forwards.Inc()
	if err := target.send(f); err != nil {
		slog.Warn("Failed to forward frame", "type", f.Type.String(), "to", f.To, "error", err)
	}
}
