// Package session holds the single active peer relationship: who we are
// connected to, which side dialed, both scores, rematch consent, and the
// match epoch that fences off messages from a finished match.
package session

import (
	"sync"

	"github.com/ayase/duelgrid/internal/protocol"
	"github.com/ayase/duelgrid/internal/transport"
)

// Role records which side of the connection this peer is. It is fixed for
// the lifetime of one channel; only the host answers REQUEST_MAP.
type Role int

const (
	RoleHost Role = iota
	RoleJoiner
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleJoiner:
		return "joiner"
	default:
		return "unknown"
	}
}

// Identity is a display name plus avatar glyph.
type Identity struct {
	Name   string
	Avatar string
}

// Session is created when a channel opens and destroyed when the user goes
// home or the channel dies. Exactly one session is live at a time.
type Session struct {
	mu sync.RWMutex

	role  Role
	ch    transport.Channel
	local Identity

	remote      Identity
	localScore  int
	remoteScore int
	localReady  bool
	remoteReady bool

	// epoch increments on every transition into a new match. Events stamped
	// with an older epoch are stale and must not mutate state.
	epoch uint64

	closeOnce sync.Once
}

func New(role Role, ch transport.Channel, local Identity) *Session {
	return &Session{role: role, ch: ch, local: local, epoch: 1}
}

func (s *Session) Role() Role { return s.role }

func (s *Session) Channel() transport.Channel { return s.ch }

func (s *Session) Local() Identity { return s.local }

func (s *Session) Remote() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remote
}

func (s *Session) SetRemote(id Identity) {
	s.mu.Lock()
	s.remote = id
	s.mu.Unlock()
}

// Epoch returns the current match epoch.
func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// NextEpoch starts a new match: bumps the epoch and clears all match-scoped
// state (scores, ready flags). The remote identity survives; rematches keep
// the same opponent.
func (s *Session) NextEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.localScore = 0
	s.remoteScore = 0
	s.localReady = false
	s.remoteReady = false
	return s.epoch
}

// Stale reports whether an event stamped with epoch belongs to a previous
// match.
func (s *Session) Stale(epoch uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return epoch != s.epoch
}

func (s *Session) LocalScore() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localScore
}

func (s *Session) SetLocalScore(n int) {
	s.mu.Lock()
	s.localScore = n
	s.mu.Unlock()
}

func (s *Session) RemoteScore() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteScore
}

// SetRemoteScore overwrites the remote score display unless the event is
// stale. Reports whether the score was applied.
func (s *Session) SetRemoteScore(epoch uint64, n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.remoteScore = n
	return true
}

func (s *Session) SetLocalReady() {
	s.mu.Lock()
	s.localReady = true
	s.mu.Unlock()
}

func (s *Session) SetRemoteReady() {
	s.mu.Lock()
	s.remoteReady = true
	s.mu.Unlock()
}

// BothReady reports whether both sides have consented to a rematch.
func (s *Session) BothReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localReady && s.remoteReady
}

// Send encodes and transmits one protocol message on the session channel.
func (s *Session) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return s.ch.Send(data)
}

// Close tears down the session channel. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.ch.Close()
	})
}
