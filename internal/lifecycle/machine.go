package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/kelindar/event"

	"github.com/ayase/duelgrid/internal/history"
	"github.com/ayase/duelgrid/internal/protocol"
	"github.com/ayase/duelgrid/internal/session"
	"github.com/ayase/duelgrid/internal/util"
)

// Recorder persists the record emitted on every game-over.
type Recorder interface {
	Record(ctx context.Context, rec history.MatchRecord) error
}

// Machine is the authoritative local lifecycle state. Handle must be called
// from a single goroutine; producers on other goroutines enqueue events into
// that goroutine's loop instead of calling Handle directly.
type Machine struct {
	// mu guards state, sess and soloEpoch for readers on other goroutines
	// (State, Session, Epoch). All mutation happens on the Handle goroutine.
	mu    sync.RWMutex
	state State
	local session.Identity

	sess *session.Session
	solo bool

	// soloEpoch fences timer events in solo matches, which have no session
	// to carry an epoch.
	soloEpoch uint64

	bus      *event.Dispatcher
	recorder Recorder
}

func NewMachine(local session.Identity, bus *event.Dispatcher, rec Recorder) *Machine {
	return &Machine{state: StateMenu, local: local, bus: bus, recorder: rec}
}

func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) Session() *session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess
}

// Epoch is the current match epoch. Producers stamp FromPeer and
// TimerExpired events with this value.
func (m *Machine) Epoch() uint64 {
	m.mu.RLock()
	sess, solo := m.sess, m.soloEpoch
	m.mu.RUnlock()
	if sess != nil {
		return sess.Epoch()
	}
	return solo
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Machine) setSession(s *session.Session) {
	m.mu.Lock()
	m.sess = s
	m.mu.Unlock()
}

func (m *Machine) bumpSoloEpoch() {
	m.mu.Lock()
	m.soloEpoch++
	m.mu.Unlock()
}

// Handle dispatches one event. Events that make no sense in the current
// state are dropped; the machine never panics on unexpected input.
func (m *Machine) Handle(ev Event) {
	switch ev := ev.(type) {
	case OpenLobby:
		if m.state == StateMenu {
			m.setState(StateLobby)
		}

	case Connecting:
		if m.state == StateMenu || m.state == StateLobby {
			m.setState(StateConnecting)
		}

	case Opened:
		m.handleOpened(ev)

	case SoloStarted:
		if m.state == StateMenu {
			m.solo = true
			m.bumpSoloEpoch()
			m.setState(StatePlaying)
			m.publish(MatchStarted{Solo: true})
		}

	case FromPeer:
		m.handlePeer(ev)

	case LocalScore:
		m.handleLocalScore(ev.Score)

	case TimerExpired:
		m.handleTimerExpired(ev)

	case RestartPressed:
		m.handleRestart()

	case WentHome:
		m.goHome()
		m.publish(ReturnedHome{})

	case LinkDown:
		m.handleLinkDown(ev)
	}
}

// handleOpened: the channel reaching open is the match start, for host and
// joiner alike. Both sides announce their identity immediately so neither
// waits for a turn.
func (m *Machine) handleOpened(ev Opened) {
	if m.state != StateLobby && m.state != StateConnecting {
		util.LogDebug("ignoring channel open in state %s", m.state)
		return
	}

	m.solo = false
	m.setSession(session.New(ev.Role, ev.Channel, m.local))
	m.setState(StatePlaying)

	if err := m.sess.Send(protocol.Start{Name: m.local.Name, Avatar: m.local.Avatar}); err != nil {
		util.LogWarning("failed to announce identity: %v", err)
	}
	m.publish(MatchStarted{})
}

func (m *Machine) handlePeer(ev FromPeer) {
	if m.sess == nil {
		return
	}
	if m.sess.Stale(ev.Epoch) {
		util.LogDebug("dropping stale %s from previous match", ev.Msg.Kind())
		return
	}

	switch msg := ev.Msg.(type) {
	case *protocol.Start:
		m.sess.SetRemote(session.Identity{Name: msg.Name, Avatar: msg.Avatar})
		m.publish(OpponentJoined{Identity: m.sess.Remote()})

	case *protocol.UpdateScore:
		if m.sess.SetRemoteScore(ev.Epoch, msg.Score) {
			m.publish(OpponentScore{Score: msg.Score})
		}

	case *protocol.GameOver:
		// The opponent's clock ran out. Ours keeps running; only the score
		// display changes.
		if m.sess.SetRemoteScore(ev.Epoch, msg.Score) {
			m.publish(OpponentScore{Score: msg.Score, Final: true})
		}

	case *protocol.Ready:
		m.sess.SetRemoteReady()
		m.maybeRematch()

	case *protocol.RequestMap:
		if m.sess.Role() != session.RoleHost {
			return
		}
		reply := protocol.GridUpdate{
			Grid:           [][]int{}, // grid contents are not resynced
			Score:          m.sess.LocalScore(),
			OpponentName:   m.local.Name,
			OpponentAvatar: m.local.Avatar,
		}
		if err := m.sess.Send(reply); err != nil {
			util.LogWarning("failed to answer map request: %v", err)
		}

	case *protocol.GridUpdate:
		m.sess.SetRemote(session.Identity{Name: msg.OpponentName, Avatar: msg.OpponentAvatar})
		m.sess.SetRemoteScore(ev.Epoch, msg.Score)
		m.publish(OpponentJoined{Identity: m.sess.Remote()})

	case *protocol.SyncMap:
		m.sess.SetRemote(session.Identity{Name: msg.OpponentName, Avatar: msg.OpponentAvatar})
		m.publish(OpponentJoined{Identity: m.sess.Remote()})
	}
}

func (m *Machine) handleLocalScore(score int) {
	if m.state != StatePlaying {
		return
	}
	if m.sess != nil {
		m.sess.SetLocalScore(score)
		if err := m.sess.Send(protocol.UpdateScore{Score: score}); err != nil {
			util.LogDebug("failed to send score update: %v", err)
		}
	}
	m.publish(ScoreChanged{Score: score})
}

// handleTimerExpired ends the local match. The transition is deliberately
// unsynchronized: each peer ends on its own clock and the scores reconcile
// through GAME_OVER messages, last value wins.
func (m *Machine) handleTimerExpired(ev TimerExpired) {
	if m.state != StatePlaying || ev.Epoch != m.Epoch() {
		return
	}
	m.setState(StateGameOver)

	local, remote, opponent := 0, 0, ""
	mode := history.ModeSolo
	if m.sess != nil {
		mode = history.ModeMultiplayer
		local = m.sess.LocalScore()
		remote = m.sess.RemoteScore()
		opponent = m.sess.Remote().Name
		if err := m.sess.Send(protocol.GameOver{Score: local}); err != nil {
			util.LogWarning("failed to send final score: %v", err)
		}
	}

	if m.recorder != nil {
		rec := history.MatchRecord{
			When:        time.Now().UTC(),
			Mode:        mode,
			LocalScore:  local,
			RemoteScore: remote,
			Opponent:    opponent,
		}
		if err := m.recorder.Record(context.Background(), rec); err != nil {
			util.LogWarning("failed to record match: %v", err)
		}
	}

	m.publish(MatchEnded{LocalScore: local, RemoteScore: remote, Solo: m.solo})
}

// handleRestart implements rematch consent. Solo matches restart
// unconditionally; multiplayer requires both sides' READY.
func (m *Machine) handleRestart() {
	if m.state != StateGameOver {
		return
	}

	if m.solo {
		m.bumpSoloEpoch()
		m.setState(StatePlaying)
		m.publish(MatchStarted{Rematch: true, Solo: true})
		return
	}

	m.sess.SetLocalReady()
	if err := m.sess.Send(protocol.Ready{}); err != nil {
		util.LogWarning("failed to send ready: %v", err)
	}
	m.maybeRematch()
}

// maybeRematch fires the rematch transition once both ready flags are true.
// Until then the machine stays in GAME_OVER, however long that takes; the
// user can always abandon via home.
func (m *Machine) maybeRematch() {
	if m.state != StateGameOver || m.sess == nil || !m.sess.BothReady() {
		return
	}
	m.sess.NextEpoch()
	m.setState(StatePlaying)
	m.publish(MatchStarted{Rematch: true})
}

func (m *Machine) handleLinkDown(ev LinkDown) {
	reason := "link failure"
	if ev.Err != nil {
		reason = ev.Err.Error()
	}
	m.goHome()
	m.publish(LinkLost{Reason: reason})
	m.publish(ReturnedHome{})
}

// goHome resets every piece of match-scoped state. Idempotent: calling it
// twice (user mashing home, or a link failure racing a manual exit) is safe.
func (m *Machine) goHome() {
	if m.sess != nil {
		m.sess.Close()
		m.setSession(nil)
	}
	m.solo = false
	m.setState(StateMenu)
}
