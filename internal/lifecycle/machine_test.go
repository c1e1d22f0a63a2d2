package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayase/duelgrid/internal/history"
	"github.com/ayase/duelgrid/internal/protocol"
	"github.com/ayase/duelgrid/internal/session"
	"github.com/ayase/duelgrid/internal/transport/transporttest"
)

type fakeRecorder struct {
	mu   sync.Mutex
	recs []history.MatchRecord
}

func (r *fakeRecorder) Record(_ context.Context, rec history.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *fakeRecorder) all() []history.MatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]history.MatchRecord(nil), r.recs...)
}

// newPlayingMachine drives a machine into PLAYING over an open fake link and
// returns the remote end plus the messages it has received.
func newPlayingMachine(t *testing.T) (*Machine, *transporttest.Channel, *fakeRecorder, func() []protocol.Message) {
	t.Helper()

	local, remote := transporttest.Pipe()
	local.Open()

	var mu sync.Mutex
	var inbox []protocol.Message
	remote.OnMessage(func(data []byte) {
		msg, err := protocol.Decode(data)
		require.NoError(t, err)
		mu.Lock()
		inbox = append(inbox, msg)
		mu.Unlock()
	})
	received := func() []protocol.Message {
		mu.Lock()
		defer mu.Unlock()
		return append([]protocol.Message(nil), inbox...)
	}

	rec := &fakeRecorder{}
	m := NewMachine(session.Identity{Name: "aya", Avatar: "◆"}, nil, rec)
	m.Handle(OpenLobby{})
	m.Handle(Opened{Role: session.RoleHost, Channel: local})
	require.Equal(t, StatePlaying, m.State())

	return m, remote, rec, received
}

func TestOpenedStartsMatchAndAnnouncesIdentity(t *testing.T) {
	m, _, _, received := newPlayingMachine(t)

	msgs := received()
	require.Len(t, msgs, 1)
	start := msgs[0].(*protocol.Start)
	assert.Equal(t, "aya", start.Name)
	assert.Equal(t, "◆", start.Avatar)

	assert.Equal(t, uint64(1), m.Epoch())
	assert.Equal(t, session.RoleHost, m.Session().Role())
}

func TestOpenedIgnoredOutsideLobbyOrConnecting(t *testing.T) {
	local, _ := transporttest.Pipe()
	m := NewMachine(session.Identity{}, nil, nil)

	m.Handle(SoloStarted{})
	require.Equal(t, StatePlaying, m.State())

	m.Handle(Opened{Role: session.RoleJoiner, Channel: local})
	assert.Nil(t, m.Session(), "a channel open mid-solo must not create a session")
}

func TestPeerStartSetsRemoteIdentity(t *testing.T) {
	m, _, _, _ := newPlayingMachine(t)

	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.Start{Name: "rin", Avatar: "●"}})
	assert.Equal(t, "rin", m.Session().Remote().Name)
}

func TestPeerScoreUpdates(t *testing.T) {
	m, _, _, _ := newPlayingMachine(t)

	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.UpdateScore{Score: 30}})
	assert.Equal(t, 30, m.Session().RemoteScore())

	// Stale score from a previous epoch is dropped.
	m.Handle(FromPeer{Epoch: 0, Msg: &protocol.UpdateScore{Score: 999}})
	assert.Equal(t, 30, m.Session().RemoteScore())
}

func TestPeerGameOverIsFinalScoreNotTransition(t *testing.T) {
	m, _, _, _ := newPlayingMachine(t)

	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.GameOver{Score: 80}})

	// Our own match keeps running on our own clock.
	assert.Equal(t, StatePlaying, m.State())
	assert.Equal(t, 80, m.Session().RemoteScore())
}

func TestLocalScoreIsSentToPeer(t *testing.T) {
	m, _, _, received := newPlayingMachine(t)

	m.Handle(LocalScore{Score: 50})

	assert.Equal(t, 50, m.Session().LocalScore())
	msgs := received()
	require.Len(t, msgs, 2) // START then UPDATE_SCORE
	assert.Equal(t, 50, msgs[1].(*protocol.UpdateScore).Score)
}

func TestTimerExpiryEndsMatchAndRecordsHistory(t *testing.T) {
	m, _, rec, received := newPlayingMachine(t)
	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.Start{Name: "rin", Avatar: "●"}})
	m.Handle(LocalScore{Score: 50})
	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.UpdateScore{Score: 70}})

	m.Handle(TimerExpired{Epoch: 1})
	require.Equal(t, StateGameOver, m.State())

	msgs := received()
	over := msgs[len(msgs)-1].(*protocol.GameOver)
	assert.Equal(t, 50, over.Score)

	recs := rec.all()
	require.Len(t, recs, 1)
	assert.Equal(t, history.ModeMultiplayer, recs[0].Mode)
	assert.Equal(t, 50, recs[0].LocalScore)
	assert.Equal(t, 70, recs[0].RemoteScore)
	assert.Equal(t, "rin", recs[0].Opponent)
}

func TestStaleTimerExpiryIgnored(t *testing.T) {
	m, _, rec, _ := newPlayingMachine(t)

	m.Handle(TimerExpired{Epoch: 99})
	assert.Equal(t, StatePlaying, m.State())
	assert.Empty(t, rec.all())
}

func TestRematchRequiresBothReady(t *testing.T) {
	m, _, _, received := newPlayingMachine(t)
	m.Handle(TimerExpired{Epoch: 1})
	require.Equal(t, StateGameOver, m.State())

	// Local consent alone keeps us waiting.
	m.Handle(RestartPressed{})
	assert.Equal(t, StateGameOver, m.State())
	msgs := received()
	assert.IsType(t, &protocol.Ready{}, msgs[len(msgs)-1])

	// Remote consent completes the handshake: new epoch, fresh scores.
	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.Ready{}})
	assert.Equal(t, StatePlaying, m.State())
	assert.Equal(t, uint64(2), m.Epoch())
	assert.Zero(t, m.Session().LocalScore())
}

func TestRematchRemoteFirstThenLocal(t *testing.T) {
	m, _, _, _ := newPlayingMachine(t)
	m.Handle(TimerExpired{Epoch: 1})

	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.Ready{}})
	assert.Equal(t, StateGameOver, m.State())

	m.Handle(RestartPressed{})
	assert.Equal(t, StatePlaying, m.State())
	assert.Equal(t, uint64(2), m.Epoch())
}

func TestSoloRestartIsUnconditional(t *testing.T) {
	m := NewMachine(session.Identity{Name: "aya"}, nil, &fakeRecorder{})
	m.Handle(SoloStarted{})
	require.Equal(t, StatePlaying, m.State())
	require.Equal(t, uint64(1), m.Epoch())

	m.Handle(TimerExpired{Epoch: 1})
	require.Equal(t, StateGameOver, m.State())

	m.Handle(RestartPressed{})
	assert.Equal(t, StatePlaying, m.State())
	assert.Equal(t, uint64(2), m.Epoch())
}

func TestWentHomeTearsDownSession(t *testing.T) {
	m, remote, _, _ := newPlayingMachine(t)

	m.Handle(WentHome{})
	assert.Equal(t, StateMenu, m.State())
	assert.Nil(t, m.Session())

	select {
	case <-remote.Done():
	default:
		t.Fatal("channel not torn down")
	}

	// A second home (or a racing link failure) is harmless.
	m.Handle(WentHome{})
	m.Handle(LinkDown{Err: errors.New("late failure")})
	assert.Equal(t, StateMenu, m.State())
}

func TestLinkDownForcesMenu(t *testing.T) {
	m, _, _, _ := newPlayingMachine(t)

	m.Handle(LinkDown{Err: errors.New("relay gone")})
	assert.Equal(t, StateMenu, m.State())
	assert.Nil(t, m.Session())
}

func TestPeerEventsAfterHomeDropped(t *testing.T) {
	m, _, _, _ := newPlayingMachine(t)
	m.Handle(WentHome{})

	// No session anymore; must not panic or resurrect anything.
	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.UpdateScore{Score: 10}})
	m.Handle(LocalScore{Score: 20})
	assert.Equal(t, StateMenu, m.State())
}

func TestRequestMapAnsweredByHostOnly(t *testing.T) {
	m, _, _, received := newPlayingMachine(t)

	m.Handle(FromPeer{Epoch: 1, Msg: &protocol.RequestMap{}})
	msgs := received()
	require.Len(t, msgs, 2)
	reply := msgs[1].(*protocol.GridUpdate)
	assert.Equal(t, "aya", reply.OpponentName)

	// Joiner side stays quiet.
	local, remote := transporttest.Pipe()
	local.Open()
	var got []protocol.Message
	remote.OnMessage(func(data []byte) {
		msg, err := protocol.Decode(data)
		require.NoError(t, err)
		got = append(got, msg)
	})

	j := NewMachine(session.Identity{Name: "rin"}, nil, nil)
	j.Handle(Connecting{})
	j.Handle(Opened{Role: session.RoleJoiner, Channel: local})
	j.Handle(FromPeer{Epoch: 1, Msg: &protocol.RequestMap{}})
	require.Len(t, got, 1, "joiner sends only its START")
}
