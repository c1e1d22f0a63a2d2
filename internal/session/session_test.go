package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayase/duelgrid/internal/protocol"
	"github.com/ayase/duelgrid/internal/transport/transporttest"
)

func newSession(t *testing.T) (*Session, *transporttest.Channel) {
	t.Helper()
	local, remote := transporttest.Pipe()
	local.Open()
	s := New(RoleHost, local, Identity{Name: "aya", Avatar: "◆"})
	return s, remote
}

func TestNextEpochClearsMatchState(t *testing.T) {
	s, _ := newSession(t)
	require.Equal(t, uint64(1), s.Epoch())

	s.SetRemote(Identity{Name: "rin", Avatar: "●"})
	s.SetLocalScore(50)
	require.True(t, s.SetRemoteScore(1, 70))
	s.SetLocalReady()
	s.SetRemoteReady()
	require.True(t, s.BothReady())

	assert.Equal(t, uint64(2), s.NextEpoch())

	// Scores and consent reset; the opponent stays.
	assert.Zero(t, s.LocalScore())
	assert.Zero(t, s.RemoteScore())
	assert.False(t, s.BothReady())
	assert.Equal(t, "rin", s.Remote().Name)
}

func TestStaleRemoteScoreRejected(t *testing.T) {
	s, _ := newSession(t)
	s.NextEpoch() // now epoch 2

	assert.False(t, s.SetRemoteScore(1, 999), "score from the previous match must not apply")
	assert.Zero(t, s.RemoteScore())

	assert.True(t, s.SetRemoteScore(2, 30))
	assert.Equal(t, 30, s.RemoteScore())
}

func TestStale(t *testing.T) {
	s, _ := newSession(t)
	assert.False(t, s.Stale(1))
	assert.True(t, s.Stale(0))
	s.NextEpoch()
	assert.True(t, s.Stale(1))
}

func TestBothReadyRequiresBothSides(t *testing.T) {
	s, _ := newSession(t)

	assert.False(t, s.BothReady())
	s.SetLocalReady()
	assert.False(t, s.BothReady())
	s.SetRemoteReady()
	assert.True(t, s.BothReady())
}

func TestSendEncodesOnChannel(t *testing.T) {
	s, remote := newSession(t)

	got := make(chan []byte, 1)
	remote.OnMessage(func(data []byte) { got <- data })

	require.NoError(t, s.Send(protocol.UpdateScore{Score: 40}))

	msg, err := protocol.Decode(<-got)
	require.NoError(t, err)
	assert.Equal(t, 40, msg.(*protocol.UpdateScore).Score)
}

func TestCloseIdempotent(t *testing.T) {
	s, _ := newSession(t)
	s.Close()
	s.Close()

	select {
	case <-s.Channel().Done():
	default:
		t.Fatal("channel not closed")
	}
}
