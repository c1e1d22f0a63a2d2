package game

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultMatchDuration is how long one match lasts on the local clock. The
// two peers do not synchronize their clocks; each ends independently.
const DefaultMatchDuration = 90 * time.Second

// Match is one local play-through: a board plus the running score.
type Match struct {
	Board *Board
	Score int
}

// NewMatch deals a fresh default-sized board.
func NewMatch(rng *rand.Rand) *Match {
	return &Match{Board: NewBoard(DefaultWidth, DefaultHeight, rng)}
}

// Try attempts to remove the pair (a, b). On success the score grows and,
// when the board empties before the timer runs out, a fresh board is dealt
// so play continues.
func (m *Match) Try(a, b Point, rng *rand.Rand) bool {
	if !m.Board.Match(a, b) {
		return false
	}
	m.Score += MatchPoints
	if m.Board.Remaining() == 0 {
		m.Board = NewBoard(DefaultWidth, DefaultHeight, rng)
	}
	return true
}

// Countdown delivers a single expiry callback after d, unless stopped first.
// Stop is idempotent and suppresses a late callback that has not yet fired;
// the wrapped timer is never reused.
type Countdown struct {
	timer    *time.Timer
	stopOnce sync.Once
}

// NewCountdown arms a countdown. fn runs on the timer goroutine; callers
// forward it into their event loop rather than mutating state from it.
func NewCountdown(d time.Duration, fn func()) *Countdown {
	return &Countdown{timer: time.AfterFunc(d, fn)}
}

// Stop cancels the countdown.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		c.timer.Stop()
	})
}
