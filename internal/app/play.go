package app

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/ayase/duelgrid/internal/game"
	"github.com/ayase/duelgrid/internal/lifecycle"
	"github.com/ayase/duelgrid/internal/util"
)

// tileGlyphs maps tile kinds to display runes; index 0 is the empty cell.
var tileGlyphs = []string{"·", "●", "◆", "▲", "■", "★", "✿"}

type inputAction int

const (
	inputPair inputAction = iota
	inputQuit
	inputNone
)

// playMatch runs one local match: it deals a board, arms the countdown and
// loops on player input until the clock runs out or the player quits. The
// countdown posts TimerExpired into the loop; this function never declares
// game over itself.
func (c *Controller) playMatch(ctx context.Context, l *loop, ms lifecycle.MatchStarted) (quit bool) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	match := game.NewMatch(rng)

	epoch := l.machine.Epoch()
	cd := game.NewCountdown(game.DefaultMatchDuration, func() {
		l.post(lifecycle.TimerExpired{Epoch: epoch})
	})
	defer cd.Stop()
	deadline := time.Now().Add(game.DefaultMatchDuration)

	if ms.Rematch {
		util.LogSuccess("rematch on")
	}

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return true
		}
		c.renderBoard(l, match, time.Until(deadline))

		a, b, act := askPair()
		switch act {
		case inputQuit:
			return true
		case inputNone:
			continue
		}

		if time.Now().After(deadline) {
			return false
		}
		if match.Try(a, b, rng) {
			l.post(lifecycle.LocalScore{Score: match.Score})
		} else {
			util.LogWarning("not a matching pair")
		}
	}
	return false
}

// renderBoard draws the grid top-down (row 0 is the bottom, where tiles
// settle) with the score line underneath.
func (c *Controller) renderBoard(l *loop, m *game.Match, remaining time.Duration) {
	b := m.Board

	var sb strings.Builder
	for y := b.Height() - 1; y >= 0; y-- {
		fmt.Fprintf(&sb, "%2d  ", y)
		for x := 0; x < b.Width(); x++ {
			t := b.At(game.Point{X: x, Y: y})
			sb.WriteString(tileGlyphs[int(t)%len(tileGlyphs)])
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("    ")
	for x := 0; x < b.Width(); x++ {
		sb.WriteString(strconv.Itoa(x % 10))
		sb.WriteByte(' ')
	}

	pterm.Println()
	pterm.Println(sb.String())

	status := fmt.Sprintf("score %d   %ds left", m.Score, int(remaining.Seconds()))
	if sess := l.machine.Session(); sess != nil {
		opp := sess.Remote().Name
		if opp == "" {
			opp = "opponent"
		}
		status += fmt.Sprintf("   %s %s: %d", sess.Remote().Avatar, opp, sess.RemoteScore())
	}
	pterm.Println(pterm.LightCyan(status))
}

// askPair reads one move: four coordinates "x1 y1 x2 y2", or q to go home.
func askPair() (a, b game.Point, act inputAction) {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("pair as x1 y1 x2 y2 (q = home)").
		Show()

	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 1 {
		switch strings.ToLower(fields[0]) {
		case "q", "quit", "home":
			return a, b, inputQuit
		}
	}
	if len(fields) != 4 {
		util.LogWarning("enter four numbers, like: 0 1 0 2")
		return a, b, inputNone
	}

	nums := make([]int, 4)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			util.LogWarning("not a number: %s", f)
			return a, b, inputNone
		}
		nums[i] = n
	}
	a = game.Point{X: nums[0], Y: nums[1]}
	b = game.Point{X: nums[2], Y: nums[3]}
	return a, b, inputPair
}
