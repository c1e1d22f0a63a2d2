package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelindar/event"
	"github.com/pterm/pterm"

	"github.com/ayase/duelgrid/internal/lifecycle"
	"github.com/ayase/duelgrid/internal/monitor"
	"github.com/ayase/duelgrid/internal/rendezvous"
	"github.com/ayase/duelgrid/internal/session"
	"github.com/ayase/duelgrid/internal/transport"
	"github.com/ayase/duelgrid/internal/util"
)

// RunSolo plays offline matches until the player goes home.
func (c *Controller) RunSolo(ctx context.Context) error {
	l := c.startLoop()
	defer l.stop()

	l.post(lifecycle.SoloStarted{})
	return c.matchCycle(ctx, l, nil)
}

// RunHost orchestrates the full host flow:
//  1. Claim a room code on the broker (redrawing on collisions)
//  2. Display the code and wait for an opponent to dial in
//  3. Wait for the relayed data channel to open
//  4. Hand the channel to the lifecycle machine and play
func (c *Controller) RunHost(ctx context.Context) error {
	l := c.startLoop()
	defer l.stop()
	l.post(lifecycle.OpenLobby{})

	spinner, _ := pterm.DefaultSpinner.Start("claiming a room code...")
	code, ep, err := c.manager.HostRoom(ctx)
	if err != nil {
		spinner.Fail("could not open a room")
		return err
	}
	spinner.Success(fmt.Sprintf("room %s is open", code))
	defer c.manager.Destroy()

	pterm.DefaultBox.WithTitle("room code").Println(pterm.LightCyan(code))
	util.LogInfo("waiting for an opponent (Ctrl+C to cancel)")

	// One opponent per room; further dial-ins are refused.
	inbound := make(chan transport.Channel, 1)
	ep.OnInbound(func(ch transport.Channel) {
		select {
		case inbound <- ch:
		default:
			_ = ch.Close()
		}
	})

	var ch transport.Channel
	select {
	case ch = <-inbound:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.post(lifecycle.Connecting{})
	select {
	case <-ch.Opened():
	case <-ch.Done():
		return fmt.Errorf("opponent connection failed: %w", ch.Err())
	case <-ctx.Done():
		return ctx.Err()
	}

	mon := l.attach(ch)
	defer mon.Stop()
	l.post(lifecycle.Opened{Role: session.RoleHost, Channel: ch})
	return c.matchCycle(ctx, l, mon)
}

// RunJoin dials into an existing room by its 4-digit code.
func (c *Controller) RunJoin(ctx context.Context, code string) error {
	l := c.startLoop()
	defer l.stop()
	l.post(lifecycle.Connecting{})

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("joining room %s...", code))
	ch, err := c.manager.JoinRoom(ctx, code)
	if err != nil {
		spinner.Fail(joinFailure(code, err))
		return err
	}
	spinner.Success("connected")
	defer c.manager.Destroy()

	mon := l.attach(ch)
	defer mon.Stop()
	l.post(lifecycle.Opened{Role: session.RoleJoiner, Channel: ch})
	return c.matchCycle(ctx, l, mon)
}

// joinFailure maps rendezvous errors onto player-facing phrasing.
func joinFailure(code string, err error) string {
	switch {
	case errors.Is(err, rendezvous.ErrInvalidCode):
		return "room codes are exactly 4 digits, e.g. 4271"
	case errors.Is(err, rendezvous.ErrDialTimeout):
		return fmt.Sprintf("nobody answered in room %s; check the code and try again", code)
	case errors.Is(err, rendezvous.ErrDialRejected):
		return fmt.Sprintf("room %s is not open right now", code)
	default:
		return fmt.Sprintf("could not join: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Match cycle
// ---------------------------------------------------------------------------

// matchCycle runs matches until the player goes home or the link drops. One
// iteration is: play until the countdown expires (or the player quits), show
// the verdict, then settle the rematch question.
func (c *Controller) matchCycle(ctx context.Context, l *loop, mon *monitor.Monitor) error {
	started := make(chan lifecycle.MatchStarted, 4)
	ended := make(chan lifecycle.MatchEnded, 4)
	lost := make(chan lifecycle.LinkLost, 4)

	unsub := []func(){
		event.SubscribeTo(c.bus, lifecycle.MatchStarted{}.Type(), func(e lifecycle.MatchStarted) { started <- e }),
		event.SubscribeTo(c.bus, lifecycle.MatchEnded{}.Type(), func(e lifecycle.MatchEnded) { ended <- e }),
		event.SubscribeTo(c.bus, lifecycle.LinkLost{}.Type(), func(e lifecycle.LinkLost) { lost <- e }),
	}
	defer func() {
		for _, u := range unsub {
			u()
		}
	}()

	goHome := func() {
		if mon != nil {
			mon.Stop()
		}
		l.post(lifecycle.WentHome{})
	}

	for {
		select {
		case ms := <-started:
			if quit := c.playMatch(ctx, l, ms); quit {
				goHome()
				return nil
			}

		case me := <-ended:
			if !c.promptRematch(l, me) {
				goHome()
				return nil
			}
			if !me.Solo {
				util.LogInfo("waiting for the opponent to accept...")
			}

		case ll := <-lost:
			util.LogError("connection lost: %s", ll.Reason)
			return nil

		case <-ctx.Done():
			goHome()
			return ctx.Err()
		}
	}
}

// promptRematch shows the final scores and asks the player. Returning true
// means READY was sent (or, solo, the match restarted already); false means
// the player chose home.
func (c *Controller) promptRematch(l *loop, me lifecycle.MatchEnded) bool {
	pterm.Println()
	if me.Solo {
		pterm.DefaultBox.WithTitle("time's up").Println(fmt.Sprintf("score %d", me.LocalScore))
	} else {
		verdict := "draw"
		switch {
		case me.LocalScore > me.RemoteScore:
			verdict = "you win"
		case me.LocalScore < me.RemoteScore:
			verdict = "you lose"
		}
		body := fmt.Sprintf("you %d — opponent %d\n%s", me.LocalScore, me.RemoteScore, verdict)
		pterm.DefaultBox.WithTitle("time's up").Println(body)
	}

	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Rematch", "Home"}).
		WithDefaultText("Play again?").
		Show()

	if choice != "Rematch" {
		return false
	}
	l.post(lifecycle.RestartPressed{})
	return true
}
