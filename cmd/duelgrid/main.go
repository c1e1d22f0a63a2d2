// duelgrid — interactive client.
//
// Connects two players through a rendezvous broker and a TURN relay, then
// runs timed matching-puzzle duels over a WebRTC DataChannel. Launch it bare
// for the interactive menu, or drive a single mode via the solo / host /
// join subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"

	"github.com/ayase/duelgrid/internal/app"
	"github.com/ayase/duelgrid/internal/history"
	"github.com/ayase/duelgrid/internal/protocol"
	"github.com/ayase/duelgrid/internal/session"
	"github.com/ayase/duelgrid/internal/util"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := &cli.Command{
		Name:    "duelgrid",
		Usage:   "two-player matching-puzzle duels over a relayed data channel",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "broker-url",
				Value: "ws://127.0.0.1:8080/ws",
				Usage: "rendezvous broker WebSocket URL",
			},
			&cli.StringFlag{
				Name:  "relay-host",
				Value: "127.0.0.1:3478",
				Usage: "TURN relay host:port",
			},
			&cli.StringFlag{
				Name:  "relay-user",
				Value: "duelgrid",
				Usage: "TURN username",
			},
			&cli.StringFlag{
				Name:  "relay-pass",
				Value: "duelgrid",
				Usage: "TURN credential",
			},
			&cli.StringFlag{
				Name:  "db",
				Value: defaultDBPath(),
				Usage: "match history database path",
			},
			&cli.StringFlag{
				Name:  "wire-format",
				Value: "json",
				Usage: "channel message encoding (json, cbor); both players must match",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
	}

	cmd.Before = func(_ context.Context, c *cli.Command) (context.Context, error) {
		if c.Bool("debug") {
			util.EnableDebug()
		}
		codec, err := protocol.ByName(c.String("wire-format"))
		if err != nil {
			return nil, err
		}
		protocol.DefaultCodec = codec
		return nil, nil
	}

	cmd.Commands = []*cli.Command{
		{
			Name:  "solo",
			Usage: "play an offline match",
			Action: func(ctx context.Context, c *cli.Command) error {
				return withController(ctx, c, func(ctl *app.Controller) error {
					return ctl.RunSolo(ctx)
				})
			},
		},
		{
			Name:  "host",
			Usage: "open a room and wait for an opponent",
			Action: func(ctx context.Context, c *cli.Command) error {
				return withController(ctx, c, func(ctl *app.Controller) error {
					return ctl.RunHost(ctx)
				})
			},
		},
		{
			Name:      "join",
			Usage:     "join a room by its 4-digit code",
			ArgsUsage: "<code>",
			Action: func(ctx context.Context, c *cli.Command) error {
				code := strings.TrimSpace(c.Args().First())
				if code == "" {
					return fmt.Errorf("usage: duelgrid join <code>")
				}
				return withController(ctx, c, func(ctl *app.Controller) error {
					return ctl.RunJoin(ctx, code)
				})
			},
		},
	}

	// No subcommand → interactive menu.
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		return withController(ctx, c, func(ctl *app.Controller) error {
			return runInteractive(ctx, ctl)
		})
	}

	if err := cmd.Run(ctx, os.Args); err != nil && ctx.Err() == nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

// withController builds the controller from root flags, loads the saved
// identity, runs fn and tears everything down afterwards.
func withController(ctx context.Context, c *cli.Command, fn func(*app.Controller) error) error {
	pterm.Info.Println(fmt.Sprintf("duelgrid — v%s", version))
	pterm.Println()

	ctl, err := app.New(app.Config{
		BrokerURL:       c.String("broker-url"),
		RelayHost:       c.String("relay-host"),
		RelayUsername:   c.String("relay-user"),
		RelayCredential: c.String("relay-pass"),
		HistoryPath:     c.String("db"),
	})
	if err != nil {
		return err
	}
	defer ctl.Close()

	id, err := loadIdentity(ctx, ctl)
	if err != nil {
		return err
	}
	ctl.SetIdentity(id)

	return fn(ctl)
}

// loadIdentity reads the saved name and avatar, falling back to defaults on
// a fresh database.
func loadIdentity(ctx context.Context, ctl *app.Controller) (session.Identity, error) {
	prefs, err := ctl.Store().Prefs(ctx)
	if err != nil {
		return session.Identity{}, err
	}
	return session.Identity{Name: prefs.Name, Avatar: prefs.Avatar}, nil
}

// ---------------------------------------------------------------------------
// Interactive menu
// ---------------------------------------------------------------------------

func runInteractive(ctx context.Context, ctl *app.Controller) error {
	for ctx.Err() == nil {
		choice, _ := pterm.DefaultInteractiveSelect.
			WithOptions([]string{
				"Solo   — Play offline",
				"Host   — Open a room",
				"Join   — Enter a room code",
				"Player — Name and avatar",
				"History — Recent matches",
				"Quit",
			}).
			WithDefaultText("Main menu").
			Show()
		pterm.Println()

		var err error
		switch {
		case strings.HasPrefix(choice, "Solo"):
			err = ctl.RunSolo(ctx)
		case strings.HasPrefix(choice, "Host"):
			err = ctl.RunHost(ctx)
		case strings.HasPrefix(choice, "Join"):
			err = ctl.RunJoin(ctx, askCode())
		case strings.HasPrefix(choice, "Player"):
			err = editIdentity(ctx, ctl)
		case strings.HasPrefix(choice, "History"):
			err = showHistory(ctx, ctl)
		default:
			return nil
		}
		if err != nil && ctx.Err() == nil {
			util.LogError("%v", err)
		}
		pterm.Println()
	}
	return nil
}

// askCode prompts until the input looks like a room code. Full validation
// is the rendezvous manager's job; this only trims the obvious typos.
func askCode() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Room code (4 digits)").
			Show()
		code := strings.TrimSpace(raw)
		if len(code) == 4 {
			pterm.Println()
			return code
		}
		util.LogWarning("room codes are exactly 4 digits")
	}
}

func editIdentity(ctx context.Context, ctl *app.Controller) error {
	prefs, err := ctl.Store().Prefs(ctx)
	if err != nil {
		return err
	}

	name, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultValue(prefs.Name).
		WithDefaultText("Display name").
		Show()
	avatar, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"◆", "●", "▲", "■", "★", "✿"}).
		WithDefaultText("Avatar").
		Show()

	name = strings.TrimSpace(name)
	if name == "" {
		name = prefs.Name
	}
	if err := ctl.Store().SavePrefs(ctx, name, avatar); err != nil {
		return err
	}
	ctl.SetIdentity(session.Identity{Name: name, Avatar: avatar})
	util.LogSuccess("saved: %s %s", avatar, name)
	return nil
}

func showHistory(ctx context.Context, ctl *app.Controller) error {
	prefs, err := ctl.Store().Prefs(ctx)
	if err != nil {
		return err
	}
	recs, err := ctl.Store().Recent(ctx, 10)
	if err != nil {
		return err
	}

	pterm.Info.Println(fmt.Sprintf("high score: %d", prefs.HighScore))
	if len(recs) == 0 {
		pterm.Println("no matches played yet")
		return nil
	}

	rows := pterm.TableData{{"played", "mode", "you", "them", "opponent"}}
	for _, r := range recs {
		them := "-"
		if r.Mode == history.ModeMultiplayer {
			them = fmt.Sprintf("%d", r.RemoteScore)
		}
		rows = append(rows, []string{
			r.When.Local().Format("02 Jan 15:04"),
			r.Mode,
			fmt.Sprintf("%d", r.LocalScore),
			them,
			r.Opponent,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// defaultDBPath places the history database next to the user's config.
func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "duelgrid.sqlite"
	}
	return filepath.Join(dir, "duelgrid", "duelgrid.sqlite")
}
