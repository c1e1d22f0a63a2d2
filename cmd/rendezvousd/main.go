// rendezvousd — the rendezvous broker.
//
// Endpoints register under self-chosen ids (room codes, prefixed) over a
// WebSocket and the broker forwards their signaling frames. It never holds
// game state; once the relayed data channel opens the peers stop talking to
// it entirely.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/ayase/duelgrid/internal/logger"
	"github.com/ayase/duelgrid/internal/metrics"
	signalpkg "github.com/ayase/duelgrid/internal/signal"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "rendezvousd",
		Usage:   "signaling broker for duelgrid rooms",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "bind-addr",
				Value: "127.0.0.1:8080",
				Usage: "address to listen on",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "log format (text, json)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable colors in log output",
			},
		},
	}

	cmd.Before = func(_ context.Context, c *cli.Command) (context.Context, error) {
		return nil, logger.Init(c)
	}

	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c.String("bind-addr"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("rendezvousd failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, bindAddr string) error {
	metrics.InitRendezvous()
	broker := signalpkg.NewServer()

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Get("/metrics", promhttp.Handler().ServeHTTP)
	mux.Get("/ws", broker.HandleWS)

	srv := &http.Server{
		Addr:        bindAddr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("rendezvous broker listening", "addr", bindAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
