// relayd — the TURN relay all match traffic goes through.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/ayase/duelgrid/internal/logger"
	"github.com/ayase/duelgrid/internal/metrics"
	"github.com/ayase/duelgrid/internal/relay"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "relayd",
		Usage:   "TURN relay for duelgrid matches",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "public-ip",
				Value: "127.0.0.1",
				Usage: "IP address clients reach relayed traffic on",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 3478,
				Usage: "listening port (UDP and TCP)",
			},
			&cli.StringFlag{
				Name:  "realm",
				Value: "duelgrid",
				Usage: "TURN authentication realm",
			},
			&cli.StringFlag{
				Name:  "users",
				Value: "duelgrid=duelgrid",
				Usage: "credentials as user=pass,user=pass",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Value: "127.0.0.1:9091",
				Usage: "listen address for /metrics and /healthz",
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
		metrics.InitRelay()

		srv, err := relay.Start(&relay.Config{
			PublicIP: c.String("public-ip"),
			Port:     strconv.Itoa(int(c.Int("port"))),
			Realm:    c.String("realm"),
			Users:    c.String("users"),
		})
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/metrics", promhttp.Handler().ServeHTTP)

		metricsSrv := &http.Server{
			Addr:        c.String("metrics-addr"),
			Handler:     r,
			ReadTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics listener failed", "error", err)
			}
		}()

		slog.Info("relay listening", "port", c.Int("port"), "realm", c.String("realm"), "metrics", c.String("metrics-addr"))
		<-ctx.Done()

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("relayd failed", "error", err)
		os.Exit(1)
	}
}
