// Package logger configures slog for the daemons.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// logLevels maps log level names to slog.Level values.
var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Init reads the log-level and log-format flags from cmd and installs the
// default logger accordingly.
func Init(cmd *cli.Command) error {
	level, ok := logLevels[strings.ToLower(cmd.String("log-level"))]
	if !ok {
		return fmt.Errorf("invalid log level: %s", cmd.String("log-level"))
	}

	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		SetColoredLogger(os.Stderr, level, cmd.Bool("no-color"))
	default:
		SetJSONLogger(os.Stderr, level)
	}
	return nil
}

func SetColoredLogger(w *os.File, level slog.Level, forceNoColor bool) {
	slog.SetDefault(slog.New(
		tint.NewHandler(
			colorable.NewColorable(w),
			&tint.Options{
				Level:      level,
				TimeFormat: time.TimeOnly,
				NoColor:    !isatty.IsTerminal(w.Fd()) || os.Getenv("NO_COLOR") != "" || forceNoColor,
			},
		),
	))
}

func SetJSONLogger(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: level == slog.LevelDebug,
			Level:     level,
		}),
	))
}
