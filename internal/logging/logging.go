// Package logging builds go-ethereum loggers from the --log.level and
// --log.format flags.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// Format is the output encoding of the log handler.
type Format string

const (
	FormatTerminal Format = "terminal"
	FormatLogfmt   Format = "logfmt"
	FormatJSON     Format = "json"
)

const (
	DefaultLevel  = "info"
	DefaultFormat = FormatTerminal
)

var levels = map[string]slog.Level{
	"trace": log.LevelTrace,
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
	"crit":  log.LevelCrit,
}

// ParseLevel maps trace, debug, info, warn, error or crit to a level.
func ParseLevel(s string) (slog.Level, error) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// ParseFormat validates a format name. An empty name is the terminal format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return DefaultFormat, nil
	case FormatTerminal, FormatLogfmt, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) (log.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	var h slog.Handler
	switch f {
	case FormatLogfmt:
		h = log.LogfmtHandlerWithLevel(w, lvl)
	case FormatJSON:
		h = log.JSONHandlerWithLevel(w, lvl)
	default:
		h = log.NewTerminalHandlerWithLevel(w, lvl, useColor(w))
	}
	return log.NewLogger(h), nil
}

// Setup builds a logger on stderr and installs it as the root logger.
func Setup(level, format string) (log.Logger, error) {
	logger, err := New(os.Stderr, level, format)
	if err != nil {
		return nil, err
	}
	log.SetDefault(logger)
	return logger, nil
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) && os.Getenv("TERM") != "dumb"
}
