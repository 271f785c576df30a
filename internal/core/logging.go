package core

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/golang/glog"
)

// Logger is the structured logging surface used by the engine. *slog.Logger
// satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var _ Logger = (*slog.Logger)(nil)

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

type glogLogger struct {
	debug glog.Level
}

// NewGlogLogger routes engine logs through glog. Debug lines are emitted only
// when glog verbosity is at least debugLevel.
func NewGlogLogger(debugLevel glog.Level) Logger {
	return glogLogger{debug: debugLevel}
}

func (l glogLogger) Debug(msg string, args ...any) {
	if glog.V(l.debug) {
		glog.InfoDepth(1, formatLine(msg, args))
	}
}

func (l glogLogger) Info(msg string, args ...any) { glog.InfoDepth(1, formatLine(msg, args)) }
func (l glogLogger) Warn(msg string, args ...any) { glog.WarningDepth(1, formatLine(msg, args)) }
func (l glogLogger) Error(msg string, args ...any) {
	glog.ErrorDepth(1, formatLine(msg, args))
}

func formatLine(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}

// NewLogger builds a Logger from a format name: "text" and "json" write slog
// records to w, "glog" routes through glog and "none" discards.
func NewLogger(format, level string, w io.Writer) (Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "glog":
		return NewGlogLogger(2), nil
	case "none":
		return NopLogger(), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
