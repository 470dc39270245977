// Package logger provides the loggers used across smpeer: a colorized slog
// handler for the rendezvous and transport layers, and a logrus logger for
// the session orchestration layer.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[37m"
)

type PrettyHandler struct {
	mu    sync.Mutex
	out   io.Writer
	level slog.Level
	attrs []slog.Attr
}

func NewPrettyHandler(out io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{
		out:   out,
		level: level,
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timestamp := r.Time.Format(time.TimeOnly)
	level := h.colorizeLevel(r.Level)
	msg := r.Message

	line := fmt.Sprintf("%s %s %s", timestamp, level, msg)

	for _, a := range h.attrs {
		line += fmt.Sprintf(" %s%s%s=%v", colorGray, a.Key, colorReset, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s%s%s=%v", colorGray, a.Key, colorReset, a.Value.Any())
		return true
	})

	_, err := fmt.Fprintln(h.out, line)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PrettyHandler{
		out:   h.out,
		level: h.level,
		attrs: merged,
	}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *PrettyHandler) colorizeLevel(level slog.Level) string {
	var color string
	var name string

	switch level {
	case slog.LevelDebug:
		color = colorBlue
		name = "DEBUG"
	case slog.LevelInfo:
		color = colorGreen
		name = "INFO"
	case slog.LevelWarn:
		color = colorYellow
		name = "WARN"
	case slog.LevelError:
		color = colorRed
		name = "ERROR"
	default:
		color = colorGray
		name = level.String()
	}

	return fmt.Sprintf("%s%-5s%s", color, name, colorReset)
}

// NewLogger returns a logger printing at Info and above.
func NewLogger() *slog.Logger {
	return NewLoggerAt(slog.LevelInfo)
}

// NewLoggerAt returns a logger with an explicit level floor.
func NewLoggerAt(level slog.Level) *slog.Logger {
	return slog.New(NewPrettyHandler(os.Stdout, level))
}

// NewLogrus returns the logrus logger used by the orchestration layer,
// mapped from the same debug verbosity knob as LevelFor.
func NewLogrus(debug int) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.TimeOnly,
	})

	switch {
	case debug <= 0:
		log.SetOutput(io.Discard)
	case debug == 1:
		log.SetLevel(logrus.ErrorLevel)
	case debug == 2:
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// LevelFor maps a debug verbosity knob (0=silent, 1=errors, 2=warnings,
// 3=everything) onto a slog level floor.
func LevelFor(debug int) slog.Level {
	switch {
	case debug <= 0:
		return slog.Level(99)
	case debug == 1:
		return slog.LevelError
	case debug == 2:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
