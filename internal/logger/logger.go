// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logger provides the structured JSON logger used by every stage.
package logger

import (
	"io"
	"strings"

	"github.com/gookit/slog"
	"github.com/gookit/slog/handler"
)

// Logger is the minimal logging surface stages depend on.
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Fields carries structured key/value pairs for one log line.
type Fields map[string]any

// New returns a gookit/slog logger writing JSON lines to the console at
// the given level ("debug", "info", "warn", "error"). Unknown levels fall
// back to info.
func New(level string) Logger {
	h := handler.NewConsoleHandler(levelsUpTo(level))
	h.SetFormatter(jsonFormatter())
	return slog.NewWithHandlers(h)
}

// NewWriter is New with an explicit destination. Tests use it to capture
// output.
func NewWriter(w io.Writer, level string) Logger {
	h := handler.NewIOWriterHandler(w, levelsUpTo(level))
	h.SetFormatter(jsonFormatter())
	return slog.NewWithHandlers(h)
}

// InfoWithFields writes msg at info level with structured fields. Loggers
// that do not support fields get the bare message.
func InfoWithFields(l Logger, msg string, fields Fields) {
	if lg, ok := l.(*slog.Logger); ok {
		lg.WithFields(slog.M(fields)).Info(msg)
		return
	}
	l.Info(msg)
}

// Discard returns a logger that drops everything.
func Discard() Logger { return discard{} }

func levelsUpTo(level string) slog.Levels {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "" {
		name = "info"
	}
	max := slog.LevelByName(name)

	var levels slog.Levels
	for _, lv := range slog.AllLevels {
		if lv <= max {
			levels = append(levels, lv)
		}
	}
	return levels
}

func jsonFormatter() *slog.JSONFormatter {
	return slog.NewJSONFormatter(func(f *slog.JSONFormatter) {
		f.Fields = []string{
			slog.FieldKeyDatetime,
			slog.FieldKeyLevel,
			slog.FieldKeyMessage,
			slog.FieldKeyData,
		}
		f.Aliases = slog.StringMap{
			slog.FieldKeyDatetime: "datetime",
			slog.FieldKeyLevel:    "level",
			slog.FieldKeyMessage:  "message",
		}
		f.TimeFormat = "2006-01-02T15:04:05"
	})
}

type discard struct{}

func (discard) Debug(...any)          {}
func (discard) Info(...any)           {}
func (discard) Warn(...any)           {}
func (discard) Error(...any)          {}
func (discard) Debugf(string, ...any) {}
func (discard) Infof(string, ...any)  {}
func (discard) Warnf(string, ...any)  {}
func (discard) Errorf(string, ...any) {}
