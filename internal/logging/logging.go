// Package logging builds the shell's structured logger.
//
// Output is text-formatted slog written to stderr, or through the terminal
// line editor in interactive mode so log lines do not corrupt the prompt.
// The level is held in a slog.LevelVar and can change while running.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel converts debug, info, warn or error (any case, with an optional
// +N/-N offset) into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// New returns a text logger writing to w at the level held by lv.
// A nil lv logs at slog.LevelInfo.
func New(w io.Writer, lv *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{}
	if lv != nil {
		opts.Level = lv
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetLevel parses s and stores it in lv.
func SetLevel(lv *slog.LevelVar, s string) error {
	l, err := ParseLevel(s)
	if err != nil {
		return err
	}
	lv.Set(l)
	return nil
}
