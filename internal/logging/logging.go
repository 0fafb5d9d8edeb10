// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/themetool/internal/patcher"
)

// Options controls where log records go.
type Options struct {
	// Level is a zerolog level name. Empty means info.
	Level string
	// File, when set, receives JSON records in addition to the console.
	File string
	// Console defaults to stderr.
	Console io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from opts and installs it as log.Logger. The returned
// Closer flushes the log file, if any.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		level = l
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	cw := zerolog.ConsoleWriter{
		Out:        console,
		NoColor:    !isTerminal(console),
		TimeFormat: time.Kitchen,
	}

	writers := []io.Writer{cw}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return zerolog.Nop(), nil, err
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		writers = append(writers, f)
		closer = f
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// EventHandler returns a patcher event callback that logs every step.
// Failed steps log at warn so they show at the default level.
func EventHandler(logger zerolog.Logger) func(patcher.Event) {
	return func(ev patcher.Event) {
		e := logger.Debug()
		if !ev.OK() {
			e = logger.Warn().Err(ev.Err).Uint32("code", patcher.ErrorCode(ev.Err))
		}
		e = e.Str("op", ev.Op).Str("step", string(ev.Step))
		if ev.Target != "" {
			e = e.Str("target", string(ev.Target))
		}
		e.Msg("step completed")
	}
}
