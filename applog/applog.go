// Package applog provides general-purpose application logging.
//
// Logs are written as JSON lines to ~/.shelfcare/logs/app.log, rotated by
// lumberjack. When stderr is a terminal and the caller asks for it, a
// human-readable console writer is added alongside the file.
// Covers: app start/stop, config changes, connections, chain stages,
// agent transitions and tool invocations.
package applog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much is logged.
type Options struct {
	Dir     string // log directory; defaults to ~/.shelfcare/logs
	Level   string // zerolog level name; defaults to "info"
	Console bool   // also log to stderr when it is a terminal
}

var rotator *lumberjack.Logger

// Setup builds the application logger and installs it as the global
// zerolog logger. Call Close on shutdown.
func Setup(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}

	dir := opts.Dir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return zerolog.Nop(), err
		}
		dir = filepath.Join(homeDir, ".shelfcare", "logs")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return zerolog.Nop(), err
	}

	rotator = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "app.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
	}

	var out io.Writer = rotator
	if opts.Console && isatty.IsTerminal(os.Stderr.Fd()) {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		out = zerolog.MultiLevelWriter(rotator, console)
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// Event logs a structured event with a category.
func Event(category string, format string, args ...interface{}) {
	log.Info().Str("category", category).Msgf(format, args...)
}

// Close flushes and closes the log file.
func Close() {
	if rotator != nil {
		_ = rotator.Close()
	}
}

// Path returns the active log file, or "" before Setup.
func Path() string {
	if rotator == nil {
		return ""
	}
	return rotator.Filename
}
