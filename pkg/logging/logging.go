// Package logging builds the zerolog loggers used by zotsync and carries
// them through contexts. A run logs to stderr, human readable when stderr
// is a terminal and JSON otherwise, or to a rotated file.
//
//	logger := logging.New(logging.Options{Level: "debug"})
//	ctx := logging.WithLogger(context.Background(), &logger)
//	ctx = logging.WithCommand(ctx, "clean")
//	logging.FromContext(ctx).Debug().Int("clusters", 3).Msg("Clustered records")
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/espace/zotsync/pkg/constants"
)

// Options configure a logger built by New.
type Options struct {
	Level     string // trace, debug, info, warn, error or off
	Format    string // json, console or auto
	Output    string // stderr, stdout, discard or a file path
	NoColor   bool
	AddCaller bool
	// Rotation applies when Output is a file path.
	Rotation Rotation
}

// Rotation bounds a log file.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultRotation keeps a few small files for a week.
func DefaultRotation() Rotation {
	return Rotation{
		MaxSizeMB:  constants.LogRotationSizeMB,
		MaxBackups: constants.LogRotationBackups,
		MaxAgeDays: constants.LogRotationAgeDays,
	}
}

var defaultLogger = New(Options{
	Level:  os.Getenv("LOG_LEVEL"),
	Format: os.Getenv("LOG_FORMAT"),
})

// Default returns the logger used when a context carries none.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// New builds a logger from opts.
func New(opts Options) zerolog.Logger {
	level := ParseLevel(opts.Level)
	// events below the global level are dropped before the logger's own check
	if level < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
	}

	ctx := zerolog.New(writer(opts)).Level(level).With().Timestamp()
	if opts.AddCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names are info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "off", "none", "disabled":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(s); err == nil {
		return l
	}
	return zerolog.InfoLevel
}

func writer(opts Options) io.Writer {
	var out io.Writer
	tty := false
	switch strings.ToLower(opts.Output) {
	case "", "stderr":
		out = os.Stderr
		fd := os.Stderr.Fd()
		tty = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	case "stdout":
		out = os.Stdout
	case "discard", "none":
		return io.Discard
	default:
		r := opts.Rotation
		def := DefaultRotation()
		out = &lumberjack.Logger{
			Filename:   opts.Output,
			MaxSize:    positive(r.MaxSizeMB, def.MaxSizeMB),
			MaxBackups: positive(r.MaxBackups, def.MaxBackups),
			MaxAge:     positive(r.MaxAgeDays, def.MaxAgeDays),
		}
	}

	console := tty
	switch strings.ToLower(opts.Format) {
	case "console", "pretty":
		console = true
	case "json":
		console = false
	}
	if !console {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor || !tty || os.Getenv("NO_COLOR") != "",
	}
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
