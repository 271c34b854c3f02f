package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	runIDKey
)

// WithLogger attaches logger to ctx. A nil logger attaches Default.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger attached to ctx, or Default.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && l != nil {
			return l
		}
	}
	return Default()
}

// WithField adds one field to every later log line of ctx.
func WithField(ctx context.Context, key string, value any) context.Context {
	l := FromContext(ctx).With().Interface(key, value).Logger()
	return WithLogger(ctx, &l)
}

// WithRunID tags every log line of one command invocation.
func WithRunID(ctx context.Context, id string) context.Context {
	l := FromContext(ctx).With().Str("run_id", id).Logger()
	return WithLogger(context.WithValue(ctx, runIDKey, id), &l)
}

// RunID returns the id set by WithRunID.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithCommand tags log lines with the running command.
func WithCommand(ctx context.Context, command string) context.Context {
	l := FromContext(ctx).With().Str("command", command).Logger()
	return WithLogger(ctx, &l)
}
