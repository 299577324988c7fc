package log

import (
	"context"
	"log/slog"
	"os"
)

var (
	defaultLogLevel slog.LevelVar
	defaultLogger   = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     &defaultLogLevel,
	}))
)

func init() {
	defaultLogLevel.Set(slog.LevelInfo)
}

type loggerKey struct{}
type componentKey struct{}

// Ctx returns the logger carried by the context (or the default logger),
// tagged with the context's component when one is set.
func Ctx(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok {
		l = defaultLogger
	}
	if c, ok := ctx.Value(componentKey{}).(string); ok {
		l = l.With(slog.String("component", c))
	}
	return l
}

// With returns a new context with the given logger.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithComponent returns a context whose logger tags every record with the
// given component name (e.g. "rates", "horizon"). The component rides the
// context separately from the logger, so a later With keeps it.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey{}, component)
}

func SetDefaultLogLevel(level slog.Level) {
	defaultLogLevel.Set(level)
}
