package logging

import (
	"context"
	"log/slog"
)

type ctxLoggerKey struct {
	Key string
}

var (
	cKey    = ctxLoggerKey{Key: "logger"}
	callKey = ctxLoggerKey{Key: "call_id"}
)

// GetLoggerFromContext returns the logger stored in ctx, or slog.Default().
// The call id of ctx, if any, is attached.
func GetLoggerFromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(cKey).(*slog.Logger)
	if !ok || l == nil {
		l = slog.Default()
	}

	if callID := GetCallIDFromCtx(ctx); callID != "" {
		l = l.With(slog.String("call_id", callID))
	}

	return l
}

// Returns logger from context and attaches operation name
func GetLoggerFromContextWithOp(ctx context.Context, op string) *slog.Logger {
	return GetLoggerFromContext(ctx).With(slog.String("op", op))
}

func MakeContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, cKey, logger)
}
