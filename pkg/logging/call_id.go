package logging

import (
	"context"

	"github.com/google/uuid"
)

func GetCallIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(callKey).(string); ok {
		return v
	}
	return ""
}

func MakeContextWithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, callKey, callID)
}

// EnsureCallID tags ctx with a fresh call id unless it already carries one.
func EnsureCallID(ctx context.Context) context.Context {
	if GetCallIDFromCtx(ctx) != "" {
		return ctx
	}
	return MakeContextWithCallID(ctx, uuid.NewString())
}
