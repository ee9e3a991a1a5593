package orders

import "context"

type ctxKey int

const (
	actorKey ctxKey = iota
	traceKey
)

// WithActor attaches the already-authenticated caller id to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey).(string)
	return s
}

func WithTrace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey, id)
}

func TraceFrom(ctx context.Context) string {
	s, _ := ctx.Value(traceKey).(string)
	return s
}
