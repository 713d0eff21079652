package tools

import "context"

type contextKey struct{}

// CallMeta identifies the run and stage a tool call belongs to.
type CallMeta struct {
	RunID  string
	Stage  string
	CallID string
}

// WithCallMeta injects tool call metadata into a context.
func WithCallMeta(ctx context.Context, meta CallMeta) context.Context {
	return context.WithValue(ctx, contextKey{}, meta)
}

// CallMetaFromContext extracts call metadata if present.
func CallMetaFromContext(ctx context.Context) (CallMeta, bool) {
	meta, ok := ctx.Value(contextKey{}).(CallMeta)
	return meta, ok
}
