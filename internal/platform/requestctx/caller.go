// Package requestctx carries per-request identity through context.
package requestctx

import "context"

// callerContextKey is the context key for the authenticated caller address.
type callerContextKey struct{}

// WithCaller stores the authenticated caller address in context.
func WithCaller(ctx context.Context, caller string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller address stored in context.
func CallerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(callerContextKey{}).(string)
	return value
}
