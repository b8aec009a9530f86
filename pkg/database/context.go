package database

import "context"

// Caller is the identity a request acts as
type Caller struct {
	UserID      string
	Email       string
	AccessToken string
}

type callerKey struct{}

// WithCaller attaches the acting identity to ctx
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the acting identity; ok is false for anonymous calls
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.UserID != ""
}
