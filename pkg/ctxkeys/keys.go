// Package ctxkeys defines typed context keys to avoid SA1029 lint warnings
// and prevent key collisions across packages.
package ctxkeys

import "context"

// Key is a typed context key to prevent collisions.
type Key string

const (
	KeyRequestID Key = "request_id"
	KeySessionID Key = "session_id"
)

// WithRequestID returns a context carrying the HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, KeyRequestID, id)
}

// GetRequestID returns the request id, or "" outside an HTTP request.
func GetRequestID(ctx context.Context) string {
	return getString(ctx, KeyRequestID)
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, KeySessionID, id)
}

func GetSessionID(ctx context.Context) string {
	return getString(ctx, KeySessionID)
}

func getString(ctx context.Context, key Key) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
