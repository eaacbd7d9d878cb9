// Package ctxutil provides shared context key accessors.
//
// Both server and mcp stamp request metadata on the context and the service
// layer reads it back for logging, so the keys live here rather than in
// either package.
package ctxutil

import "context"

type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyTransport contextKey = "transport"
)

// WithRequestID returns a new context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestIDFromContext extracts the request ID, or "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithTransport records which surface ("http" or "mcp") a call arrived on.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, keyTransport, transport)
}

// TransportFromContext returns the surface a call arrived on, or "internal".
func TransportFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyTransport).(string); ok && v != "" {
		return v
	}
	return "internal"
}

// LogAttrs returns the request metadata as slog key/value pairs.
func LogAttrs(ctx context.Context) []any {
	attrs := []any{"transport", TransportFromContext(ctx)}
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	return attrs
}
