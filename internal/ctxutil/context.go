// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userIDKey    contextKey = "ctxutil.userID"
	requestIDKey contextKey = "ctxutil.requestID"
	sourceKey    contextKey = "ctxutil.source"
)

// Request sources recorded on the context and in history rows.
const (
	SourceWeb  = "web"
	SourceLINE = "line"
	SourceCLI  = "cli"
)

// WithUserID adds a user ID to the context.
// For LINE events this is the LINE user ID; for web requests the client IP.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the user ID from the context.
// Returns the user ID if found, empty string otherwise.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok && userID != "" {
			return userID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context for tracing.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// WithSource records which front end a question came from.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// GetSource returns the front end recorded by WithSource, or SourceWeb.
func GetSource(ctx context.Context) string {
	if s, ok := LookupSource(ctx); ok {
		return s
	}
	return SourceWeb
}

// LookupSource returns the source only when one was set explicitly.
func LookupSource(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(sourceKey).(string)
	return s, ok && s != ""
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// Use for async operations that must outlive the parent request, such as
// LINE webhook processing that continues after the HTTP response is sent.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if userID := GetUserID(ctx); userID != "" {
		newCtx = WithUserID(newCtx, userID)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}
	if s, ok := LookupSource(ctx); ok {
		newCtx = WithSource(newCtx, s)
	}

	return newCtx
}
