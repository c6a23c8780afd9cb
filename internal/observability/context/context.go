package context

import (
	stdcontext "context"
	"strings"
)

type requestIDKey struct{}
type originKey struct{}

// WithRequestID stores the inbound request identifier.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithOrigin marks which surface (http, cli, bridge) triggered the work.
func WithOrigin(ctx stdcontext.Context, origin string) stdcontext.Context {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, originKey{}, origin)
}

func OriginFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(originKey{}).(string)
	return value
}
