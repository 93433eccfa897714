package common

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	pkgerrors "github.com/nicobenz/flowpertoire/pkg/errors"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyUserID    ContextKey = "user_id"
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyStartTime ContextKey = "start_time"
)

// HeaderUserID selects the acting user while authentication does not exist
const HeaderUserID = "X-User-ID"

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID valueobjects.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFrom returns the user stored in ctx, or the default user
func UserIDFrom(ctx context.Context) valueobjects.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(valueobjects.UserID); ok {
		return userID
	}
	return valueobjects.DefaultUserID
}

// ResolveUserID reads X-User-ID when allowed and falls back to the
// default user. A malformed header is a validation error.
func ResolveUserID(r *http.Request, allowHeader bool) (valueobjects.UserID, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if !allowHeader || raw == "" {
		return valueobjects.DefaultUserID, nil
	}
	userID, err := valueobjects.ParseUserID(raw)
	if err != nil {
		return 0, pkgerrors.NewValidationError(err.Error()).WithDetail("header", HeaderUserID)
	}
	return userID, nil
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithStartTime adds start time to context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetElapsedTime calculates elapsed time from start time in context
func GetElapsedTime(ctx context.Context) time.Duration {
	if startTime, ok := ctx.Value(ContextKeyStartTime).(time.Time); ok {
		return time.Since(startTime)
	}
	return 0
}

// EnrichContext adds common metadata to context
func EnrichContext(ctx context.Context, userID valueobjects.UserID, requestID string) context.Context {
	ctx = WithUserID(ctx, userID)
	ctx = WithRequestID(ctx, requestID)
	ctx = WithStartTime(ctx, time.Now())
	return ctx
}
