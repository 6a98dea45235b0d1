package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

type contextKey string

const traceIDBytes = 16 // OpenTelemetry trace ID size in bytes

const (
	// TraceIDKey holds the OpenTelemetry trace ID.
	TraceIDKey contextKey = "trace_id"

	// RequestIDKey holds the unique request identifier.
	RequestIDKey contextKey = "request_id"

	// UserIDKey holds the authenticated user identifier.
	UserIDKey contextKey = "user_id"

	// OrgIDKey holds the organization scope for this request.
	OrgIDKey contextKey = "org_id"

	// ProviderKey holds the provider name for this request.
	ProviderKey contextKey = "provider"

	// ModelKey holds the model name for this request.
	ModelKey contextKey = "model"
)

// WithTraceID injects trace ID into context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRequestID injects request ID into context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID injects the authenticated user ID into context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithOrgID injects the organization scope into context.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// WithProvider injects provider name into context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ProviderKey, provider)
}

// WithModel injects model name into context.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// GetTraceID extracts trace ID from context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID extracts the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetOrgID extracts the organization scope from context.
func GetOrgID(ctx context.Context) string {
	if orgID, ok := ctx.Value(OrgIDKey).(string); ok {
		return orgID
	}
	return ""
}

// GetProvider extracts provider name from context.
func GetProvider(ctx context.Context) string {
	if provider, ok := ctx.Value(ProviderKey).(string); ok {
		return provider
	}
	return ""
}

// GetModel extracts model name from context.
func GetModel(ctx context.Context) string {
	if model, ok := ctx.Value(ModelKey).(string); ok {
		return model
	}
	return ""
}

// GenerateTraceID generates an OpenTelemetry-compatible trace ID (32 hex chars).
func GenerateTraceID() string {
	bytes := make([]byte, traceIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(bytes)
}

// GenerateRequestID generates a unique request identifier (UUID).
func GenerateRequestID() string {
	return uuid.New().String()
}
