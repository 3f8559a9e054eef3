package middleware

import "context"

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxStallID   contextKey = "stall_id"
	ctxSessionID contextKey = "session_id"
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxUserID) }

func RoleFromContext(ctx context.Context) string { return stringValue(ctx, ctxRole) }

// StallIDFromContext returns the caller's stall as of token issue, if any.
func StallIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxStallID) }

func SessionIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxSessionID) }

// WithIdentity seeds ctx the way Auth does. Handlers under test use it to
// skip token minting.
func WithIdentity(ctx context.Context, userID, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxRole, role)
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxSessionID, sessionID)
}
