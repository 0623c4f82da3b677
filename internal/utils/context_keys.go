package utils

import "context"

// ctxKey is unexported to prevent collisions.
type ctxKey string

// CtxKeyUserID stores the authenticated user's id.
const CtxKeyUserID ctxKey = "userID"

// CtxKeyAccessToken stores the caller's raw bearer token, forwarded to the
// profile backend.
const CtxKeyAccessToken ctxKey = "accessToken"

func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyUserID).(string)
	return v
}

func AccessTokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyAccessToken).(string)
	return v
}
