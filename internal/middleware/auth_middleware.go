package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// DevUserHeader carries the caller's id when token auth is disabled.
const DevUserHeader = "X-User-Id"

// AuthMiddleware requires a valid RS256 bearer token and puts its subject
// and the raw token on the request context. With a nil key and
// allowDevHeader set, the user id is read from DevUserHeader instead.
func AuthMiddleware(pub *rsa.PublicKey, allowDevHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pub == nil {
				userID := strings.TrimSpace(r.Header.Get(DevUserHeader))
				if !allowDevHeader || userID == "" {
					utils.RespondErrorWithCode(
						w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing user identity", nil,
					)
					return
				}
				ctx := context.WithValue(r.Context(), utils.CtxKeyUserID, userID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			tokenStr, err := extractBearerToken(r)
			if err != nil {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), nil,
				)
				return
			}

			sub, vErr := ValidateToken(tokenStr, pub)
			if vErr != nil {
				if errors.Is(vErr, jwt.ErrTokenExpired) {
					utils.RespondErrorWithCode(
						w, http.StatusUnauthorized, utils.ErrCodeTokenExpired, "Token expired", nil, vErr,
					)
					return
				}
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid token", nil, vErr,
				)
				return
			}

			ctx := context.WithValue(r.Context(), utils.CtxKeyUserID, sub)
			ctx = context.WithValue(ctx, utils.CtxKeyAccessToken, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", errors.New("missing Authorization header")
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	if tok == "" {
		return "", errors.New("empty bearer token")
	}
	return tok, nil
}
