package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// OptionalAuth attaches the caller's Supabase user id to the context when the
// request carries a valid bearer token, but never aborts. Anonymous callers
// only see ownerless assessments and conversations. An empty secret disables
// verification and every caller is anonymous.
func OptionalAuth(secret, audience string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		userID, err := VerifyToken(token, secret, audience)
		if err != nil {
			slog.DebugContext(c.Request.Context(), "ignoring invalid access token", "error", err)
			c.Next()
			return
		}

		ctx := WithUserID(c.Request.Context(), userID)
		ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: &userID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// VerifyToken checks an HS256 Supabase access token and returns its subject.
func VerifyToken(token, secret, audience string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...); err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// GetUserID returns the authenticated caller, or nil for anonymous requests.
func GetUserID(ctx context.Context) *string {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return nil
	}
	return &userID
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
