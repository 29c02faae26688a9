// Package middleware holds the HTTP middleware stack: authentication and
// request logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/api"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/identity"
)

// AuthConfig configures the authentication middleware.
type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens. The user id is the token
	// subject.
	JWTSecret string
	// AllowUserHeader accepts a plain X-User-ID header instead of a token.
	// Development only.
	AllowUserHeader bool
}

// Authenticate resolves the current user from the request and stores it in
// the context. Every API route sits behind this middleware; the services
// treat the resolved id as authoritative.
func Authenticate(cfg AuthConfig, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AllowUserHeader {
				if userID := r.Header.Get("X-User-ID"); userID != "" {
					next.ServeHTTP(w, r.WithContext(identity.WithUserID(r.Context(), userID)))
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			userID, err := validateToken(parts[1], cfg.JWTSecret)
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				api.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithUserID(r.Context(), userID)))
		})
	}
}

func validateToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, pkgerrors.NewNotAuthorized("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", pkgerrors.NewNotAuthorized("invalid token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", pkgerrors.NewNotAuthorized("token has no subject")
	}
	return subject, nil
}
