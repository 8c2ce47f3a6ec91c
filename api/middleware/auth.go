package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/api/weberr"
	"github.com/moviehub/theater-api/core/claims"
)

// Authenticate verifies the bearer token issued by the identity service and
// stores the caller's claims in the context. Only verification happens here:
// tokens are minted elsewhere.
func Authenticate(secret string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return weberr.NotAuthorized(errors.New("missing bearer token"))
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return weberr.NotAuthorized(fmt.Errorf("invalid token: %w", err))
			}

			mc, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return weberr.NotAuthorized(errors.New("token claims are not in the expected format"))
			}

			sub, _ := mc["sub"].(string)
			if sub == "" {
				return weberr.NotAuthorized(errors.New("token is missing the subject claim"))
			}
			role, _ := mc["role"].(string)

			ctx = claims.Set(ctx, claims.Claims{UserID: sub, Role: role})
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Admin rejects callers whose claims don't carry the admin role. It must be
// chained after Authenticate.
func Admin() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !claims.IsAdmin(ctx) {
				return weberr.NewError(
					errors.New("caller is not an admin"),
					"admin privileges required",
					http.StatusForbidden,
				)
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
