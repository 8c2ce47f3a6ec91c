package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/moviehub/theater-api/api/web"
	"github.com/moviehub/theater-api/api/weberr"
	"github.com/moviehub/theater-api/rate"
)

// RateLimit throttles requests per remote address. It mainly protects the
// webhook endpoint, which accepts unauthenticated traffic.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				return weberr.NewError(
					errors.New("client exceeded the request rate limit"),
					"too many requests",
					http.StatusTooManyRequests,
				)
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
