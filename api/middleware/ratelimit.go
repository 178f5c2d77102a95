package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/rate"
)

// RateLimit throttles a route per client IP. Used on the contact-form and
// client-check routes, which accept anonymous input.
func RateLimit(lm *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			if !lm.Check(clientIP(r)) {
				err := errors.New("rate limit exceeded")
				return weberr.TooManyRequests(err, "Too many attempts. Please try again later.")
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
