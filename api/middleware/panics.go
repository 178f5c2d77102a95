package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/darsuna/storefront/api/web"
)

// Panics recovers handler panics and converts them into errors so the
// errors middleware can render a response and the server keeps running.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {

			defer func() {
				if rec := recover(); rec != nil {
					trace := debug.Stack()
					err = fmt.Errorf("PANIC [%v] TRACE[%s]", rec, string(trace))
				}
			}()

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
