package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/backend"
	"github.com/sirupsen/logrus"
)

// Errors renders handler errors. Backend errors are mapped through the
// client taxonomy; the one special case is an unauthenticated 401, which
// redirects to the sign-in entry point instead of rendering an error,
// preserving the request's path and query as the post-login return target.
// A 401 on a request that DID carry a token renders normally: redirecting
// there would loop when a valid-looking token keeps being rejected.
func Errors(log logrus.FieldLogger, signInPath string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			fields := map[string]interface{}{
				"req_id":  ContextRequestID(ctx),
				"message": err,
			}
			if f, ok := weberr.Fields(err); ok {
				for k, v := range f {
					fields[k] = v
				}
			}

			log.WithFields(logrus.Fields(fields)).Error("ERROR")

			if body, code, ok := weberr.Response(err); ok {
				return web.Respond(ctx, w, body, code)
			}

			if kind, ok := backend.KindOf(err); ok {
				return respondBackend(ctx, w, r, err, kind, signInPath)
			}

			er := weberr.ErrorResponse{
				Error: http.StatusText(http.StatusInternalServerError),
			}
			return web.Respond(ctx, w, er, http.StatusInternalServerError)
		}
		return h
	}
	return m
}

func respondBackend(ctx context.Context, w http.ResponseWriter, r *http.Request, err error, kind backend.Kind, signInPath string) error {
	var be *backend.Error
	if !errors.As(err, &be) {
		return web.Respond(ctx, w, weberr.ErrorResponse{Error: err.Error()}, http.StatusBadGateway)
	}

	body := weberr.ErrorResponse{Error: be.Message}

	switch kind {
	case backend.KindUnauthorized:
		if !be.HadToken {
			// The remedy is simply signing in; r.URL is always a
			// same-origin relative target.
			returnTo := r.URL.Path
			if r.URL.RawQuery != "" {
				returnTo += "?" + r.URL.RawQuery
			}
			target := signInPath + "?redirect_url=" + url.QueryEscape(returnTo)
			return web.Redirect(w, r, target, http.StatusSeeOther)
		}
		return web.Respond(ctx, w, body, http.StatusUnauthorized)

	case backend.KindRateLimited:
		return web.Respond(ctx, w, body, http.StatusTooManyRequests)

	case backend.KindValidation:
		return web.Respond(ctx, w, body, http.StatusBadRequest)

	case backend.KindPrecondition:
		return web.Respond(ctx, w, body, http.StatusUnprocessableEntity)

	case backend.KindNetwork:
		return web.Respond(ctx, w, body, http.StatusBadGateway)

	default:
		status := be.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return web.Respond(ctx, w, body, status)
	}
}
