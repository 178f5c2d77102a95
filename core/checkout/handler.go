package checkout

import (
	"context"
	"fmt"
	"net/http"

	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/core/cart"
	"github.com/darsuna/storefront/core/claims"
	"github.com/sirupsen/logrus"
)

// RedirectDelay is how many seconds the failure payload stays on screen
// before the browser follows the Refresh header to the cancel page.
const RedirectDelay = 3

// HandleCheckout runs the orchestrator for the signed-in user's cart and
// responds with the payment provider URL the browser must navigate to.
// Mounted behind the authenticate middleware.
func HandleCheckout(b *backend.Client, store *cart.Store, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		flow := NewFlow(b, log)
		url, err := flow.Run(ctx, clm, store.Items(ctx))
		if err != nil {
			return err
		}

		out := struct {
			URL string `json:"url"`
		}{URL: url}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

// HandleReturn is the post-payment landing endpoint. On failure it sets a
// delayed Refresh to the cancel page so the user can read the error
// before being moved along. Mounted behind the identify middleware, not
// authenticate: the user may return signed out in a fresh tab.
func HandleReturn(b *backend.Client, store *cart.Store, cancelPath string, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var clm *claims.Claims
		if c, err := claims.Get(ctx); err == nil {
			clm = &c
		}

		v := NewVerifier(b, store, cancelPath, log)
		res, err := v.Run(ctx, web.Query(r, "session_id"), clm)
		if err != nil {
			return err
		}

		if !res.Valid {
			w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", RedirectDelay, res.RedirectURL))
		}
		return web.Respond(ctx, w, res, http.StatusOK)
	}
}

// HandleCancelLanding serves the cancellation/failure page payload. The
// error arrives as a query parameter set by the return flow (or by the
// payment provider's cancel redirect).
func HandleCancelLanding() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		out := struct {
			Message string `json:"message"`
			Error   string `json:"error,omitempty"`
		}{
			Message: "Your payment was cancelled. No charges were made to your account.",
			Error:   web.Query(r, "error"),
		}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
