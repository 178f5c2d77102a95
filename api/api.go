package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/darsuna/storefront/api/middleware"
	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/core/auth"
	"github.com/darsuna/storefront/core/batch"
	"github.com/darsuna/storefront/core/cart"
	"github.com/darsuna/storefront/core/checkout"
	"github.com/darsuna/storefront/core/contact"
	"github.com/darsuna/storefront/core/order"
	"github.com/darsuna/storefront/rate"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin       string
	Log              logrus.FieldLogger
	Session          *scs.SessionManager
	Backend          *backend.Client
	Cart             *cart.Store
	Providers        map[string]auth.Provider
	LoginRedirectURL string
	SignInPath       string
	CancelPath       string
	Limiter          *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log, cfg.SignInPath))
	a.mw = append(a.mw, middleware.Panics())
	a.mw = append(a.mw, cart.ResetOnNewVisit(cfg.Cart))

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	identify := auth.Identify(cfg.Session)
	limited := middleware.RateLimit(cfg.Limiter)

	a.Handle(http.MethodGet, "/auth/login/{provider}", auth.HandleLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/callback/{provider}", auth.HandleCallback(cfg.Session, cfg.Providers, cfg.LoginRedirectURL))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/clients/check", auth.HandleCheck(cfg.Backend), limited)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.Cart))
	a.Handle(http.MethodDelete, "/cart", cart.HandleClear(cfg.Cart))
	a.Handle(http.MethodPut, "/cart/items", cart.HandleAddItem(cfg.Cart))
	a.Handle(http.MethodDelete, "/cart/items/{id}", cart.HandleRemoveItem(cfg.Cart))

	a.Handle(http.MethodPost, "/checkout", checkout.HandleCheckout(cfg.Backend, cfg.Cart, cfg.Log), authen)
	a.Handle(http.MethodGet, "/checkout/success", checkout.HandleReturn(cfg.Backend, cfg.Cart, cfg.CancelPath, cfg.Log), identify)
	a.Handle(http.MethodGet, "/checkout/cancel", checkout.HandleCancelLanding())

	a.Handle(http.MethodGet, "/batches", batch.HandleList(cfg.Backend))

	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.Backend), authen)
	a.Handle(http.MethodPost, "/orders/cancel", order.HandleCancel(cfg.Backend, cfg.Log), authen)

	a.Handle(http.MethodPost, "/contact", contact.HandleSubmit(cfg.Backend), limited)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
