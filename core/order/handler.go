package order

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/core/claims"
	"github.com/sirupsen/logrus"
)

// HandleList returns the signed-in student's orders. A signed-in identity
// without a resolvable email is a hard error, not an empty list.
func HandleList(b *backend.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}
		if clm.Email == "" {
			return backend.Precondition("email address not found")
		}

		orders, err := b.Orders(ctx, clm.Email)
		if err != nil {
			return err
		}
		if orders == nil {
			orders = []backend.StudentOrder{}
		}

		out := struct {
			Data []backend.StudentOrder `json:"data"`
		}{Data: orders}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

// one cancellation in flight per user; a plain mutual-exclusion policy,
// not per-order locking
type inflight struct {
	mu    sync.Mutex
	users map[string]bool
}

func (f *inflight) begin(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.users[email] {
		return false
	}
	f.users[email] = true
	return true
}

func (f *inflight) end(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, email)
}

// HandleCancel cancels one enrollment. Preconditions (batch number, both
// dates after date-only normalization) are checked before the backend is
// contacted; the response includes the optimistically reduced order list
// so the UI can update without waiting for a re-fetch.
func HandleCancel(b *backend.Client, log logrus.FieldLogger) web.Handler {
	guard := &inflight{users: make(map[string]bool)}

	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}
		if clm.Email == "" {
			return backend.Precondition("email address not found")
		}

		var req struct {
			CancelRequest
			Orders []backend.StudentOrder `json:"orders"`
		}
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(err)
		}

		co, err := req.Normalize()
		if err != nil {
			return err
		}

		if !guard.begin(clm.Email) {
			return weberr.Conflict(errors.New("concurrent cancel"), "a cancellation is already in progress")
		}
		defer guard.end(clm.Email)

		msg, err := b.Cancel(ctx, co)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{"batch": co.BatchNum, "email": clm.Email}).Info("order cancelled")

		out := struct {
			Message string                 `json:"message"`
			Data    []backend.StudentOrder `json:"data,omitempty"`
		}{Message: msg}
		if req.Orders != nil {
			out.Data = RemoveLocal(req.Orders, co)
		}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
