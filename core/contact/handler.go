package contact

import (
	"context"
	"net/http"

	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/validate"
)

// HandleSubmit sanitizes, validates and forwards a contact submission.
// Mounted behind the IP rate limiter.
func HandleSubmit(b *backend.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var form Form
		if err := web.Decode(w, r, &form); err != nil {
			return weberr.BadRequest(err)
		}

		form = form.Sanitized()
		if err := validate.Check(form); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		msg, err := b.InsertForm(ctx, backend.ContactForm{
			Email:    form.Email,
			Category: form.Category,
			Message:  form.Message,
		})
		if err != nil {
			return err
		}

		out := struct {
			Message string `json:"message"`
		}{Message: msg}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
