package batch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/backend"
)

type view struct {
	backend.Batch
	Remaining int `json:"remaining"`
}

// HandleList returns active batches sorted by start date, with computed
// remaining capacity. With ?next=<class_type> it instead returns the
// earliest joinable batch of that class type starting today or later.
func HandleList(b *backend.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		batches, err := b.Batches(ctx)
		if err != nil {
			return err
		}

		if ct := web.Query(r, "next"); ct != "" {
			bt, ok := NextAvailable(batches, ct, time.Now().Truncate(24*time.Hour))
			if !ok {
				return weberr.NotFound(fmt.Errorf("no joinable %q batch", ct))
			}
			return web.Respond(ctx, w, view{Batch: bt, Remaining: Remaining(bt)}, http.StatusOK)
		}

		active := make([]backend.Batch, 0, len(batches))
		for _, bt := range batches {
			if bt.Active {
				active = append(active, bt)
			}
		}
		SortByStart(active)

		out := make([]view, 0, len(active))
		for _, bt := range active {
			out = append(out, view{Batch: bt, Remaining: Remaining(bt)})
		}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
