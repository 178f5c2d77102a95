package cart

import (
	"context"
	"net/http"

	"github.com/darsuna/storefront/api/web"
	"github.com/darsuna/storefront/api/weberr"
	"github.com/darsuna/storefront/validate"
)

type view struct {
	Items      []Item  `json:"items"`
	TotalPrice float64 `json:"totalPrice"`
	Count      int     `json:"count"`
}

func viewOf(ctx context.Context, store *Store) view {
	items := store.Items(ctx)
	if items == nil {
		items = []Item{}
	}

	var total float64
	for _, it := range items {
		total += it.Price
	}

	return view{Items: items, TotalPrice: total, Count: len(items)}
}

func HandleShow(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, viewOf(ctx, store), http.StatusOK)
	}
}

func HandleAddItem(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var it Item
		if err := web.Decode(w, r, &it); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(it); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		store.Add(ctx, it)
		return web.Respond(ctx, w, viewOf(ctx, store), http.StatusOK)
	}
}

func HandleRemoveItem(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		store.Remove(ctx, web.Param(r, "id"))
		return web.Respond(ctx, w, viewOf(ctx, store), http.StatusOK)
	}
}

func HandleClear(store *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		store.Clear(ctx)
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
