// Package cart owns the visitor's cart: the single source of truth for
// what the user intends to buy until checkout completes. It lives in the
// scs session (the durable client-local storage) and is wiped at the
// start of every new visit.
package cart

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/darsuna/storefront/api/web"
)

const (
	cartKey = "cart"

	// VisitCookie marks a browsing session as initialized. It carries no
	// Max-Age so the browser drops it when the visit ends; its absence on
	// the next request is what triggers the cart reset.
	VisitCookie = "cart_session_initialized"
)

// Item is one selected purchase candidate. ID is client-generated from
// the plan name plus batch number, which disambiguates repeated purchases
// of the same tier with different schedules; two distinct plans producing
// the same composite string would collide, and the store does not guard
// against that beyond id uniqueness.
type Item struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Price       float64  `json:"price" validate:"gte=0"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	BatchNumber int      `json:"batch_number,omitempty"`
}

type Store struct {
	session *scs.SessionManager
}

func NewStore(session *scs.SessionManager) *Store {
	return &Store{session: session}
}

// Items returns the cart in insertion order. Corrupt persisted state is
// wiped and treated as an empty cart rather than failing.
func (s *Store) Items(ctx context.Context) []Item {
	raw := s.session.GetString(ctx, cartKey)
	if raw == "" {
		return nil
	}

	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.session.Remove(ctx, cartKey)
		return nil
	}
	return items
}

// Add appends the item unless one with the same id is already present, in
// which case the call is a silent no-op: the existing entry is not
// updated either.
func (s *Store) Add(ctx context.Context, it Item) {
	items := s.Items(ctx)
	for _, existing := range items {
		if existing.ID == it.ID {
			return
		}
	}
	s.save(ctx, append(items, it))
}

// Remove deletes the matching entry; absent ids are a no-op.
func (s *Store) Remove(ctx context.Context, id string) {
	items := s.Items(ctx)
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	s.save(ctx, kept)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(ctx context.Context) {
	s.save(ctx, nil)
}

func (s *Store) TotalPrice(ctx context.Context) float64 {
	var total float64
	for _, it := range s.Items(ctx) {
		total += it.Price
	}
	return total
}

func (s *Store) Count(ctx context.Context) int {
	return len(s.Items(ctx))
}

func (s *Store) save(ctx context.Context, items []Item) {
	if len(items) == 0 {
		s.session.Put(ctx, cartKey, "[]")
		return
	}

	// Item contains nothing json.Marshal can reject.
	b, _ := json.Marshal(items)
	s.session.Put(ctx, cartKey, string(b))
}

// ResetOnNewVisit enforces the session-reset policy: a cart survives page
// reloads within a visit but every fresh visit starts empty, even when a
// prior visit left persisted items behind.
func ResetOnNewVisit(store *Store) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := r.Cookie(VisitCookie); err != nil {
				store.session.Remove(ctx, cartKey)
				http.SetCookie(w, &http.Cookie{
					Name:     VisitCookie,
					Value:    "1",
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
