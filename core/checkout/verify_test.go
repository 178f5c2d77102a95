package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/darsuna/storefront/core/cart"
	"github.com/darsuna/storefront/core/claims"
	"github.com/google/go-cmp/cmp"
)

func newCart(t *testing.T) (*cart.Store, context.Context) {
	t.Helper()

	s := scs.New()
	ctx, err := s.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	return cart.NewStore(s), ctx
}

func TestVerifierSuccess(t *testing.T) {
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":true,"paid":true,"session_id":"cs_test_1","customer_email":"ada@example.com","amount_total":19900,"currency":"usd"}`

	store, ctx := newCart(t)
	store.Add(ctx, cart.Item{ID: "scholar-batch-12", Name: "Scholar", StartDate: "2026-09-01", EndDate: "2026-12-01", BatchNumber: 12})
	store.Add(ctx, cart.Item{ID: "seeker-batch-4", Name: "Seeker", BatchNumber: 4})

	v := NewVerifier(bc, store, "/checkout/cancel", testLog())
	clm := claims.Claims{Email: "ada@example.com", FullName: "Ada Lovelace"}

	res, err := v.Run(ctx, "cs_test_1", &clm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Result{
		Valid:       true,
		Email:       "ada@example.com",
		AmountTotal: 19900,
		Currency:    "usd",
		Registered:  2,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result:\n%s", diff)
	}

	if fb.callCount("/payments/update-session") != 1 {
		t.Error("the purchase record should have been finalized exactly once")
	}
	if len(fb.registrations) != 2 {
		t.Fatalf("registrations: got %d, want 2", len(fb.registrations))
	}
	got := fb.registrations[0]
	if got.BatchNumber != 12 || got.Email != "ada@example.com" || got.FullName != "Ada Lovelace" {
		t.Errorf("registration: %+v", got)
	}

	if store.Count(ctx) != 0 {
		t.Error("the cart should have been cleared after a completed purchase")
	}
	if v.Phase() != Done {
		t.Errorf("phase: got %v, want %v", v.Phase(), Done)
	}
}

func TestVerifierFailure(t *testing.T) {
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":false,"paid":false,"error":"card_declined"}`

	store, ctx := newCart(t)
	store.Add(ctx, cart.Item{ID: "scholar-batch-12", Name: "Scholar", BatchNumber: 12})

	v := NewVerifier(bc, store, "/checkout/cancel", testLog())
	res, err := v.Run(ctx, "cs_test_1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Valid {
		t.Fatal("a declined payment must not verify")
	}
	if res.Error != "card_declined" {
		t.Errorf("error: got %q", res.Error)
	}
	if res.RedirectURL != "/checkout/cancel?error=card_declined" {
		t.Errorf("redirect url: got %q", res.RedirectURL)
	}

	if fb.callCount("/payments/update-session") != 0 {
		t.Error("a failed verification must not finalize the purchase")
	}
	if len(fb.registrations) != 0 {
		t.Error("a failed verification must not register students")
	}
	if store.Count(ctx) != 1 {
		t.Error("a failed verification must leave the cart alone")
	}
}

func TestVerifierMissingSessionID(t *testing.T) {
	fb, bc := newFakeBackend(t)
	store, ctx := newCart(t)

	v := NewVerifier(bc, store, "/checkout/cancel", testLog())
	res, err := v.Run(ctx, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Valid {
		t.Fatal("a missing session id must not verify")
	}
	if res.Error != "No session ID provided" {
		t.Errorf("error: got %q", res.Error)
	}
	if len(fb.calls) != 0 {
		t.Errorf("no backend call should have been made, got %v", fb.calls)
	}
}

func TestVerifierRunsOnce(t *testing.T) {
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":true,"paid":true,"customer_email":"ada@example.com"}`

	store, ctx := newCart(t)
	v := NewVerifier(bc, store, "/checkout/cancel", testLog())
	clm := claims.Claims{Email: "ada@example.com", FullName: "Ada Lovelace"}

	if _, err := v.Run(ctx, "cs_test_1", &clm); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := v.Run(ctx, "cs_test_1", &clm); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second run: got %v, want ErrAlreadyStarted", err)
	}
}

func TestVerifierFreshTab(t *testing.T) {
	// Returning in a fresh tab: the cart is empty, but the verification
	// payload still names the batch.
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":true,"paid":true,"batch_number":"12","email":"ada@example.com","full_name":"Ada Lovelace"}`

	store, ctx := newCart(t)
	v := NewVerifier(bc, store, "/checkout/cancel", testLog())

	res, err := v.Run(ctx, "cs_test_1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid || res.Registered != 1 {
		t.Fatalf("result: %+v", res)
	}
	if len(fb.registrations) != 1 || fb.registrations[0].BatchNumber != 12 {
		t.Fatalf("registrations: %+v", fb.registrations)
	}
}

func TestVerifierIdentityResolution(t *testing.T) {
	// The signed-in identity wins over the verification payload, but the
	// displayed email prefers what the payment provider recorded.
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":true,"paid":true,"customer_email":"receipts@example.com","email":"stale@example.com","full_name":"Stale Name"}`

	store, ctx := newCart(t)
	store.Add(ctx, cart.Item{ID: "scholar-batch-12", Name: "Scholar", BatchNumber: 12})

	v := NewVerifier(bc, store, "/checkout/cancel", testLog())
	clm := claims.Claims{Email: "ada@example.com", FullName: "Ada Lovelace"}

	res, err := v.Run(ctx, "cs_test_1", &clm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Email != "receipts@example.com" {
		t.Errorf("display email: got %q", res.Email)
	}
	if fb.registrations[0].Email != "ada@example.com" || fb.registrations[0].FullName != "Ada Lovelace" {
		t.Errorf("registration identity: %+v", fb.registrations[0])
	}
}

func TestVerifierMissingIdentity(t *testing.T) {
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":true,"paid":true}`

	store, ctx := newCart(t)
	v := NewVerifier(bc, store, "/checkout/cancel", testLog())

	res, err := v.Run(ctx, "cs_test_1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid {
		t.Fatal("verification without any identity must fail")
	}
	if res.Error != "missing email or full name for student registration" {
		t.Errorf("error: got %q", res.Error)
	}
	if len(fb.registrations) != 0 {
		t.Error("no registration should have been attempted")
	}
}

func TestVerifierSkipsBatchlessItems(t *testing.T) {
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":true,"paid":true,"customer_email":"ada@example.com"}`

	store, ctx := newCart(t)
	store.Add(ctx, cart.Item{ID: "merch", Name: "T-Shirt"})
	store.Add(ctx, cart.Item{ID: "scholar-batch-12", Name: "Scholar", BatchNumber: 12})

	v := NewVerifier(bc, store, "/checkout/cancel", testLog())
	clm := claims.Claims{Email: "ada@example.com", FullName: "Ada Lovelace"}

	res, err := v.Run(ctx, "cs_test_1", &clm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Registered != 1 {
		t.Errorf("registered: got %d, want 1", res.Registered)
	}
}

func TestVerifierRegistrationBestEffort(t *testing.T) {
	// One failed registration must not abort the rest of the fan-out,
	// and the purchase still completes.
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":true,"paid":true,"customer_email":"ada@example.com"}`
	fb.registerFailures = 1

	store, ctx := newCart(t)
	store.Add(ctx, cart.Item{ID: "scholar-batch-12", Name: "Scholar", BatchNumber: 12})
	store.Add(ctx, cart.Item{ID: "seeker-batch-4", Name: "Seeker", BatchNumber: 4})

	v := NewVerifier(bc, store, "/checkout/cancel", testLog())
	clm := claims.Claims{Email: "ada@example.com", FullName: "Ada Lovelace"}

	res, err := v.Run(ctx, "cs_test_1", &clm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Valid {
		t.Fatal("a registration failure must not invalidate the purchase")
	}
	if res.Registered != 1 {
		t.Errorf("registered: got %d, want 1", res.Registered)
	}
	if got := fb.callCount("/student/register"); got != 2 {
		t.Errorf("registration attempts: got %d, want 2", got)
	}
	if len(fb.registrations) != 1 || fb.registrations[0].BatchNumber != 4 {
		t.Errorf("completed registrations: %+v", fb.registrations)
	}
	if store.Count(ctx) != 0 {
		t.Error("the cart should still be cleared")
	}
}

func TestHandleReturnSetsRefresh(t *testing.T) {
	fb, bc := newFakeBackend(t)
	fb.verifyResponse = `{"valid":false,"paid":false,"error":"card_declined"}`

	s := scs.New()
	ctx, err := s.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	store := cart.NewStore(s)

	h := HandleReturn(bc, store, "/checkout/cancel", testLog())
	r := httptest.NewRequest(http.MethodGet, "/checkout/success?session_id=cs_test_1", nil)
	w := httptest.NewRecorder()

	if err := h(ctx, w, r); err != nil {
		t.Fatalf("handler: %v", err)
	}

	want := "3; url=/checkout/cancel?error=card_declined"
	if got := w.Header().Get("Refresh"); got != want {
		t.Fatalf("Refresh header: got %q, want %q", got, want)
	}
}
