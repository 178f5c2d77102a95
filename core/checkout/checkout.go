// Package checkout sequences the purchase protocol: ensure a backend user
// record exists for the authenticated identity, create a payment session
// for the cart, and hand the provider URL back for a full browser
// navigation. The return half of the protocol lives in verify.go.
package checkout

import (
	"context"

	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/core/cart"
	"github.com/darsuna/storefront/core/claims"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State tracks the orchestrator through its single allowed run. There is
// no retry or resumption: a failed flow is re-triggered from a fresh one.
type State int

const (
	Idle State = iota
	SyncingUser
	CreatingSession
	Redirecting
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SyncingUser:
		return "syncing user"
	case CreatingSession:
		return "creating session"
	case Redirecting:
		return "redirecting"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type Flow struct {
	backend *backend.Client
	log     logrus.FieldLogger
	id      string
	state   State
	reason  error
}

func NewFlow(b *backend.Client, log logrus.FieldLogger) *Flow {
	return &Flow{
		backend: b,
		log:     log,
		id:      uuid.NewString(),
		state:   Idle,
	}
}

func (f *Flow) State() State { return f.state }

// Err returns the failure that moved the flow to Failed, nil otherwise.
func (f *Flow) Err() error { return f.reason }

// Run drives Idle → SyncingUser → CreatingSession → Redirecting and
// returns the payment provider URL. Any failure is terminal for this flow
// and leaves the cart untouched: there are no partial side effects to
// roll back.
func (f *Flow) Run(ctx context.Context, clm claims.Claims, items []cart.Item) (string, error) {
	if f.state != Idle {
		return "", f.fail(backend.Precondition("checkout flow already started"))
	}
	if len(items) == 0 {
		return "", f.fail(backend.Precondition("the cart is empty"))
	}
	if clm.Email == "" {
		return "", f.fail(backend.Precondition("sign in to check out"))
	}

	log := f.log.WithFields(logrus.Fields{"flow_id": f.id, "items": len(items)})

	f.state = SyncingUser
	// Full name and phone only: the backend derives the email from the
	// verified bearer token, never from the request body.
	created, err := f.backend.CreateClient(ctx, backend.ClientNew{
		FullName: clm.FullName,
		Phone:    clm.Phone,
	})
	if err != nil {
		return "", f.fail(err)
	}
	log.WithField("created", created).Info("user record synced")

	f.state = CreatingSession
	url, err := f.backend.CreateSession(ctx, Project(items, clm.Email))
	if err != nil {
		return "", f.fail(err)
	}

	f.state = Redirecting
	log.Info("payment session created")
	return url, nil
}

func (f *Flow) fail(err error) error {
	f.state = Failed
	f.reason = err
	f.log.WithFields(logrus.Fields{"flow_id": f.id, "message": err}).Warn("checkout failed")
	return err
}

// Project shapes cart items for the checkout-session endpoint, attaching
// the authenticated email to every line.
func Project(items []cart.Item, email string) []backend.CheckoutItem {
	out := make([]backend.CheckoutItem, 0, len(items))
	for _, it := range items {
		out = append(out, backend.CheckoutItem{
			Name:        it.Name,
			Email:       email,
			StartDate:   it.StartDate,
			EndDate:     it.EndDate,
			BatchNumber: it.BatchNumber,
		})
	}
	return out
}
