package checkout

import (
	"context"
	"net/url"
	"sync"

	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/core/cart"
	"github.com/darsuna/storefront/core/claims"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Phase guards the verifier against running twice for one logical flow
// instance. The guard is on the instance itself, independent of how the
// HTTP layer happens to schedule it.
type Phase int

const (
	NotStarted Phase = iota
	InProgress
	Done
)

// ErrAlreadyStarted is returned when Run is invoked on a verifier that
// has already begun; a new instance is needed for a new flow.
var ErrAlreadyStarted = &backend.Error{Kind: backend.KindPrecondition, Message: "verification already started"}

// Result is what the return page shows. A failed verification carries
// the error and the cancel-page target the browser should navigate to
// after the reading delay.
type Result struct {
	Valid       bool   `json:"valid"`
	Email       string `json:"email,omitempty"`
	AmountTotal int64  `json:"amount_total,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Registered  int    `json:"registered,omitempty"`
	Error       string `json:"error,omitempty"`
	RedirectURL string `json:"-"`
}

// Verifier finalizes a purchase after the payment provider redirects the
// user back. It mutates two backend resources (purchase status, student
// registration) with no server-side orchestration guarantee, so it is
// deliberately at-least-once: registration is a best-effort fan-out and
// nothing rolls back a finalized purchase.
type Verifier struct {
	backend    *backend.Client
	cart       *cart.Store
	cancelPath string
	log        logrus.FieldLogger

	mu    sync.Mutex
	phase Phase
	id    string
}

func NewVerifier(b *backend.Client, store *cart.Store, cancelPath string, log logrus.FieldLogger) *Verifier {
	return &Verifier{
		backend:    b,
		cart:       store,
		cancelPath: cancelPath,
		log:        log,
		id:         uuid.NewString(),
	}
}

func (v *Verifier) Phase() Phase {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.phase
}

// Run executes the return flow once. Business failures (invalid session,
// unpaid, missing identity) come back inside the Result; the error return
// is reserved for guard misuse.
func (v *Verifier) Run(ctx context.Context, sessionID string, clm *claims.Claims) (Result, error) {
	v.mu.Lock()
	if v.phase != NotStarted {
		v.mu.Unlock()
		return Result{}, ErrAlreadyStarted
	}
	v.phase = InProgress
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.phase = Done
		v.mu.Unlock()
	}()

	log := v.log.WithField("flow_id", v.id)

	if sessionID == "" {
		return v.failure("No session ID provided"), nil
	}

	log = log.WithField("session_id", sessionID)

	ver, err := v.backend.VerifySession(ctx, sessionID)
	if err != nil {
		return v.failure(err.Error()), nil
	}

	if !ver.Valid || !ver.Paid {
		msg := ver.Error
		if msg == "" {
			msg = "Payment verification failed"
		}
		return v.failure(msg), nil
	}

	// Finalize the purchase record before registering: a verified payment
	// with a pending purchase is worse than a missed registration, which
	// the fan-out below tolerates anyway.
	if err := v.backend.UpdateSession(ctx, sessionID); err != nil {
		log.WithField("message", err).Error("finalizing purchase failed")
		return v.failure(err.Error()), nil
	}

	// The authenticated identity wins over whatever the verification
	// payload claims; without either source registration cannot proceed.
	email, name := resolveStudent(clm, ver)
	if email == "" || name == "" {
		return v.failure("missing email or full name for student registration"), nil
	}

	items := v.cart.Items(ctx)
	if len(items) == 0 && ver.BatchNumber != 0 {
		// Returned in a fresh tab: the cart is gone, but the verification
		// payload still identifies the batch.
		items = []cart.Item{{BatchNumber: int(ver.BatchNumber)}}
	}

	registered := 0
	for _, it := range items {
		if it.BatchNumber == 0 {
			log.WithField("item", it.ID).Info("skipping item without batch number")
			continue
		}

		res, err := v.backend.RegisterStudent(ctx, backend.Registration{
			BatchNumber: it.BatchNumber,
			FullName:    name,
			Email:       email,
			StartDate:   it.StartDate,
			EndDate:     it.EndDate,
		})
		if err != nil {
			log.WithFields(logrus.Fields{"batch": it.BatchNumber, "message": err}).Warn("student registration failed")
			continue
		}
		if res.Warning != "" {
			log.WithFields(logrus.Fields{"batch": it.BatchNumber, "warning": res.Warning}).Warn("student registration warning")
		}
		registered++
	}

	v.cart.Clear(ctx)
	log.WithField("registered", registered).Info("purchase completed")

	displayEmail := ver.CustomerEmail
	if displayEmail == "" {
		displayEmail = email
	}

	return Result{
		Valid:       true,
		Email:       displayEmail,
		AmountTotal: ver.AmountTotal,
		Currency:    ver.Currency,
		Registered:  registered,
	}, nil
}

func (v *Verifier) failure(msg string) Result {
	return Result{
		Valid:       false,
		Error:       msg,
		RedirectURL: v.cancelPath + "?error=" + url.QueryEscape(msg),
	}
}

func resolveStudent(clm *claims.Claims, ver backend.SessionVerification) (email, name string) {
	if clm != nil {
		email, name = clm.Email, clm.FullName
	}
	if email == "" {
		email = ver.Email
	}
	if email == "" {
		email = ver.CustomerEmail
	}
	if name == "" {
		name = ver.FullName
	}
	return email, name
}
