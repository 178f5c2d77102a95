package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CheckoutItem is the per-request projection of a cart line item sent to
// the checkout-session endpoint.
type CheckoutItem struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	BatchNumber int    `json:"batch_number,omitempty"`
}

// ClientNew is the body for the create-or-return-existing user endpoint.
// Email is deliberately absent: the backend derives identity from the
// verified bearer token only.
type ClientNew struct {
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// CreateClient ensures a backend user record exists for the authenticated
// identity. created reports whether the record was newly created (201)
// as opposed to pre-existing (200); both are success.
func (c *Client) CreateClient(ctx context.Context, nu ClientNew) (created bool, err error) {
	var out struct {
		Message string `json:"message"`
	}
	status, err := c.do(ctx, http.MethodPost, "/client/create", nil, nu, &out)
	if err != nil {
		return false, err
	}
	return status == http.StatusCreated, nil
}

// CheckClient returns the backend's generic sign-in hint for an email.
// The message deliberately does not reveal whether the account exists.
func (c *Client) CheckClient(ctx context.Context, email string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	q := url.Values{"email": []string{email}}
	if _, err := c.do(ctx, http.MethodGet, "/client/check", q, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// CreateSession asks the backend for a payment-provider session covering
// items and returns the opaque URL of the provider's hosted page. The
// backend is the sole pricing authority; no local validation happens here.
func (c *Client) CreateSession(ctx context.Context, items []CheckoutItem) (string, error) {
	in := struct {
		Items []CheckoutItem `json:"items"`
	}{Items: items}

	var out struct {
		URL string `json:"url"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/payments/create-session", nil, in, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &Error{Kind: KindRequestFailed, Message: "no checkout URL returned by the backend"}
	}
	return out.URL, nil
}

// FlexNumber tolerates a numeric field serialized either as a JSON number
// or as a numeric string, as the verification endpoint does for batch
// numbers. Zero means absent.
type FlexNumber int

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		*n = 0
		return nil
	}
	*n = FlexNumber(v)
	return nil
}

// SessionVerification is the verify-session payload. A session counts as
// successful only when both Valid and Paid are true.
type SessionVerification struct {
	Valid         bool       `json:"valid"`
	Paid          bool       `json:"paid"`
	SessionID     string     `json:"session_id,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	AmountTotal   int64      `json:"amount_total,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Error         string     `json:"error,omitempty"`
	BatchNumber   FlexNumber `json:"batch_number,omitempty"`
	FullName      string     `json:"full_name,omitempty"`
	Email         string     `json:"email,omitempty"`
}

// VerifySession checks a payment session after the provider redirected
// the user back.
func (c *Client) VerifySession(ctx context.Context, sessionID string) (SessionVerification, error) {
	var out SessionVerification
	q := url.Values{"session_id": []string{sessionID}}
	if _, err := c.do(ctx, http.MethodGet, "/payments/verify-session", q, nil, &out); err != nil {
		return SessionVerification{}, err
	}
	return out, nil
}

// UpdateSession transitions the purchase record bound to sessionID from
// pending to finalized.
func (c *Client) UpdateSession(ctx context.Context, sessionID string) error {
	in := struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID}

	var out struct {
		Message string `json:"message"`
	}
	_, err := c.do(ctx, http.MethodPost, "/payments/update-session", nil, in, &out)
	return err
}

type Registration struct {
	BatchNumber int    `json:"batch_number"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

type RegistrationResult struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// RegisterStudent enrolls the student into a batch. The backend adjusts
// the batch's student count and full/active flags as a side effect.
func (c *Client) RegisterStudent(ctx context.Context, reg Registration) (RegistrationResult, error) {
	var out RegistrationResult
	if _, err := c.do(ctx, http.MethodPost, "/student/register", nil, reg, &out); err != nil {
		return RegistrationResult{}, err
	}
	return out, nil
}

// StudentOrder is a backend-owned enrollment record. BatchNum is a
// pointer because older orders may lack it; cancellation requires it.
type StudentOrder struct {
	ClassType string `json:"class_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	CreatedAt string `json:"created_at"`
	BatchNum  *int   `json:"batch_num,omitempty"`
}

// Orders lists the student's enrollments. The backend prefers the
// token-derived identity; email is a fallback query parameter.
func (c *Client) Orders(ctx context.Context, email string) ([]StudentOrder, error) {
	var out struct {
		Data []StudentOrder `json:"data"`
	}
	var q url.Values
	if email != "" {
		q = url.Values{"email": []string{email}}
	}
	if _, err := c.do(ctx, http.MethodGet, "/student/orders", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CancelOrder identifies an enrollment to cancel. Dates are date-only
// strings; identity is derived server-side from the bearer token.
type CancelOrder struct {
	BatchNum  int    `json:"batch_num"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Cancel marks an enrollment as pending-cancel and frees batch capacity.
func (c *Client) Cancel(ctx context.Context, co CancelOrder) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/student/cancel", nil, co, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Batch is a scheduled course offering; read-only for this system.
type Batch struct {
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Active      bool    `json:"active"`
	Students    int     `json:"students"`
	Full        bool    `json:"full"`
	Length      int     `json:"length"`
	BatchNum    int     `json:"batch_num"`
	MaxStudents int     `json:"max_students"`
	Description *string `json:"description"`
	ClassType   string  `json:"class_type"`
	Time        string  `json:"time"`
}

func (c *Client) Batches(ctx context.Context) ([]Batch, error) {
	var out []Batch
	if _, err := c.do(ctx, http.MethodGet, "/batch/get", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type ContactForm struct {
	Email    string `json:"email"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// InsertForm submits a contact-form entry. Sanitization happens in
// core/contact before this call.
func (c *Client) InsertForm(ctx context.Context, form ContactForm) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/form/insert", nil, form, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
