package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend interaction. Callers branch on the
// kind, never on raw status codes.
type Kind int

const (
	// KindUnauthorized means the backend rejected the credential (or its
	// absence). HadToken tells the two cases apart: only the no-token case
	// may be resolved by sending the user to sign in.
	KindUnauthorized Kind = iota + 1

	// KindRateLimited means the backend throttled the request. RetryAfter
	// carries the server's hint in seconds when one was supplied.
	KindRateLimited

	// KindValidation means the backend rejected the request body as
	// malformed; the server's individual messages are concatenated into
	// the error message.
	KindValidation

	// KindRequestFailed is any other server-side rejection.
	KindRequestFailed

	// KindNetwork means no response reached us at all. Timeout marks the
	// subset that exceeded the client's fixed request timeout.
	KindNetwork

	// KindPrecondition is a client-side guard failure: the request was
	// never sent.
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate limited"
	case KindValidation:
		return "validation failed"
	case KindRequestFailed:
		return "request failed"
	case KindNetwork:
		return "network error"
	case KindPrecondition:
		return "precondition failed"
	}
	return "unknown"
}

// Error is the normalized failure every call in this package returns.
type Error struct {
	Kind       Kind
	Status     int
	Message    string
	RetryAfter int
	HadToken   bool
	Timeout    bool
	err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.err != nil {
		return e.err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.err }

// Precondition builds a client-side guard failure for message msg.
func Precondition(msg string) *Error {
	return &Error{Kind: KindPrecondition, Message: msg}
}

// KindOf returns the kind of err when it is (or wraps) a backend error.
func KindOf(err error) (Kind, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a backend error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func netError(err error, timeout bool) *Error {
	msg := "no response received from the backend"
	if timeout {
		msg = "the backend did not respond in time"
	}
	return &Error{Kind: KindNetwork, Message: msg, Timeout: timeout, err: err}
}

func serverError(status int, hadToken bool, body errorBody, retryAfter int) *Error {
	e := &Error{Status: status, HadToken: hadToken, RetryAfter: retryAfter}

	switch {
	case status == 401:
		e.Kind = KindUnauthorized
		e.Message = body.Error
		if e.Message == "" {
			e.Message = "not authorized"
		}

	case status == 429:
		e.Kind = KindRateLimited
		if retryAfter > 0 {
			e.Message = fmt.Sprintf("Too many attempts. Please try again after %d seconds.", retryAfter)
		} else if body.Error != "" {
			e.Message = body.Error
		} else {
			e.Message = "Too many attempts. Please try again later."
		}

	case len(body.Errors) > 0:
		e.Kind = KindValidation
		e.Message = "validation errors: " + body.joinErrors()

	default:
		e.Kind = KindRequestFailed
		e.Message = body.Error
		if e.Message == "" {
			e.Message = fmt.Sprintf("request failed with status %d", status)
		}
	}

	return e
}
