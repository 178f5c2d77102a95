// Package order exposes the signed-in student's enrollments and the
// cancellation flow. Orders are backend-owned; the only local mutation is
// the optimistic removal after a confirmed cancel, kept as a pure
// transform so the HTTP layer can compose it with a re-fetch.
package order

import (
	"strings"
	"time"

	"github.com/darsuna/storefront/backend"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DateOnly strips any time-of-day component from a timestamp, returning a
// date-only string. Unparseable input normalizes to empty, which blocks
// cancellation.
func DateOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// CancelRequest is the client's cancel payload before normalization.
// BatchNum is a pointer so a missing field is distinguishable from batch
// zero.
type CancelRequest struct {
	BatchNum  *int   `json:"batch_num"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Normalize validates the preconditions and produces the backend call.
// Every failure here happens before any network traffic.
func (cr CancelRequest) Normalize() (backend.CancelOrder, error) {
	if cr.BatchNum == nil {
		return backend.CancelOrder{}, backend.Precondition("order has no batch number")
	}

	start := DateOnly(cr.StartDate)
	if start == "" {
		return backend.CancelOrder{}, backend.Precondition("order has no valid start date")
	}

	end := DateOnly(cr.EndDate)
	if end == "" {
		return backend.CancelOrder{}, backend.Precondition("order has no valid end date")
	}

	return backend.CancelOrder{
		BatchNum:  *cr.BatchNum,
		StartDate: start,
		EndDate:   end,
	}, nil
}

// RemoveLocal returns orders without the cancelled one: the optimistic
// list mutation shown immediately after a confirmed cancel, before the
// reconciling re-fetch.
func RemoveLocal(orders []backend.StudentOrder, cancelled backend.CancelOrder) []backend.StudentOrder {
	kept := make([]backend.StudentOrder, 0, len(orders))
	for _, o := range orders {
		if o.BatchNum != nil && *o.BatchNum == cancelled.BatchNum &&
			DateOnly(o.StartDate) == cancelled.StartDate &&
			DateOnly(o.EndDate) == cancelled.EndDate {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}
