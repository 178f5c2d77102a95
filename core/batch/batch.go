// Package batch reads scheduled course offerings through the backend.
// Batches are backend-owned and never mutated here.
package batch

import (
	"sort"
	"time"

	"github.com/darsuna/storefront/backend"
	"github.com/darsuna/storefront/core/order"
)

const (
	ClassBeginner     = "beginner"
	ClassIntermediate = "intermediate"
	ClassAdvanced     = "advanced"
)

// Remaining is the free capacity of a batch, never negative.
func Remaining(b backend.Batch) int {
	if r := b.MaxStudents - b.Students; r > 0 {
		return r
	}
	return 0
}

// StartTime parses the batch's start date; the zero time means the
// backend sent something unparseable and the batch sorts last.
func StartTime(b backend.Batch) time.Time {
	d := order.DateOnly(b.StartDate)
	if d == "" {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", d)
	return t
}

// SortByStart orders batches by start date in place. Batches of the same
// class type then read as a timeline, which is what the next-available
// navigation relies on.
func SortByStart(bs []backend.Batch) {
	sort.SliceStable(bs, func(i, j int) bool {
		ti, tj := StartTime(bs[i]), StartTime(bs[j])
		if ti.IsZero() {
			return false
		}
		if tj.IsZero() {
			return true
		}
		return ti.Before(tj)
	})
}

// NextAvailable returns the earliest joinable batch of classType starting
// on or after the given time.
func NextAvailable(bs []backend.Batch, classType string, after time.Time) (backend.Batch, bool) {
	var best backend.Batch
	found := false

	for _, b := range bs {
		if b.ClassType != classType || !b.Active || b.Full || Remaining(b) == 0 {
			continue
		}
		st := StartTime(b)
		if st.IsZero() || st.Before(after) {
			continue
		}
		if !found || st.Before(StartTime(best)) {
			best = b
			found = true
		}
	}

	return best, found
}
