// Package contact forwards contact-form submissions. Inputs are stripped
// of HTML before leaving this process; the backend must still escape on
// render, this just keeps trivial injection payloads out of storage.
package contact

import (
	"regexp"
	"strings"
)

const (
	MaxEmail    = 255
	MaxCategory = 100
	MaxMessage  = 10000
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

var charStripper = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "")

// Sanitize trims, strips HTML tags and angle/quote characters, and caps
// the result at max runes.
func Sanitize(s string, max int) string {
	s = strings.TrimSpace(s)
	s = tagPattern.ReplaceAllString(s, "")
	s = charStripper.Replace(s)

	if runes := []rune(s); len(runes) > max {
		return string(runes[:max])
	}
	return s
}

// Form is a contact submission after sanitization.
type Form struct {
	Email    string `json:"email" validate:"required,email"`
	Category string `json:"category" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

func (f Form) Sanitized() Form {
	return Form{
		Email:    Sanitize(f.Email, MaxEmail),
		Category: Sanitize(f.Category, MaxCategory),
		Message:  Sanitize(f.Message, MaxMessage),
	}
}
