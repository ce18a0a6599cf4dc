// Package validation holds the field checks shared by the marketplace and
// book-swap services. Every check returns a typed domain error so the first
// failure can be handed straight back to the caller.
package validation

import (
	"iter"
	"regexp"
	"strings"

	"recordstore/pkg/domain"
)

// Messages reported by the checks in this package.
const (
	MsgFieldsRequired = "All fields are required"
	MsgInvalidEmail   = "Ensure the email address is of the correct format"
	MsgInvalidPhone   = "Ensure the phone number is of the correct format"
	MsgEmailExists    = "Email already exists"
)

// Validator checks string formats. Implementations must be safe for
// concurrent use.
type Validator interface {
	Email(s string) bool
	Phone(s string) bool
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// Patterns is the default Validator: a local@domain.tld email shape and a
// phone number of exactly ten digits.
type Patterns struct{}

// Email reports whether s looks like local@domain.tld.
func (Patterns) Email(s string) bool { return emailPattern.MatchString(s) }

// Phone reports whether s is exactly ten ASCII digits.
func (Patterns) Phone(s string) bool { return phonePattern.MatchString(s) }

// Default returns the regexp-backed validator.
func Default() Validator { return Patterns{} }

// RequireNonEmpty fails when any value is empty or whitespace only.
func RequireNonEmpty(values ...string) error {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return domain.InvalidInput(MsgFieldsRequired)
		}
	}
	return nil
}

// RequireNonZero fails when any numeric value is zero.
func RequireNonZero(values ...uint64) error {
	for _, v := range values {
		if v == 0 {
			return domain.InvalidInput(MsgFieldsRequired)
		}
	}
	return nil
}

// CheckEmail rejects malformed email addresses.
func CheckEmail(v Validator, email string) error {
	if !v.Email(email) {
		return domain.InvalidInput(MsgInvalidEmail)
	}
	return nil
}

// CheckPhone rejects phone numbers that are not exactly ten digits.
func CheckPhone(v Validator, phone string) error {
	if !v.Phone(phone) {
		return domain.InvalidInput(MsgInvalidPhone)
	}
	return nil
}

// RequireExists reports NotFound with msg when ok is false.
func RequireExists(ok bool, msg string) error {
	if !ok {
		return domain.NotFound(msg)
	}
	return nil
}

// RequireUniqueEmail scans records and fails with AlreadyExists if one other
// than exclude already uses email. Pass exclude 0 on create. Comparison is
// exact, matching what was stored.
func RequireUniqueEmail[T any](records iter.Seq2[uint64, T], emailOf func(T) string, email string, exclude uint64) error {
	for id, rec := range records {
		if id != exclude && emailOf(rec) == email {
			return domain.AlreadyExists(MsgEmailExists)
		}
	}
	return nil
}

// RequireResults reports NotFound with msg when a scan produced nothing.
func RequireResults[T any](items []T, msg string) ([]T, error) {
	if len(items) == 0 {
		return nil, domain.NotFound(msg)
	}
	return items, nil
}
