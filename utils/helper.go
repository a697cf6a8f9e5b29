package utils

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ttacon/libphonenumber"
)

var CountryCode = "IN"

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeDigits strips everything but digits. Phone numbers are stored in
// this form, and the phone-derived identity backfill depends on it.
func NormalizeDigits(value string) string {
	return nonDigits.ReplaceAllString(value, "")
}

// EmailLocalPart returns everything before the first "@", or empty when the
// string is not email-shaped.
func EmailLocalPart(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found {
		return ""
	}
	return local
}

// PhoneDigitsFromEmail derives the login phone number from a provider email
// of the form "<phone>@<domain>". Empty when the local part has no digits.
func PhoneDigitsFromEmail(email string) string {
	return NormalizeDigits(EmailLocalPart(email))
}

// MonthYearLabel renders the human-readable billing period label, e.g. "March 2026".
func MonthYearLabel(t time.Time) string {
	return t.Format("January 2006")
}

// RefTerminalID resolves a document reference to its terminal id. References
// arrive either as a bare id or as a slash path ("properties/P1").
func RefTerminalID(ref string) string {
	segments := strings.Split(ref, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

var fileNameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFileName mirrors the client-side rule so re-uploaded documents
// keep colliding on the same key.
func SanitizeFileName(name string) string {
	safe := fileNameUnsafe.ReplaceAllString(name, "_")
	if len(safe) > 120 {
		safe = safe[:120]
	}
	return safe
}

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

// ValidatePhoneStrict runs the libphonenumber check against CountryCode when
// STRICT_PHONE_VALIDATION is enabled. Off by default: legacy records carry
// free-form numbers, and digit normalization stays the storage rule either way.
func ValidatePhoneStrict(phoneNumber string) error {
	if os.Getenv("STRICT_PHONE_VALIDATION") != "true" {
		return nil
	}
	return ValidatePhoneNumber(phoneNumber, CountryCode)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, fallback ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(fallback) > 0 {
		return fallback[0]
	}
	return zero
}
