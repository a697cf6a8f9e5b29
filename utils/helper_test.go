package utils

import (
	"testing"
	"time"
)

func TestNormalizeDigits(t *testing.T) {
	cases := map[string]string{
		"+91 98765-43210": "919876543210",
		"9876543210":      "9876543210",
		"abc":             "",
		"":                "",
	}
	for in, want := range cases {
		if got := NormalizeDigits(in); got != want {
			t.Fatalf("NormalizeDigits(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPhoneDigitsFromEmail(t *testing.T) {
	if got := PhoneDigitsFromEmail("98765-43210@app.local"); got != "9876543210" {
		t.Fatalf("got %q, want digits of local part", got)
	}
	if got := PhoneDigitsFromEmail("no-at-sign"); got != "" {
		t.Fatalf("malformed email must yield no digits, got %q", got)
	}
	if got := PhoneDigitsFromEmail("letters@app.local"); got != "" {
		t.Fatalf("non-numeric local part must yield no digits, got %q", got)
	}
}

func TestMonthYearLabel(t *testing.T) {
	at := time.Date(2026, time.February, 28, 23, 0, 0, 0, time.UTC)
	if got := MonthYearLabel(at); got != "February 2026" {
		t.Fatalf("got %q, want %q", got, "February 2026")
	}
}

func TestRefTerminalID(t *testing.T) {
	cases := map[string]string{
		"p1":                 "p1",
		"properties/p1":      "p1",
		"db/x/properties/p1": "p1",
		"properties/p1/":     "p1",
		"":                   "",
	}
	for in, want := range cases {
		if got := RefTerminalID(in); got != want {
			t.Fatalf("RefTerminalID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName("my lease (final).pdf"); got != "my_lease__final_.pdf" {
		t.Fatalf("got %q", got)
	}
	long := make([]byte, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'a')
	}
	if got := SanitizeFileName(string(long)); len(got) != 120 {
		t.Fatalf("expected 120-char cap, got %d", len(got))
	}
}

func TestEmailLocalPart(t *testing.T) {
	if got := EmailLocalPart("user@host"); got != "user" {
		t.Fatalf("got %q", got)
	}
	if got := EmailLocalPart("nohost"); got != "" {
		t.Fatalf("got %q, want empty for malformed email", got)
	}
}

func TestValidatePhoneStrict(t *testing.T) {
	if err := ValidatePhoneStrict("not-a-number"); err != nil {
		t.Fatalf("strict validation must be off by default, got %v", err)
	}

	t.Setenv("STRICT_PHONE_VALIDATION", "true")
	if err := ValidatePhoneStrict("9123456789"); err != nil {
		t.Fatalf("valid mobile number rejected: %v", err)
	}
	if err := ValidatePhoneStrict("12"); err == nil {
		t.Fatal("expected error for a malformed number")
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("9123456780@app.local") {
		t.Fatal("expected valid")
	}
	if IsValidEmail("9123456780@localhost") || IsValidEmail("nohost") {
		t.Fatal("expected invalid")
	}
}

func TestDereferencePtr(t *testing.T) {
	if !DereferencePtr(NewTrue()) {
		t.Fatal("want true")
	}
	if DereferencePtr[bool](nil) {
		t.Fatal("want zero value for nil")
	}
	if got := DereferencePtr[string](nil, "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
}
