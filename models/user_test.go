package models

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
)

func doc(name, url string) utils.UploadedFile {
	return utils.UploadedFile{Name: name, URL: url}
}

func TestMergeSupportingDocuments_ReplacesByName(t *testing.T) {
	existing := []utils.UploadedFile{
		doc("lease.pdf", "gs://old/lease"),
		doc("id-card.png", "gs://old/id"),
	}
	uploaded := []utils.UploadedFile{
		doc("Lease.PDF", "gs://new/lease"), // same name, different case
		doc("agreement.pdf", "gs://new/agreement"),
	}

	merged := MergeSupportingDocuments(existing, uploaded)
	if len(merged) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(merged))
	}
	if merged[0].URL != "gs://new/lease" {
		t.Fatalf("lease.pdf must be replaced in place, got %s", merged[0].URL)
	}
	if merged[1].Name != "id-card.png" {
		t.Fatalf("existing order must be preserved, got %s", merged[1].Name)
	}
	if merged[2].Name != "agreement.pdf" {
		t.Fatalf("new names append after existing, got %s", merged[2].Name)
	}
}

func TestMergeSupportingDocuments_EmptyNameDropped(t *testing.T) {
	merged := MergeSupportingDocuments(nil, []utils.UploadedFile{doc("", "gs://x")})
	if len(merged) != 0 {
		t.Fatalf("nameless uploads must be dropped, got %d", len(merged))
	}
}

func TestUserDisplayName(t *testing.T) {
	u := &User{FullName: "Full", Name: "Legacy"}
	if u.DisplayName() != "Full" {
		t.Fatalf("full_name wins, got %q", u.DisplayName())
	}
	u.FullName = ""
	if u.DisplayName() != "Legacy" {
		t.Fatalf("legacy name is the fallback, got %q", u.DisplayName())
	}
	u.Name = ""
	if u.DisplayName() != "" {
		t.Fatalf("missing names collapse to empty, got %q", u.DisplayName())
	}
}

func TestSaveTenant_StrictPhoneValidation(t *testing.T) {
	t.Setenv("STRICT_PHONE_VALIDATION", "true")

	input := &TenantInput{
		FullName:    "Asha",
		PhoneNumber: "12",
		PropertyId:  "prop-1",
	}
	// Validation rejects the number before any lookup runs.
	_, err := SaveTenant(context.Background(), input)
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for a malformed number, got %v", err)
	}
}
