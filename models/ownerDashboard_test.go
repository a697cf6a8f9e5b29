package models

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
)

func tenant(id, name, propertyId string, primary bool) *User {
	return &User{
		ID:              id,
		Role:            RoleTenant,
		FullName:        name,
		PropertyID:      propertyId,
		IsPrimaryTenant: primary,
		Deleted:         utils.NewFalse(),
	}
}

func complaintAt(id, propertyId string, at *time.Time) *Complaint {
	return &Complaint{ID: id, PropertyID: propertyId, CreatedAt: at}
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestFilterAndSortTenants(t *testing.T) {
	scoped := map[string]bool{"p1": true}
	deleted := tenant("t5", "Aaron", "p1", false)
	deleted.Deleted = utils.NewTrue()
	tenants := []*User{
		tenant("t1", "zoe", "p1", false),
		tenant("t2", "Bob", "p1", true),
		tenant("t3", "alice", "p1", false),
		tenant("t4", "Carol", "p2", false), // out of scope
		deleted,
	}

	got := FilterAndSortTenants(tenants, scoped)
	if len(got) != 3 {
		t.Fatalf("expected 3 tenants, got %d", len(got))
	}
	if got[0].ID != "t2" {
		t.Fatalf("primary tenant must sort first, got %s", got[0].ID)
	}
	if got[1].ID != "t3" || got[2].ID != "t1" {
		t.Fatalf("expected case-insensitive name order alice, zoe; got %s, %s", got[1].ID, got[2].ID)
	}
}

func TestFilterAndSortTenants_NameFallback(t *testing.T) {
	legacy := tenant("t1", "", "p1", false)
	legacy.Name = "bob"
	tenants := []*User{tenant("t2", "Alice", "p1", false), legacy}

	got := FilterAndSortTenants(tenants, map[string]bool{"p1": true})
	if got[0].ID != "t2" || got[1].ID != "t1" {
		t.Fatal("legacy name field must participate in the sort")
	}
}

func TestFilterAndSortComplaints(t *testing.T) {
	scoped := map[string]bool{"p1": true}
	complaints := []*Complaint{
		complaintAt("c1", "p1", ts("2026-01-10T00:00:00Z")),
		complaintAt("c2", "p1", nil), // nil created_at sinks
		complaintAt("c3", "p1", ts("2026-02-01T00:00:00Z")),
		complaintAt("c4", "p2", ts("2026-03-01T00:00:00Z")), // out of scope
	}

	got := FilterAndSortComplaints(complaints, scoped)
	if len(got) != 3 {
		t.Fatalf("expected 3 complaints, got %d", len(got))
	}
	if got[0].ID != "c3" || got[1].ID != "c1" || got[2].ID != "c2" {
		t.Fatalf("expected newest-first with nil last, got %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestAssembleOwnerDashboard_ScopesEverything(t *testing.T) {
	resolvedOwner := owner("o1", "9876543210")
	coOwner := owner("o2", "9876543210")
	stranger := owner("o9", "9000000000")

	properties := []*Property{
		property("p1", "o1"),
		property("p2", "o2"),
		property("p9", "o9"),
	}
	tenants := []*User{
		tenant("t1", "Alice", "p1", true),
		tenant("t9", "Mallory", "p9", false),
	}
	complaints := []*Complaint{
		complaintAt("c1", "p2", ts("2026-01-01T00:00:00Z")),
		complaintAt("c9", "p9", ts("2026-01-02T00:00:00Z")),
	}
	ledgers := []*BillingLedger{
		{ID: "l1", PropertyID: "p1", UpdatedAt: time.Unix(100, 0)},
		{ID: "l9", PropertyID: "p9", UpdatedAt: time.Unix(100, 0)},
	}

	dashboard := AssembleOwnerDashboard(resolvedOwner, properties, tenants, complaints, ledgers, []*User{resolvedOwner, coOwner, stranger})

	if len(dashboard.Properties) != 2 {
		t.Fatalf("expected own plus co-owned property, got %d", len(dashboard.Properties))
	}
	if len(dashboard.Tenants) != 1 || dashboard.Tenants[0].ID != "t1" {
		t.Fatalf("expected only t1, got %+v", dashboard.Tenants)
	}
	if len(dashboard.Complaints) != 1 || dashboard.Complaints[0].ID != "c1" {
		t.Fatalf("expected only c1, got %+v", dashboard.Complaints)
	}
	if _, ok := dashboard.LatestLedgers["p9"]; ok {
		t.Fatal("l9 belongs to a stranger's property and must be filtered")
	}
	if dashboard.LatestLedgers["p1"].ID != "l1" {
		t.Fatal("p1's ledger missing from the dashboard")
	}
}
