package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
)

func owner(id, phone string) *User {
	return &User{ID: id, Role: RoleOwner, PhoneNumber: phone, Deleted: utils.NewFalse()}
}

func property(id, ownerRef string) *Property {
	return &Property{ID: id, OwnerUID: ownerRef, Deleted: utils.NewFalse()}
}

func TestComputeOwnerScope_SharedPhoneWidensScope(t *testing.T) {
	resolved := owner("o1", "987-654-3210")
	others := []*User{
		owner("o2", "9876543210"), // same digits, different formatting
		owner("o3", "9000000000"),
	}

	scope := ComputeOwnerScope(resolved, others)
	if !scope.CandidateIds["o1"] || !scope.CandidateIds["o2"] {
		t.Fatalf("expected o1 and o2 in scope, got %v", scope.CandidateIds)
	}
	if scope.CandidateIds["o3"] {
		t.Fatal("o3 has a different phone and must not join the scope")
	}
}

func TestComputeOwnerScope_EmptyPhoneNeverMatches(t *testing.T) {
	resolved := owner("o1", "")
	others := []*User{owner("o2", ""), owner("o3", "abc")}

	scope := ComputeOwnerScope(resolved, others)
	if len(scope.CandidateIds) != 1 || !scope.CandidateIds["o1"] {
		t.Fatalf("empty digits must only match self, got %v", scope.CandidateIds)
	}
}

func TestComputeOwnerScope_DeletedAndNonOwnerExcluded(t *testing.T) {
	resolved := owner("o1", "9876543210")
	tombstone := owner("o2", "9876543210")
	tombstone.Deleted = utils.NewTrue()
	tenant := &User{ID: "t1", Role: RoleTenant, PhoneNumber: "9876543210", Deleted: utils.NewFalse()}

	scope := ComputeOwnerScope(resolved, []*User{tombstone, tenant})
	if scope.CandidateIds["o2"] || scope.CandidateIds["t1"] {
		t.Fatalf("deleted owners and tenants must not widen scope, got %v", scope.CandidateIds)
	}
}

func TestOwnerScope_FilterProperties(t *testing.T) {
	resolved := owner("o1", "9876543210")
	scope := ComputeOwnerScope(resolved, []*User{owner("o2", "9876543210")})

	deleted := property("p3", "o1")
	deleted.Deleted = utils.NewTrue()
	properties := []*Property{
		property("p1", "o1"),
		property("p2", "users/o2"), // path-style ref resolves to o2
		deleted,
		property("p4", "o9"),
	}

	scoped := scope.FilterProperties(properties)
	if len(scoped) != 2 {
		t.Fatalf("expected 2 scoped properties, got %d", len(scoped))
	}
	if scoped[0].ID != "p1" || scoped[1].ID != "p2" {
		t.Fatalf("input order must be preserved, got %s, %s", scoped[0].ID, scoped[1].ID)
	}
}

func TestOwnerScope_Contains(t *testing.T) {
	scope := OwnerScope{ResolvedOwnerId: "o1", CandidateIds: map[string]bool{"o1": true}}
	if !scope.Contains("users/o1") {
		t.Fatal("path-style refs must resolve to their terminal id")
	}
	if scope.Contains("") || scope.Contains("users/") {
		t.Fatal("refs with no terminal id never match")
	}
}
