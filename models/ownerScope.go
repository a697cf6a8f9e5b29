package models

import (
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
)

// OwnerScope is the set of owner ids whose properties the resolved owner may
// see. Co-ownership is inferred from a shared phone number: any owner whose
// normalized phone digits equal the resolved owner's joins the candidate
// set. The scope is recomputed on every aggregation pass, never cached.
type OwnerScope struct {
	ResolvedOwnerId string
	CandidateIds    map[string]bool
}

// ComputeOwnerScope seeds the candidate set with the resolved owner's id and
// widens it with live owners sharing the same normalized phone digits. An
// owner with no digits at all never matches anyone, including another owner
// with an empty phone.
func ComputeOwnerScope(resolved *User, owners []*User) OwnerScope {
	scope := OwnerScope{
		ResolvedOwnerId: resolved.ID,
		CandidateIds:    map[string]bool{resolved.ID: true},
	}

	seedDigits := utils.NormalizeDigits(resolved.PhoneNumber)
	if seedDigits == "" {
		return scope
	}

	for _, owner := range owners {
		if owner == nil || owner.IsDeleted() || owner.Role != RoleOwner {
			continue
		}
		if utils.NormalizeDigits(owner.PhoneNumber) == seedDigits {
			scope.CandidateIds[owner.ID] = true
		}
	}
	return scope
}

// Contains resolves the owner reference to its terminal id before checking
// membership, so both plain ids and path-style refs are accepted.
func (s OwnerScope) Contains(ownerRef string) bool {
	id := utils.RefTerminalID(ownerRef)
	if id == "" {
		return false
	}
	return s.CandidateIds[id]
}

// FilterProperties keeps the non-deleted properties whose owner ref falls
// inside the scope, preserving input order.
func (s OwnerScope) FilterProperties(properties []*Property) []*Property {
	scoped := make([]*Property, 0, len(properties))
	for _, property := range properties {
		if property == nil || property.IsDeleted() {
			continue
		}
		if s.Contains(property.OwnerUID) {
			scoped = append(scoped, property)
		}
	}
	return scoped
}
