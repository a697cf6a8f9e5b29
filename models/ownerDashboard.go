package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"golang.org/x/sync/errgroup"
)

// OwnerDashboard is the aggregated, scope-filtered view an owner sees:
// their properties (own plus phone-matched co-owners'), the tenants and
// complaints attached to those properties, and the latest ledger per
// property. Everything below the fan-out is pure slice work so it can be
// exercised without a database.
type OwnerDashboard struct {
	Owner         *User                     `json:"owner"`
	Properties    []*Property               `json:"properties"`
	Tenants       []*User                   `json:"tenants"`
	Complaints    []*Complaint              `json:"complaints"`
	LatestLedgers map[string]*BillingLedger `json:"latest_ledgers"`
}

// LoadOwnerDashboard fans out the five reads concurrently, then assembles
// the scoped view. Any read error fails the whole load; partial dashboards
// are never served.
func LoadOwnerDashboard(ctx context.Context, ownerId string) (*OwnerDashboard, error) {
	owner, err := GetUserById(ctx, ownerId)
	if err != nil {
		return nil, err
	}

	var (
		properties []*Property
		tenants    []*User
		complaints []*Complaint
		ledgers    []*BillingLedger
		owners     []*User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		properties, err = ListProperties(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tenants, err = ListUsersByRole(gctx, RoleTenant)
		return err
	})
	g.Go(func() error {
		var err error
		complaints, err = ListComplaints(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ledgers, err = ListAllLedgers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		owners, err = ListUsersByRole(gctx, RoleOwner)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return AssembleOwnerDashboard(owner, properties, tenants, complaints, ledgers, owners), nil
}

// AssembleOwnerDashboard applies the ownership scope and the view's sort
// rules to already-loaded slices.
func AssembleOwnerDashboard(owner *User, properties []*Property, tenants []*User, complaints []*Complaint, ledgers []*BillingLedger, owners []*User) *OwnerDashboard {
	scope := ComputeOwnerScope(owner, owners)
	scoped := scope.FilterProperties(properties)

	scopedIds := make(map[string]bool, len(scoped))
	for _, property := range scoped {
		scopedIds[property.ID] = true
	}

	return &OwnerDashboard{
		Owner:         owner,
		Properties:    scoped,
		Tenants:       FilterAndSortTenants(tenants, scopedIds),
		Complaints:    FilterAndSortComplaints(complaints, scopedIds),
		LatestLedgers: scopedLatestLedgers(ledgers, scopedIds),
	}
}

// FilterAndSortTenants keeps live tenants attached to the scoped properties
// and orders them primary tenant first, then case-insensitively by display
// name. The sort is stable so equal names keep their input order.
func FilterAndSortTenants(tenants []*User, scopedPropertyIds map[string]bool) []*User {
	filtered := make([]*User, 0, len(tenants))
	for _, tenant := range tenants {
		if tenant == nil || tenant.IsDeleted() || tenant.Role != RoleTenant {
			continue
		}
		if !scopedPropertyIds[utils.RefTerminalID(tenant.PropertyID)] {
			continue
		}
		filtered = append(filtered, tenant)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.IsPrimaryTenant != b.IsPrimaryTenant {
			return a.IsPrimaryTenant
		}
		return strings.ToLower(a.DisplayName()) < strings.ToLower(b.DisplayName())
	})
	return filtered
}

// FilterAndSortComplaints keeps complaints for the scoped properties and
// orders them newest first. Complaints carry no deletion flag, and a nil
// created_at sorts as the zero time so it sinks to the bottom.
func FilterAndSortComplaints(complaints []*Complaint, scopedPropertyIds map[string]bool) []*Complaint {
	filtered := make([]*Complaint, 0, len(complaints))
	for _, complaint := range complaints {
		if complaint == nil {
			continue
		}
		if !scopedPropertyIds[utils.RefTerminalID(complaint.PropertyID)] {
			continue
		}
		filtered = append(filtered, complaint)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return complaintTime(filtered[i]).After(complaintTime(filtered[j]))
	})
	return filtered
}

func complaintTime(c *Complaint) time.Time {
	if c.CreatedAt == nil {
		return time.Time{}
	}
	return *c.CreatedAt
}

func scopedLatestLedgers(ledgers []*BillingLedger, scopedPropertyIds map[string]bool) map[string]*BillingLedger {
	latest := LatestLedgerByProperty(ledgers)
	for propertyId := range latest {
		if !scopedPropertyIds[propertyId] {
			delete(latest, propertyId)
		}
	}
	return latest
}
