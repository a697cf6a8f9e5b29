package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"golang.org/x/sync/errgroup"
)

// TenantDashboard is the tenant-side view: the tenant's property, its
// charges, the current ledger, co-tenants on the same property and the
// owner's contact profile.
type TenantDashboard struct {
	Tenant       *User            `json:"tenant"`
	Property     *Property        `json:"property"`
	LatestLedger *BillingLedger   `json:"latest_ledger"`
	Ledgers      []*BillingLedger `json:"ledgers"`
	CoTenants    []*User          `json:"co_tenants"`
	Owner        *User            `json:"owner"`
}

// LoadTenantDashboard loads the tenant's property and everything attached
// to it. A tenant with no property assignment gets a dashboard with only
// their own profile filled in.
func LoadTenantDashboard(ctx context.Context, tenantId string) (*TenantDashboard, error) {
	tenant, err := GetUserById(ctx, tenantId)
	if err != nil {
		return nil, err
	}

	dashboard := &TenantDashboard{Tenant: tenant}

	propertyId := utils.RefTerminalID(tenant.PropertyID)
	if propertyId == "" {
		return dashboard, nil
	}

	property, err := GetPropertyById(ctx, propertyId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return dashboard, nil
		}
		return nil, err
	}
	dashboard.Property = property

	var (
		ledgers []*BillingLedger
		tenants []*User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ledgers, err = ListLedgersForProperty(gctx, property.ID)
		return err
	})
	g.Go(func() error {
		var err error
		tenants, err = ListUsersByRole(gctx, RoleTenant)
		return err
	})
	g.Go(func() error {
		ownerId := utils.RefTerminalID(property.OwnerUID)
		if ownerId == "" {
			return nil
		}
		owner, err := GetUserById(gctx, ownerId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil
			}
			return err
		}
		dashboard.Owner = owner
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dashboard.Ledgers = ledgers
	dashboard.LatestLedger = LatestLedger(ledgers)
	dashboard.CoTenants = coTenantsOnProperty(tenants, property.ID, tenant.ID)
	return dashboard, nil
}

// coTenantsOnProperty keeps the other live tenants attached to the same
// property, ordered with the primary tenant first.
func coTenantsOnProperty(tenants []*User, propertyId, selfId string) []*User {
	scoped := map[string]bool{propertyId: true}
	sorted := FilterAndSortTenants(tenants, scoped)
	coTenants := make([]*User, 0, len(sorted))
	for _, tenant := range sorted {
		if tenant.ID == selfId {
			continue
		}
		coTenants = append(coTenants, tenant)
	}
	return coTenants
}
