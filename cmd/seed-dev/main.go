package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// Seeds a small development dataset: one owner, one property, two tenants
// and a current ledger, then prints bearer tokens for both roles.
func main() {
	ownerPhone := flag.String("owner-phone", "9876543210", "Owner phone digits.")
	tenantPhone := flag.String("tenant-phone", "9123456780", "Primary tenant phone digits.")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	now := time.Now().UTC()

	owner := models.User{
		ID:          "dev-owner-1",
		Role:        models.RoleOwner,
		FullName:    "Dev Owner",
		PhoneNumber: utils.NormalizeDigits(*ownerPhone),
		AuthUID:     "dev-owner-1",
		Deleted:     utils.NewFalse(),
	}
	property := models.Property{
		ID:              "dev-property-1",
		OwnerUID:        owner.ID,
		StreetName:      "12 Dev Street",
		WardNo:          "4",
		RentAmount:      decimal.NewFromInt(12000),
		WaterCharge:     decimal.NewFromInt(300),
		ElectricityRate: decimal.NewFromInt(8),
		Deleted:         utils.NewFalse(),
	}
	primary := models.User{
		ID:              "dev-tenant-1",
		Role:            models.RoleTenant,
		FullName:        "Dev Tenant",
		PhoneNumber:     utils.NormalizeDigits(*tenantPhone),
		AuthUID:         "dev-tenant-1",
		PropertyID:      property.ID,
		IsPrimaryTenant: true,
		Deleted:         utils.NewFalse(),
	}
	secondary := models.User{
		ID:          "dev-tenant-2",
		Role:        models.RoleTenant,
		FullName:    "Dev Cotenant",
		PhoneNumber: "9000000002",
		PropertyID:  property.ID,
		Deleted:     utils.NewFalse(),
	}
	ledger := models.BillingLedger{
		ID:                  "dev-ledger-1",
		PropertyID:          property.ID,
		MonthYear:           utils.MonthYearLabel(now),
		PrevMeterReading:    decimal.NewFromInt(1200),
		CurrentMeterReading: decimal.NewFromInt(1250),
		ElectricityTotal:    decimal.NewFromInt(400),
		PaymentStatus:       models.PaymentStatusPending,
		UpdatedAt:           now,
	}

	for _, record := range []interface{}{&owner, &property, &primary, &secondary, &ledger} {
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}

	ownerToken, err := utils.JwtGenerate(owner.ID, owner.PhoneNumber+"@rentroll.dev", string(models.RoleOwner))
	if err != nil {
		fmt.Fprintf(os.Stderr, "token generation failed: %v\n", err)
		os.Exit(1)
	}
	tenantToken, err := utils.JwtGenerate(primary.ID, primary.PhoneNumber+"@rentroll.dev", string(models.RoleTenant))
	if err != nil {
		fmt.Fprintf(os.Stderr, "token generation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("seeded dev dataset")
	fmt.Println("owner token:  ", ownerToken)
	fmt.Println("tenant token: ", tenantToken)
}
