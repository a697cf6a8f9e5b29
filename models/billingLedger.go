package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/shopspring/decimal"
)

// BillingLedger tracks meter readings and the computed electricity charge
// for a property's current billing cycle. By convention one record per
// property is "current": readings amend it in place, they do not append.
type BillingLedger struct {
	ID                  string          `gorm:"primaryKey;size:64" json:"id"`
	PropertyID          string          `gorm:"size:64;index;column:property_id" json:"property_id"`
	MonthYear           string          `gorm:"size:32;column:month_year" json:"month_year"`
	PrevMeterReading    decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:prev_meter_reading" json:"prev_meter_reading"`
	CurrentMeterReading decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:current_meter_reading" json:"current_meter_reading"`
	ElectricityTotal    decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:electricity_total" json:"electricity_total"`
	PaymentStatus       PaymentStatus   `gorm:"type:enum('pending','paid');default:'pending';column:payment_status" json:"payment_status"`
	PaidAt              *time.Time      `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (BillingLedger) TableName() string { return "billing_ledger" }

// LatestLedger reduces ledgers in slice order to the one with the greatest
// updated_at. Ties go to the later element (last seen wins). That is a
// property of the reduction itself, not a secondary sort key, and dependent
// views rely on it being reproducible for a fixed input order.
func LatestLedger(ledgers []*BillingLedger) *BillingLedger {
	var latest *BillingLedger
	for _, ledger := range ledgers {
		if latest == nil || !ledger.UpdatedAt.Before(latest.UpdatedAt) {
			latest = ledger
		}
	}
	return latest
}

// LatestLedgerByProperty groups by resolved property id and applies the
// LatestLedger rule per group while walking the input once, in order.
func LatestLedgerByProperty(ledgers []*BillingLedger) map[string]*BillingLedger {
	latest := make(map[string]*BillingLedger)
	for _, ledger := range ledgers {
		propertyId := utils.RefTerminalID(ledger.PropertyID)
		if propertyId == "" {
			continue
		}
		existing, ok := latest[propertyId]
		if !ok || !ledger.UpdatedAt.Before(existing.UpdatedAt) {
			latest[propertyId] = ledger
		}
	}
	return latest
}

// ListLedgersForProperty returns the property's ledgers in insertion order,
// which LatestLedger treats as the iteration order for tie-breaks.
func ListLedgersForProperty(ctx context.Context, propertyId string) ([]*BillingLedger, error) {
	db := config.GetDB()
	var ledgers []*BillingLedger
	if err := db.WithContext(ctx).
		Where("property_id = ?", propertyId).
		Order("created_at ASC").
		Find(&ledgers).Error; err != nil {
		return nil, err
	}
	return ledgers, nil
}

func ListAllLedgers(ctx context.Context) ([]*BillingLedger, error) {
	db := config.GetDB()
	var ledgers []*BillingLedger
	if err := db.WithContext(ctx).Order("created_at ASC").Find(&ledgers).Error; err != nil {
		return nil, err
	}
	return ledgers, nil
}

// ListPendingLedgers feeds the monthly reminder job.
func ListPendingLedgers(ctx context.Context) ([]*BillingLedger, error) {
	db := config.GetDB()
	var ledgers []*BillingLedger
	if err := db.WithContext(ctx).
		Where("payment_status = ?", PaymentStatusPending).
		Order("created_at ASC").
		Find(&ledgers).Error; err != nil {
		return nil, err
	}
	return ledgers, nil
}
