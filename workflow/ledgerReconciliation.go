package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerStore is the persistence surface reconciliation needs, small enough
// for tests to fake in memory.
type LedgerStore interface {
	// PropertyRate returns the property's electricity rate. Fail-soft: a
	// missing property or unreadable rate yields zero, the reading is
	// still recorded.
	PropertyRate(ctx context.Context, propertyId string) decimal.Decimal

	// CurrentLedger returns the property's current-cycle ledger, or
	// utils.ErrorRecordNotFound when the property has none yet.
	CurrentLedger(ctx context.Context, propertyId string) (*models.BillingLedger, error)

	// AmendLedger rewrites the current ledger's reading fields in place.
	AmendLedger(ctx context.Context, ledger *models.BillingLedger) error

	// CreateLedger inserts the property's first ledger record.
	CreateLedger(ctx context.Context, ledger *models.BillingLedger) error
}

// ComputeElectricityCharge derives the consumed units and the charge from a
// pair of readings. A current reading below the previous one clamps
// consumption to zero instead of producing a negative charge; meter
// replacements get corrected by a follow-up amendment, not a refund.
func ComputeElectricityCharge(prev, current, rate decimal.Decimal) (consumed, total decimal.Decimal) {
	consumed = current.Sub(prev)
	if consumed.IsNegative() {
		consumed = decimal.Zero
	}
	total = consumed.Mul(rate)
	return consumed, total
}

// ReconcileMeterReading records a meter reading against the property's
// current billing cycle. The current ledger is amended in place: the new
// reading replaces the current one and the charge is recomputed against the
// stored previous reading, which stays the cycle baseline. Resubmitting is a
// correction of the same cycle, so the previous reading and the cycle label
// never move on amend. A property with no ledger yet gets one created with a
// zero previous reading.
//
// A best-effort distributed lock serializes concurrent submissions for the
// same property. When Redis is absent or the lock cannot be obtained the
// reconciliation proceeds anyway; losing the lock must never lose a reading.
func ReconcileMeterReading(ctx context.Context, store LedgerStore, propertyId string, reading decimal.Decimal) (*models.BillingLedger, error) {
	logger := config.GetLogger()

	if reading.IsNegative() {
		return nil, utils.NewValidationError("current_meter_reading", "must not be negative")
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "reconcile:"+propertyId, 10*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 5),
		})
		if err != nil {
			logger.WithFields(logrus.Fields{
				"property_id": propertyId,
				"error":       err.Error(),
			}).Warn("reconcile lock unavailable; proceeding without it")
		} else {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	rate := store.PropertyRate(ctx, propertyId)
	now := time.Now().UTC()

	ledger, err := store.CurrentLedger(ctx, propertyId)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		_, total := ComputeElectricityCharge(decimal.Zero, reading, rate)
		ledger = &models.BillingLedger{
			ID:                  uuid.NewString(),
			PropertyID:          propertyId,
			MonthYear:           utils.MonthYearLabel(now),
			PrevMeterReading:    decimal.Zero,
			CurrentMeterReading: reading,
			ElectricityTotal:    total,
			PaymentStatus:       models.PaymentStatusPending,
			UpdatedAt:           now,
		}
		if err := store.CreateLedger(ctx, ledger); err != nil {
			return nil, err
		}
		return ledger, nil
	}

	_, total := ComputeElectricityCharge(ledger.PrevMeterReading, reading, rate)
	ledger.CurrentMeterReading = reading
	ledger.ElectricityTotal = total
	ledger.UpdatedAt = now

	if err := store.AmendLedger(ctx, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// GormLedgerStore implements LedgerStore on MySQL. Writes run in a
// transaction that also records the outbox event, so the amended ledger and
// its notification commit together.
type GormLedgerStore struct{}

func NewLedgerStore() *GormLedgerStore { return &GormLedgerStore{} }

func (s *GormLedgerStore) PropertyRate(ctx context.Context, propertyId string) decimal.Decimal {
	property, err := models.GetPropertyById(ctx, propertyId)
	if err != nil {
		logger := config.GetLogger()
		logger.WithFields(logrus.Fields{
			"property_id": propertyId,
			"error":       err.Error(),
		}).Warn("electricity rate unavailable; charging zero")
		return decimal.Zero
	}
	return property.ElectricityRate
}

func (s *GormLedgerStore) CurrentLedger(ctx context.Context, propertyId string) (*models.BillingLedger, error) {
	db := config.GetDB()
	var ledgers []*models.BillingLedger
	if err := db.WithContext(ctx).
		Where("property_id = ?", propertyId).
		Order("created_at ASC").
		Find(&ledgers).Error; err != nil {
		return nil, err
	}
	latest := models.LatestLedger(ledgers)
	if latest == nil {
		return nil, utils.ErrorRecordNotFound
	}
	return latest, nil
}

func (s *GormLedgerStore) AmendLedger(ctx context.Context, ledger *models.BillingLedger) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.BillingLedger{}).
			Where("id = ?", ledger.ID).
			Updates(map[string]interface{}{
				"current_meter_reading": ledger.CurrentMeterReading,
				"electricity_total":     ledger.ElectricityTotal,
				"updated_at":            ledger.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
		return models.RecordLedgerEvent(ctx, tx, ledger, models.LedgerEventTypeReadingEntered)
	})
}

func (s *GormLedgerStore) CreateLedger(ctx context.Context, ledger *models.BillingLedger) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ledger).Error; err != nil {
			return err
		}
		return models.RecordLedgerEvent(ctx, tx, ledger, models.LedgerEventTypeReadingEntered)
	})
}
