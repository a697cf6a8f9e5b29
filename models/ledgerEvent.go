package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEvent is a transactional-outbox row: written inside the reconciling
// transaction, published to Pub/Sub asynchronously by the outbox dispatcher
// after commit. Dependent notifications never block the write path.
type LedgerEvent struct {
	ID                  int             `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType           string          `gorm:"size:40;not null" json:"event_type"`
	PropertyID          string          `gorm:"size:64;index;column:property_id" json:"property_id"`
	LedgerID            string          `gorm:"size:64;column:ledger_id" json:"ledger_id"`
	MonthYear           string          `gorm:"size:32;column:month_year" json:"month_year"`
	CurrentMeterReading decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:current_meter_reading" json:"current_meter_reading"`
	ElectricityTotal    decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:electricity_total" json:"electricity_total"`
	CorrelationId       string          `gorm:"size:64;column:correlation_id" json:"correlation_id"`
	PublishStatus       string          `gorm:"size:16;index;default:'PENDING';column:publish_status" json:"publish_status"`
	PublishAttempts     int             `gorm:"default:0;column:publish_attempts" json:"publish_attempts"`
	NextAttemptAt       *time.Time      `gorm:"column:next_attempt_at" json:"next_attempt_at"`
	LockedAt            *time.Time      `gorm:"column:locked_at" json:"locked_at"`
	LockedBy            *string         `gorm:"size:64;column:locked_by" json:"locked_by"`
	LastPublishError    *string         `gorm:"size:512;column:last_publish_error" json:"last_publish_error"`
	PublishedAt         *time.Time      `gorm:"column:published_at" json:"published_at"`
	PubSubMessageId     *string         `gorm:"size:128;column:pub_sub_message_id" json:"pub_sub_message_id"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (LedgerEvent) TableName() string { return "ledger_events" }

// RecordLedgerEvent writes the outbox row in the caller's transaction so the
// amended ledger and its event commit or roll back together.
func RecordLedgerEvent(ctx context.Context, tx *gorm.DB, ledger *BillingLedger, eventType string) error {
	event := LedgerEvent{
		EventType:           eventType,
		PropertyID:          ledger.PropertyID,
		LedgerID:            ledger.ID,
		MonthYear:           ledger.MonthYear,
		CurrentMeterReading: ledger.CurrentMeterReading,
		ElectricityTotal:    ledger.ElectricityTotal,
		CorrelationId:       correlationIdFromContextOrNew(ctx),
		PublishStatus:       OutboxPublishStatusPending,
	}
	return tx.WithContext(ctx).Create(&event).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func (e *LedgerEvent) ToMessage() config.LedgerEventMessage {
	return config.LedgerEventMessage{
		EventId:          e.ID,
		EventType:        e.EventType,
		PropertyId:       e.PropertyID,
		LedgerId:         e.LedgerID,
		MonthYear:        e.MonthYear,
		CurrentReading:   e.CurrentMeterReading,
		ElectricityTotal: e.ElectricityTotal,
		CorrelationId:    e.CorrelationId,
	}
}
