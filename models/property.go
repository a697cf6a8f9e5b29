package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Property uses its business key as document id. The owner reference may
// point at any owner-role user; phone-linked co-owners see it too.
type Property struct {
	ID                   string          `gorm:"primaryKey;size:64;column:id" json:"property_id"`
	OwnerUID             string          `gorm:"size:64;index;column:owner_uid" json:"owner_uid"`
	PropertyOccupiedFrom *time.Time      `gorm:"column:property_occupied_from" json:"property_occupied_from"`
	AdvancePaid          decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:advance_paid" json:"advance_paid"`
	WardNo               string          `gorm:"size:20;column:ward_no" json:"ward_no"`
	StreetName           string          `gorm:"size:160;column:street_name" json:"street_name"`
	RentAmount           decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:rent_amount" json:"rent_amount"`
	WaterCharge          decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:water_charge" json:"water_charge"`
	ElectricityRate      decimal.Decimal `gorm:"type:decimal(20,4);default:0;column:electricity_rate" json:"electricity_rate"`
	TermsAndConditions   string          `gorm:"type:text;column:terms_and_conditions" json:"terms_and_conditions"`
	ScheduleOfProperty   string          `gorm:"type:text;column:schedule_of_property" json:"schedule_of_property"`
	FittingAndFixtures   string          `gorm:"type:text;column:fitting_and_fixtures" json:"fitting_and_fixtures"`
	Deleted              *bool           `gorm:"not null;default:false;column:_deleted" json:"_deleted"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (Property) TableName() string { return "properties" }

func (p *Property) IsDeleted() bool {
	return utils.DereferencePtr(p.Deleted)
}

type PropertyInput struct {
	PropertyId           string          `json:"property_id" binding:"required"`
	PropertyOccupiedFrom string          `json:"property_occupied_from"` // yyyy-mm-dd
	AdvancePaid          decimal.Decimal `json:"advance_paid"`
	WardNo               string          `json:"ward_no"`
	StreetName           string          `json:"street_name" binding:"required"`
	RentAmount           decimal.Decimal `json:"rent_amount"`
	WaterCharge          decimal.Decimal `json:"water_charge"`
	ElectricityRate     decimal.Decimal `json:"electricity_rate"`
	TermsAndConditions  string          `json:"terms_and_conditions"`
	ScheduleOfProperty  string          `json:"schedule_of_property"`
	FittingAndFixtures  string          `json:"fitting_and_fixtures"`
}

func (input *PropertyInput) validate() (occupiedFrom *time.Time, err error) {
	if strings.TrimSpace(input.PropertyId) == "" {
		return nil, utils.NewValidationError("property_id", "required")
	}
	if strings.TrimSpace(input.StreetName) == "" {
		return nil, utils.NewValidationError("street_name", "required")
	}
	if input.AdvancePaid.IsNegative() || input.RentAmount.IsNegative() ||
		input.WaterCharge.IsNegative() || input.ElectricityRate.IsNegative() {
		return nil, utils.NewValidationError("amounts", "must not be negative")
	}
	if strings.TrimSpace(input.PropertyOccupiedFrom) != "" {
		parsed, perr := time.Parse("2006-01-02", strings.TrimSpace(input.PropertyOccupiedFrom))
		if perr != nil {
			return nil, utils.NewValidationError("property_occupied_from", "must be yyyy-mm-dd")
		}
		occupiedFrom = &parsed
	}
	return occupiedFrom, nil
}

// CreateProperty registers a property owned by the acting identity.
func CreateProperty(ctx context.Context, ownerId string, input *PropertyInput) (*Property, error) {
	occupiedFrom, err := input.validate()
	if err != nil {
		return nil, err
	}
	if ownerId == "" {
		return nil, utils.ErrorAccessDenied
	}

	property := Property{
		ID:                   strings.TrimSpace(input.PropertyId),
		OwnerUID:             ownerId,
		PropertyOccupiedFrom: occupiedFrom,
		AdvancePaid:          input.AdvancePaid,
		WardNo:               strings.TrimSpace(input.WardNo),
		StreetName:           strings.TrimSpace(input.StreetName),
		RentAmount:           input.RentAmount,
		WaterCharge:          input.WaterCharge,
		ElectricityRate:      input.ElectricityRate,
		TermsAndConditions:   strings.TrimSpace(input.TermsAndConditions),
		ScheduleOfProperty:   strings.TrimSpace(input.ScheduleOfProperty),
		FittingAndFixtures:   strings.TrimSpace(input.FittingAndFixtures),
		Deleted:              utils.NewFalse(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&property).Error; err != nil {
		return nil, err
	}
	return &property, nil
}

// UpdateProperty merge-writes the document; the soft-delete flag and owner
// reference are left untouched.
func UpdateProperty(ctx context.Context, input *PropertyInput) (*Property, error) {
	occupiedFrom, err := input.validate()
	if err != nil {
		return nil, err
	}

	propertyId := strings.TrimSpace(input.PropertyId)
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Property{}).
		Where("id = ?", propertyId).
		Updates(map[string]interface{}{
			"property_occupied_from": occupiedFrom,
			"advance_paid":           input.AdvancePaid,
			"ward_no":                strings.TrimSpace(input.WardNo),
			"street_name":            strings.TrimSpace(input.StreetName),
			"rent_amount":            input.RentAmount,
			"water_charge":           input.WaterCharge,
			"electricity_rate":       input.ElectricityRate,
			"terms_and_conditions":   strings.TrimSpace(input.TermsAndConditions),
			"schedule_of_property":   strings.TrimSpace(input.ScheduleOfProperty),
			"fitting_and_fixtures":   strings.TrimSpace(input.FittingAndFixtures),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetPropertyById(ctx, propertyId)
}

type PropertyChargesInput struct {
	PropertyId      string          `json:"property_id" binding:"required"`
	RentAmount      decimal.Decimal `json:"rent_amount"`
	WaterCharge     decimal.Decimal `json:"water_charge"`
	ElectricityRate decimal.Decimal `json:"electricity_rate"`
}

// UpdatePropertyCharges merges only the recurring-charge fields.
func UpdatePropertyCharges(ctx context.Context, input *PropertyChargesInput) (*Property, error) {
	if strings.TrimSpace(input.PropertyId) == "" {
		return nil, utils.NewValidationError("property_id", "required")
	}
	if input.RentAmount.IsNegative() || input.WaterCharge.IsNegative() || input.ElectricityRate.IsNegative() {
		return nil, utils.NewValidationError("amounts", "must not be negative")
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Property{}).
		Where("id = ?", strings.TrimSpace(input.PropertyId)).
		Updates(map[string]interface{}{
			"rent_amount":      input.RentAmount,
			"water_charge":     input.WaterCharge,
			"electricity_rate": input.ElectricityRate,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetPropertyById(ctx, strings.TrimSpace(input.PropertyId))
}

// DeleteProperty flips the soft-delete flag only; all data is retained.
func DeleteProperty(ctx context.Context, propertyId string) error {
	if strings.TrimSpace(propertyId) == "" {
		return utils.NewValidationError("property_id", "required")
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Property{}).
		Where("id = ?", propertyId).
		Updates(map[string]interface{}{"_deleted": true})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func GetPropertyById(ctx context.Context, id string) (*Property, error) {
	db := config.GetDB()
	var property Property
	if err := db.WithContext(ctx).Where("id = ?", id).First(&property).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &property, nil
}

func ListProperties(ctx context.Context) ([]*Property, error) {
	db := config.GetDB()
	var properties []*Property
	if err := db.WithContext(ctx).Find(&properties).Error; err != nil {
		return nil, err
	}
	return properties, nil
}
