package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Complaint documents are never soft-deleted; owners only move them through
// status transitions.
type Complaint struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	PropertyID    string          `gorm:"size:64;index;column:property_id" json:"property_id"`
	TenantUID     string          `gorm:"size:64;index;column:tenant_uid" json:"tenant_uid"`
	ComplaintType string          `gorm:"size:50;column:complaint_type" json:"complaint_type"`
	Title         string          `gorm:"size:160" json:"title"`
	Description   string          `gorm:"type:text" json:"description"`
	Status        ComplaintStatus `gorm:"type:enum('Open','In Progress','Resolved');default:'Open'" json:"status"`
	CreatedAt     *time.Time      `gorm:"column:created_at" json:"created_at"`
	ResolvedAt    *time.Time      `gorm:"column:resolved_at" json:"resolved_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (Complaint) TableName() string { return "complaints" }

type ComplaintInput struct {
	PropertyId    string `json:"property_id" binding:"required"`
	TenantUID     string `json:"tenant_uid"`
	ComplaintType string `json:"complaint_type"`
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
}

// CreateComplaint files a tenant complaint in Open state.
func CreateComplaint(ctx context.Context, input *ComplaintInput) (*Complaint, error) {
	if strings.TrimSpace(input.PropertyId) == "" {
		return nil, utils.NewValidationError("property_id", "required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, utils.NewValidationError("title", "required")
	}

	now := time.Now().UTC()
	complaint := Complaint{
		ID:            uuid.NewString(),
		PropertyID:    strings.TrimSpace(input.PropertyId),
		TenantUID:     strings.TrimSpace(input.TenantUID),
		ComplaintType: strings.TrimSpace(input.ComplaintType),
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Status:        ComplaintStatusOpen,
		CreatedAt:     &now,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&complaint).Error; err != nil {
		return nil, err
	}
	return &complaint, nil
}

// UpdateComplaintStatus transitions the status. resolved_at is derived: set
// only when the status becomes Resolved, cleared on any other transition.
func UpdateComplaintStatus(ctx context.Context, complaintId string, status ComplaintStatus) (*Complaint, error) {
	if strings.TrimSpace(complaintId) == "" {
		return nil, utils.NewValidationError("id", "required")
	}
	if !status.Valid() {
		return nil, utils.NewValidationError("status", "invalid status")
	}

	var resolvedAt *time.Time
	if status == ComplaintStatusResolved {
		now := time.Now().UTC()
		resolvedAt = &now
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Complaint{}).
		Where("id = ?", complaintId).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_at": resolvedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetComplaintById(ctx, complaintId)
}

func GetComplaintById(ctx context.Context, id string) (*Complaint, error) {
	db := config.GetDB()
	var complaint Complaint
	if err := db.WithContext(ctx).Where("id = ?", id).First(&complaint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &complaint, nil
}

func ListComplaints(ctx context.Context) ([]*Complaint, error) {
	db := config.GetDB()
	var complaints []*Complaint
	if err := db.WithContext(ctx).Find(&complaints).Error; err != nil {
		return nil, err
	}
	return complaints, nil
}
