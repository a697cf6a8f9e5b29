package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is one document in the `users` collection. Owners and tenants share
// the collection; the role is fixed at creation and never changes.
type User struct {
	ID                      string    `gorm:"primaryKey;size:64" json:"uid"`
	Role                    Role      `gorm:"type:enum('owner','tenant');not null;index" json:"role"`
	AuthUID                 string    `gorm:"size:128;index;column:auth_uid" json:"auth_uid"`
	FullName                string    `gorm:"size:120;column:full_name" json:"full_name"`
	Name                    string    `gorm:"size:120" json:"name"` // legacy display name, kept as fallback
	PhoneNumber             string    `gorm:"size:20;index;column:phone_number" json:"phone_number"`
	UpiID                   string    `gorm:"size:64;column:upi_id" json:"upi_id"`
	PropertyID              string    `gorm:"size:64;index;column:property_id" json:"property_id"`
	IsPrimaryTenant         bool      `gorm:"column:is_primary_tenant" json:"is_primary_tenant"`
	PermanentAddress        string    `gorm:"size:255;column:permanent_address" json:"permanent_address"`
	Pincode                 string    `gorm:"size:10" json:"pincode"`
	Gender                  string    `gorm:"size:16" json:"gender"`
	Dob                     *time.Time `json:"dob"`
	FatherName              string    `gorm:"size:120;column:father_name" json:"father_name"`
	TenantEntered           *time.Time `gorm:"column:tenant_entered" json:"tenant_entered"`
	TenantTerms             string    `gorm:"type:text;column:tenant_terms" json:"tenant_terms"`
	AadhaarInfo             AadhaarInfo      `gorm:"embedded;embeddedPrefix:aadhaar_" json:"aadhaar_info"`
	GuardianInfo            GuardianInfo     `gorm:"embedded;embeddedPrefix:guardian_" json:"guardian_info"`
	EmergencyContact        EmergencyContact `gorm:"embedded;embeddedPrefix:emergency_" json:"emergency_contact"`
	ProfilePhotoURL         string    `gorm:"size:512;column:profile_photo_url" json:"profile_photo_url"`
	ProfilePhotoStoragePath string    `gorm:"size:512;column:profile_photo_storage_path" json:"profile_photo_storage_path"`
	SupportingDocuments     SupportingDocuments `gorm:"type:json;column:supporting_documents" json:"supporting_documents"`
	FcmToken                string    `gorm:"size:512;column:fcm_token" json:"fcmToken"`
	NotificationPermission  string    `gorm:"size:16;column:notification_permission" json:"notification_permission"`
	Deleted                 *bool     `gorm:"not null;default:false;column:_deleted" json:"_deleted"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) IsDeleted() bool {
	return utils.DereferencePtr(u.Deleted)
}

// DisplayName is the sort/display fallback chain: full name, legacy name, "".
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Name
}

type AadhaarInfo struct {
	Number           string `gorm:"size:16;column:number" json:"number"`
	Last4            string `gorm:"size:4;column:last4" json:"last4"`
	PhotoURL         string `gorm:"size:512;column:photo_url" json:"photo_url"`
	PhotoStoragePath string `gorm:"size:512;column:photo_storage_path" json:"photo_storage_path"`
}

type GuardianInfo struct {
	Name         string `gorm:"size:120;column:name" json:"name"`
	Relationship string `gorm:"size:50;column:relationship" json:"relationship"`
	Phone        string `gorm:"size:20;column:phone" json:"phone"`
	Address      string `gorm:"size:255;column:address" json:"address"`
}

type EmergencyContact struct {
	Name  string `gorm:"size:120;column:contact_name" json:"name"`
	Phone string `gorm:"size:20;column:contact_phone" json:"phone"`
}

// SupportingDocuments stores upload metadata as a JSON column.
type SupportingDocuments []utils.UploadedFile

func (d SupportingDocuments) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (d *SupportingDocuments) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("supporting documents must be json bytes")
	}
	if len(data) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(data, d)
}

// MergeSupportingDocuments keys documents by sanitized lower-cased file name:
// existing entries survive unless a fresh upload replaces the same name.
// Order is existing-first, then new names in upload order.
func MergeSupportingDocuments(existing, uploaded []utils.UploadedFile) SupportingDocuments {
	merged := make(SupportingDocuments, 0, len(existing)+len(uploaded))
	index := make(map[string]int)

	add := func(doc utils.UploadedFile) {
		key := strings.ToLower(utils.SanitizeFileName(doc.Name))
		if key == "" {
			return
		}
		if at, ok := index[key]; ok {
			merged[at] = doc
			return
		}
		index[key] = len(merged)
		merged = append(merged, doc)
	}

	for _, doc := range existing {
		add(doc)
	}
	for _, doc := range uploaded {
		add(doc)
	}
	return merged
}

// TenantInput carries a validated tenant create/merge-update. Upload
// collaborator output (photos, documents) is resolved by the caller before
// this runs; a failed upload must abort the mutation, so no file handling
// happens here.
type TenantInput struct {
	UID                   string `json:"uid"`
	FullName              string `json:"full_name" binding:"required"`
	PhoneNumber           string `json:"phone_number" binding:"required"`
	PropertyId            string `json:"property_id" binding:"required"`
	IsPrimaryTenant       bool   `json:"is_primary_tenant"`
	PermanentAddress      string `json:"permanent_address"`
	Pincode               string `json:"pincode"`
	Gender                string `json:"gender"`
	Dob                   string `json:"dob"` // yyyy-mm-dd
	FatherName            string `json:"father_name"`
	AadhaarNumber         string `json:"aadhaar_number"`
	GuardianName          string `json:"guardian_name"`
	GuardianRelationship  string `json:"guardian_relationship"`
	GuardianPhone         string `json:"guardian_phone"`
	GuardianAddress       string `json:"guardian_address"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`

	ProfilePhoto     *utils.UploadedFile `json:"-"`
	AadhaarPhoto     *utils.UploadedFile `json:"-"`
	UploadedDocuments []utils.UploadedFile `json:"-"`
}

func (input *TenantInput) validate() error {
	if strings.TrimSpace(input.FullName) == "" {
		return utils.NewValidationError("full_name", "required")
	}
	if strings.TrimSpace(input.PhoneNumber) == "" {
		return utils.NewValidationError("phone_number", "required")
	}
	if err := utils.ValidatePhoneStrict(input.PhoneNumber); err != nil {
		return utils.NewValidationError("phone_number", err.Error())
	}
	if strings.TrimSpace(input.PropertyId) == "" {
		return utils.NewValidationError("property_id", "required")
	}
	return nil
}

// SaveTenant creates a tenant document (no uid supplied) or merge-updates an
// existing one. Previously stored document references survive unless the
// input explicitly replaces them.
func SaveTenant(ctx context.Context, input *TenantInput) (*User, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	if err := utils.ValidateResourceId[Property](ctx, strings.TrimSpace(input.PropertyId)); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewValidationError("property_id", "property not found")
		}
		return nil, err
	}

	db := config.GetDB()
	aadhaarDigits := utils.NormalizeDigits(input.AadhaarNumber)

	var dob *time.Time
	if strings.TrimSpace(input.Dob) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(input.Dob))
		if err != nil {
			return nil, utils.NewValidationError("dob", "must be yyyy-mm-dd")
		}
		dob = &parsed
	}

	if input.UID == "" {
		tenant := User{
			ID:               uuid.NewString(),
			Role:             RoleTenant,
			FullName:         strings.TrimSpace(input.FullName),
			PhoneNumber:      utils.NormalizeDigits(input.PhoneNumber),
			PropertyID:       strings.TrimSpace(input.PropertyId),
			IsPrimaryTenant:  input.IsPrimaryTenant,
			PermanentAddress: strings.TrimSpace(input.PermanentAddress),
			Pincode:          strings.TrimSpace(input.Pincode),
			Gender:           strings.TrimSpace(input.Gender),
			Dob:              dob,
			FatherName:       strings.TrimSpace(input.FatherName),
			AadhaarInfo: AadhaarInfo{
				Number: aadhaarDigits,
				Last4:  aadhaarLast4(aadhaarDigits),
			},
			GuardianInfo: GuardianInfo{
				Name:         strings.TrimSpace(input.GuardianName),
				Relationship: strings.TrimSpace(input.GuardianRelationship),
				Phone:        utils.NormalizeDigits(input.GuardianPhone),
				Address:      strings.TrimSpace(input.GuardianAddress),
			},
			EmergencyContact: EmergencyContact{
				Name:  strings.TrimSpace(input.EmergencyContactName),
				Phone: utils.NormalizeDigits(input.EmergencyContactPhone),
			},
			SupportingDocuments: MergeSupportingDocuments(nil, input.UploadedDocuments),
			Deleted:             utils.NewFalse(),
		}
		if input.ProfilePhoto != nil {
			tenant.ProfilePhotoURL = input.ProfilePhoto.URL
			tenant.ProfilePhotoStoragePath = input.ProfilePhoto.StoragePath
		}
		if input.AadhaarPhoto != nil {
			tenant.AadhaarInfo.PhotoURL = input.AadhaarPhoto.URL
			tenant.AadhaarInfo.PhotoStoragePath = input.AadhaarPhoto.StoragePath
		}
		if err := db.WithContext(ctx).Create(&tenant).Error; err != nil {
			return nil, err
		}
		return &tenant, nil
	}

	existing, err := GetUserById(ctx, input.UID)
	if err != nil {
		return nil, err
	}
	if existing.Role != RoleTenant {
		return nil, utils.NewValidationError("uid", "not a tenant record")
	}

	updates := map[string]interface{}{
		"full_name":               strings.TrimSpace(input.FullName),
		"phone_number":            utils.NormalizeDigits(input.PhoneNumber),
		"property_id":             strings.TrimSpace(input.PropertyId),
		"is_primary_tenant":       input.IsPrimaryTenant,
		"permanent_address":       strings.TrimSpace(input.PermanentAddress),
		"pincode":                 strings.TrimSpace(input.Pincode),
		"gender":                  strings.TrimSpace(input.Gender),
		"dob":                     dob,
		"father_name":             strings.TrimSpace(input.FatherName),
		"aadhaar_number":          aadhaarDigits,
		"aadhaar_last4":           aadhaarLast4(aadhaarDigits),
		"guardian_name":           strings.TrimSpace(input.GuardianName),
		"guardian_relationship":   strings.TrimSpace(input.GuardianRelationship),
		"guardian_phone":          utils.NormalizeDigits(input.GuardianPhone),
		"guardian_address":        strings.TrimSpace(input.GuardianAddress),
		"emergency_contact_name":  strings.TrimSpace(input.EmergencyContactName),
		"emergency_contact_phone": utils.NormalizeDigits(input.EmergencyContactPhone),
		"supporting_documents":    MergeSupportingDocuments(existing.SupportingDocuments, input.UploadedDocuments),
	}
	if input.ProfilePhoto != nil {
		updates["profile_photo_url"] = input.ProfilePhoto.URL
		updates["profile_photo_storage_path"] = input.ProfilePhoto.StoragePath
	}
	if input.AadhaarPhoto != nil {
		updates["aadhaar_photo_url"] = input.AadhaarPhoto.URL
		updates["aadhaar_photo_storage_path"] = input.AadhaarPhoto.StoragePath
	}

	if err := db.WithContext(ctx).Model(&User{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetUserById(ctx, existing.ID)
}

func aadhaarLast4(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// DeleteTenant flips the soft-delete flag; the record is retained.
func DeleteTenant(ctx context.Context, tenantId string) error {
	if strings.TrimSpace(tenantId) == "" {
		return utils.NewValidationError("uid", "required")
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND role = ?", tenantId, RoleTenant).
		Updates(map[string]interface{}{"_deleted": true})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// OwnerSettingsInput merge-writes the owner's profile. Phone-like fields are
// digit-normalized before persistence so the co-owner phone link stays exact.
type OwnerSettingsInput struct {
	FullName         string `json:"full_name" binding:"required"`
	PhoneNumber      string `json:"phone_number" binding:"required"`
	UpiID            string `json:"upi_id"`
	PermanentAddress string `json:"permanent_address"`
	TenantTerms      string `json:"tenant_terms"`
}

func UpdateOwnerSettings(ctx context.Context, ownerId string, input *OwnerSettingsInput) (*User, error) {
	if strings.TrimSpace(input.FullName) == "" {
		return nil, utils.NewValidationError("full_name", "required")
	}
	if strings.TrimSpace(input.PhoneNumber) == "" {
		return nil, utils.NewValidationError("phone_number", "required")
	}
	if err := utils.ValidatePhoneStrict(input.PhoneNumber); err != nil {
		return nil, utils.NewValidationError("phone_number", err.Error())
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND role = ?", ownerId, RoleOwner).
		Updates(map[string]interface{}{
			"full_name":         strings.TrimSpace(input.FullName),
			"phone_number":      utils.NormalizeDigits(input.PhoneNumber),
			"upi_id":            strings.TrimSpace(input.UpiID),
			"permanent_address": strings.TrimSpace(input.PermanentAddress),
			"tenant_terms":      strings.TrimSpace(input.TenantTerms),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetUserById(ctx, ownerId)
}

// SaveDeviceToken records the push token the notification dispatcher fans out to.
func SaveDeviceToken(ctx context.Context, userId, token, permission string) error {
	if strings.TrimSpace(userId) == "" {
		return utils.NewValidationError("uid", "required")
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&User{}).
		Where("id = ?", userId).
		Updates(map[string]interface{}{
			"fcm_token":               strings.TrimSpace(token),
			"notification_permission": strings.TrimSpace(permission),
		}).Error
}

// GetUserById fetches a single live user document. The soft-delete guard
// keeps tombstones out.
func GetUserById(ctx context.Context, id string) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsersByRole returns all live users with the given role.
func ListUsersByRole(ctx context.Context, role Role) ([]*User, error) {
	db := config.GetDB()
	var users []*User
	if err := db.WithContext(ctx).Where("role = ?", role).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
