package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/models"
	"bitbucket.org/mmdatafocus/rentroll_backend/utils"
	"gorm.io/gorm"
)

// GormPrincipalDirectory backs PrincipalDirectory with the users table.
type GormPrincipalDirectory struct{}

func NewPrincipalDirectory() *GormPrincipalDirectory { return &GormPrincipalDirectory{} }

// UserByID looks the document up by primary key with the deleted guard
// bypassed: the resolver wants tombstones too, its final gate denies them.
func (d *GormPrincipalDirectory) UserByID(ctx context.Context, id string) (*models.User, error) {
	db := config.GetDB()
	ctx = utils.SetIncludeDeletedInContext(ctx, true)

	var user models.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (d *GormPrincipalDirectory) UserByAuthUID(ctx context.Context, uid string) (*models.User, error) {
	db := config.GetDB()

	var user models.User
	if err := db.WithContext(ctx).
		Where("auth_uid = ?", uid).
		Order("updated_at DESC").
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (d *GormPrincipalDirectory) UserByRoleAndPhone(ctx context.Context, role models.Role, digits string) (*models.User, error) {
	if digits == "" {
		return nil, utils.ErrorRecordNotFound
	}
	db := config.GetDB()

	var user models.User
	if err := db.WithContext(ctx).
		Where("role = ? AND phone_number = ?", role, digits).
		Order("updated_at DESC").
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (d *GormPrincipalDirectory) LinkAuthUID(ctx context.Context, userId, authUid string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userId).
		Updates(map[string]interface{}{
			"auth_uid":   authUid,
			"updated_at": time.Now().UTC(),
		}).Error
}
