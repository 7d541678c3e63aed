package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"labportal/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureRoles inserts the role catalogue, leaving existing rows alone.
func EnsureRoles(ctx context.Context, db *gorm.DB) error {
	for _, name := range AllRoles {
		role := models.Role{Name: name}
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; err != nil {
			return err
		}
	}
	return nil
}

// EnsureUser creates username with the given password and roles unless an
// account with that name exists. It reports whether a user was created.
func EnsureUser(ctx context.Context, db *gorm.DB, username, password string, roles ...string) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if password == "" {
		return false, errors.New("seed password is empty")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	var rs []models.Role
	if err := db.WithContext(ctx).Where("name IN ?", roles).Find(&rs).Error; err != nil {
		return false, err
	}
	u := models.User{Username: username, PasswordHash: hash, IsActive: true, Roles: rs, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		return false, err
	}
	return true, nil
}
