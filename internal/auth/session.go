package auth

import (
	"context"
	"errors"
	"time"

	"labportal/internal/models"

	"gorm.io/gorm"
)

// StartSession signs a token for u and records its session row. u.Roles must
// be preloaded.
func StartSession(ctx context.Context, db *gorm.DB, tokens *Tokens, u models.User) (Issued, error) {
	issued, err := tokens.Sign(u.ID, u.Username, u.RoleNames())
	if err != nil {
		return Issued{}, err
	}
	sess := models.Session{JTI: issued.JTI, UserID: u.ID, ExpiresAt: issued.ExpiresAt, CreatedAt: time.Now()}
	if err := db.WithContext(ctx).Create(&sess).Error; err != nil {
		return Issued{}, err
	}
	return issued, nil
}

func RevokeSession(ctx context.Context, db *gorm.DB, jti string) error {
	now := time.Now()
	return db.WithContext(ctx).Model(&models.Session{}).
		Where("jti = ? AND revoked_at IS NULL", jti).
		Update("revoked_at", now).Error
}

// RevokeUserSessions ends every open session of userID, used when an account
// is disabled, re-roled or deleted.
func RevokeUserSessions(ctx context.Context, db *gorm.DB, userID string) error {
	now := time.Now()
	return db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
}

var (
	ErrNoSession       = errors.New("session not found")
	ErrSessionEnded    = errors.New("session expired/revoked")
	ErrAccountDisabled = errors.New("account disabled")
)

// Resolve checks that claims belong to a live session of an active account
// and returns them with the account's current roles.
func Resolve(ctx context.Context, db *gorm.DB, claims Claims, now time.Time) (Claims, error) {
	var sess models.Session
	if claims.JWTID == "" {
		return Claims{}, ErrNoSession
	}
	if err := db.WithContext(ctx).First(&sess, "jti = ?", claims.JWTID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Claims{}, ErrNoSession
		}
		return Claims{}, err
	}
	if sess.UserID != claims.Subject || sess.RevokedAt != nil || now.After(sess.ExpiresAt) {
		return Claims{}, ErrSessionEnded
	}
	var u models.User
	if err := db.WithContext(ctx).Preload("Roles").First(&u, "id = ?", sess.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Claims{}, ErrNoSession
		}
		return Claims{}, err
	}
	if !u.IsActive {
		return Claims{}, ErrAccountDisabled
	}
	claims.Username = u.Username
	claims.Roles = u.RoleNames()
	return claims, nil
}
