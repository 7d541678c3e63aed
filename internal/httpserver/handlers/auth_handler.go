package handlers

import (
	"net/http"
	"strings"
	"time"

	"labportal/internal/auth"
	"labportal/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func Login(db *gorm.DB, tokens *auth.Tokens, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if !decodeJSON(w, r, &req) {
			return
		}
		var u models.User
		if err := db.WithContext(r.Context()).Preload("Roles").First(&u, "username = ?", strings.ToLower(strings.TrimSpace(req.Username))).Error; err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if !u.IsActive || auth.CheckPassword(u.PasswordHash, req.Password) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		issued, err := auth.StartSession(r.Context(), db, tokens, u)
		if err != nil {
			lg.Errorw("start session failed", "user_id", u.ID, "error", err)
			http.Error(w, "token error", http.StatusInternalServerError)
			return
		}
		lg.Infow("login", "user_id", u.ID, "username", u.Username)
		respondJSON(w, map[string]any{
			"token":      issued.Token,
			"expires_at": issued.ExpiresAt,
			"user":       map[string]any{"id": u.ID, "username": u.Username, "roles": u.RoleNames()},
		})
	}
}

func Logout(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		if err := auth.RevokeSession(r.Context(), db, claims.JWTID); err != nil {
			lg.Errorw("revoke session failed", "jti", claims.JWTID, "error", err)
			http.Error(w, "logout failed", http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"logged_out": true})
	}
}

func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.Subject(r.Context())
		var u models.User
		if err := db.WithContext(r.Context()).Preload("Roles").First(&u, "id = ?", sub).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		respondJSON(w, map[string]any{
			"id": u.ID, "username": u.Username, "roles": u.RoleNames(), "is_active": u.IsActive,
		})
	}
}

func ChangePassword(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Current string `json:"current_password"`
			New     string `json:"new_password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		var u models.User
		if err := db.WithContext(r.Context()).First(&u, "id = ?", auth.Subject(r.Context())).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if auth.CheckPassword(u.PasswordHash, req.Current) != nil {
			http.Error(w, "current password is wrong", http.StatusBadRequest)
			return
		}
		hash, err := auth.HashPassword(req.New)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := db.WithContext(r.Context()).Model(&u).Updates(map[string]any{"password_hash": hash, "updated_at": time.Now()}).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}
