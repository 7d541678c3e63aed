package handlers

import (
	"net/http"
	"strings"
	"time"

	"labportal/internal/apperr"
	"labportal/internal/auth"
	"labportal/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type userView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserView(u models.User) userView {
	return userView{ID: u.ID, Username: u.Username, Roles: u.RoleNames(), IsActive: u.IsActive, CreatedAt: u.CreatedAt}
}

func lookupRoles(db *gorm.DB, names []string) ([]models.Role, error) {
	for _, n := range names {
		if !auth.KnownRole(n) {
			return nil, apperr.Validation("invalid user", apperr.FieldErrors{"roles": "unknown role " + n})
		}
	}
	var roles []models.Role
	if len(names) == 0 {
		return roles, nil
	}
	err := db.Where("name IN ?", names).Find(&roles).Error
	return roles, err
}

func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		if err := db.WithContext(r.Context()).Preload("Roles").Order("created_at desc").Find(&users).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		out := make([]userView, 0, len(users))
		for _, u := range users {
			out = append(out, toUserView(u))
		}
		respondJSON(w, out)
	}
}

func CreateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string   `json:"username"`
			Password string   `json:"password"`
			Roles    []string `json:"roles"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Username = strings.ToLower(strings.TrimSpace(req.Username))
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username/password required", http.StatusBadRequest)
			return
		}
		if len(req.Roles) == 0 {
			req.Roles = []string{auth.RoleLabAssistant}
		}
		roles, err := lookupRoles(db.WithContext(r.Context()), req.Roles)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		u := models.User{Username: req.Username, PasswordHash: hash, IsActive: true, Roles: roles, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if err := db.WithContext(r.Context()).Create(&u).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "user"))
			return
		}
		lg.Infow("user created", "user_id", u.ID, "username", u.Username, "roles", req.Roles, "by", auth.Subject(r.Context()))
		respondStatus(w, http.StatusCreated, toUserView(u))
	}
}

func UpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			IsActive *bool    `json:"is_active"`
			Password *string  `json:"password"`
			Roles    []string `json:"roles"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx := r.Context()
		var u models.User
		if err := db.WithContext(ctx).Preload("Roles").First(&u, "id = ?", id).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "user"))
			return
		}
		revoke := false
		if req.IsActive != nil {
			if u.IsActive && !*req.IsActive {
				revoke = true
			}
			u.IsActive = *req.IsActive
		}
		if req.Password != nil && *req.Password != "" {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			u.PasswordHash = hash
			revoke = true
		}
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if req.Roles != nil {
				roles, err := lookupRoles(tx, req.Roles)
				if err != nil {
					return err
				}
				if err := tx.Model(&u).Association("Roles").Replace(roles); err != nil {
					return err
				}
				u.Roles = roles
				revoke = true
			}
			u.UpdatedAt = time.Now()
			if err := tx.Omit("Roles").Save(&u).Error; err != nil {
				return err
			}
			if revoke {
				return auth.RevokeUserSessions(ctx, tx, u.ID)
			}
			return nil
		})
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, toUserView(u))
	}
}

// DeleteUser removes an account. Reports it submitted or approved keep their
// history with the actor reference cleared.
func DeleteUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ctx := r.Context()
		if id == auth.Subject(ctx) {
			http.Error(w, "cannot delete yourself", http.StatusBadRequest)
			return
		}
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			u := models.User{ID: id}
			if err := tx.Model(&u).Association("Roles").Clear(); err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
				return err
			}
			res := tx.Delete(&models.User{}, "id = ?", id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.NotFound("user")
			}
			return nil
		})
		if err != nil {
			respondError(w, lg, err)
			return
		}
		lg.Infow("user deleted", "user_id", id, "by", auth.Subject(ctx))
		respondJSON(w, map[string]any{"deleted": true})
	}
}
