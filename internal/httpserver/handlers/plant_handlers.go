package handlers

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"labportal/internal/apperr"
	"labportal/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type plantReq struct {
	Name string `json:"name"`
}

func (req plantReq) check() (string, error) {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return "", apperr.Validation("invalid plant", apperr.FieldErrors{"name": "this field is required"})
	case utf8.RuneCountInString(name) > 100:
		return "", apperr.Validation("invalid plant", apperr.FieldErrors{"name": "must be at most 100 characters"})
	}
	return name, nil
}

func CreatePlant(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req plantReq
		if !decodeJSON(w, r, &req) {
			return
		}
		name, err := req.check()
		if err != nil {
			respondError(w, lg, err)
			return
		}
		p := models.Plant{Name: name, CreatedAt: time.Now()}
		if err := db.WithContext(r.Context()).Create(&p).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "plant"))
			return
		}
		lg.Infow("plant created", "plant_id", p.ID, "name", p.Name)
		respondStatus(w, http.StatusCreated, p)
	}
}

func ListPlants(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ps := []models.Plant{}
		if err := db.WithContext(r.Context()).Order("name").Find(&ps).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, ps)
	}
}

func UpdatePlant(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req plantReq
		if !decodeJSON(w, r, &req) {
			return
		}
		name, err := req.check()
		if err != nil {
			respondError(w, lg, err)
			return
		}
		var p models.Plant
		if err := db.WithContext(r.Context()).First(&p, "id = ?", id).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "plant"))
			return
		}
		p.Name = name
		if err := db.WithContext(r.Context()).Model(&p).Update("name", name).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "plant"))
			return
		}
		respondJSON(w, p)
	}
}

// DeletePlant removes a plant together with its products, their parameters
// and reports.
func DeletePlant(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		res := db.WithContext(r.Context()).Delete(&models.Plant{}, "id = ?", id)
		if res.Error != nil {
			respondError(w, lg, apperr.FromDB(res.Error, "plant"))
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, lg, apperr.NotFound("plant"))
			return
		}
		lg.Infow("plant deleted", "plant_id", id)
		respondJSON(w, map[string]any{"deleted": true})
	}
}
