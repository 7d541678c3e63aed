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

type productReq struct {
	ProductID *string `json:"product_id"`
	Name      *string `json:"name"`
	Plant     *string `json:"plant"`
}

// apply copies the supplied fields onto p and reports what is wrong with the
// result.
func (req productReq) apply(p *models.Product) apperr.FieldErrors {
	fields := apperr.FieldErrors{}
	if req.ProductID != nil {
		p.ProductID = strings.TrimSpace(*req.ProductID)
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Plant != nil {
		p.PlantID = strings.TrimSpace(*req.Plant)
	}
	switch {
	case p.ProductID == "":
		fields.Add("product_id", "this field is required")
	case utf8.RuneCountInString(p.ProductID) > 50:
		fields.Add("product_id", "must be at most 50 characters")
	}
	switch {
	case p.Name == "":
		fields.Add("name", "this field is required")
	case utf8.RuneCountInString(p.Name) > 100:
		fields.Add("name", "must be at most 100 characters")
	}
	if p.PlantID == "" {
		fields.Add("plant", "this field is required")
	}
	return fields
}

func plantExists(db *gorm.DB, id string) error {
	var n int64
	if err := db.Model(&models.Plant{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFoundField("plant", "plant")
	}
	return nil
}

func CreateProduct(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req productReq
		if !decodeJSON(w, r, &req) {
			return
		}
		p := models.Product{CreatedAt: time.Now()}
		if fields := req.apply(&p); len(fields) > 0 {
			respondError(w, lg, apperr.Validation("invalid product", fields))
			return
		}
		tx := db.WithContext(r.Context())
		if err := plantExists(tx, p.PlantID); err != nil {
			respondError(w, lg, err)
			return
		}
		if err := tx.Omit("Plant").Create(&p).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "product"))
			return
		}
		lg.Infow("product created", "product_id", p.ID, "code", p.ProductID)
		respondStatus(w, http.StatusCreated, p)
	}
}

// ListProducts returns products ordered by name, optionally narrowed to one
// plant with ?plant_id=.
func ListProducts(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.WithContext(r.Context()).Order("name, id")
		if pid := r.URL.Query().Get("plant_id"); pid != "" {
			q = q.Where("plant_id = ?", pid)
		}
		ps := []models.Product{}
		if err := q.Find(&ps).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, ps)
	}
}

func GetProduct(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p models.Product
		if err := db.WithContext(r.Context()).First(&p, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "product"))
			return
		}
		respondJSON(w, p)
	}
}

func UpdateProduct(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req productReq
		if !decodeJSON(w, r, &req) {
			return
		}
		tx := db.WithContext(r.Context())
		var p models.Product
		if err := tx.First(&p, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "product"))
			return
		}
		if fields := req.apply(&p); len(fields) > 0 {
			respondError(w, lg, apperr.Validation("invalid product", fields))
			return
		}
		if req.Plant != nil {
			if err := plantExists(tx, p.PlantID); err != nil {
				respondError(w, lg, err)
				return
			}
		}
		if err := tx.Omit("Plant").Save(&p).Error; err != nil {
			respondError(w, lg, apperr.FromDB(err, "product"))
			return
		}
		respondJSON(w, p)
	}
}

// DeleteProduct removes a product; its parameters and lab reports cascade.
func DeleteProduct(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		res := db.WithContext(r.Context()).Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			respondError(w, lg, apperr.FromDB(res.Error, "product"))
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, lg, apperr.NotFound("product"))
			return
		}
		lg.Infow("product deleted", "product_id", id)
		respondJSON(w, map[string]any{"deleted": true})
	}
}
