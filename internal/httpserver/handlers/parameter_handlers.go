package handlers

import (
	"encoding/json"
	"net/http"

	"labportal/internal/apperr"
	"labportal/internal/services/schema"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type parameterReq struct {
	Product string `json:"product"`
	schema.Definition
}

func CreateParameter(store *schema.Store, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req parameterReq
		if !decodeJSON(w, r, &req) {
			return
		}
		p, err := store.Define(r.Context(), req.Product, req.Definition)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondStatus(w, http.StatusCreated, p)
	}
}

// ListParameters serves both /v1/parameters?product_id= and
// /v1/products/{id}/parameters.
func ListParameters(store *schema.Store, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "id")
		if productID == "" {
			productID = r.URL.Query().Get("product_id")
		}
		ps, err := store.List(r.Context(), productID)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, ps)
	}
}

func GetParameter(store *schema.Store, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, p)
	}
}

func UpdateParameter(store *schema.Store, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		if !decodeJSON(w, r, &raw) {
			return
		}
		patch, err := decodeDefinitionPatch(raw)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		p, err := store.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, p)
	}
}

func DeleteParameter(store *schema.Store, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}

// decodeDefinitionPatch keeps the difference between an omitted key and an
// explicit null for the clearable fields.
func decodeDefinitionPatch(raw map[string]json.RawMessage) (schema.DefinitionPatch, error) {
	var patch schema.DefinitionPatch
	fields := apperr.FieldErrors{}
	decode := func(key string, dst interface{}) bool {
		v, ok := raw[key]
		if !ok {
			return false
		}
		if err := json.Unmarshal(v, dst); err != nil {
			fields.Add(key, "has the wrong type")
		}
		return true
	}
	decode("name", &patch.Name)
	decode("type", &patch.Type)
	decode("required", &patch.Required)
	patch.UnitSet = decode("unit", &patch.Unit)
	patch.MinValueSet = decode("min_value", &patch.MinValue)
	patch.MaxValueSet = decode("max_value", &patch.MaxValue)
	patch.OptionsSet = decode("options", &patch.Options)
	if len(fields) > 0 {
		return patch, apperr.Validation("invalid parameter", fields)
	}
	return patch, nil
}
