package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"labportal/internal/apperr"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	respondStatus(w, http.StatusOK, v)
}

func respondStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields apperr.FieldErrors `json:"fields,omitempty"`
}

// respondError maps service error kinds onto HTTP statuses. Unclassified
// errors are logged and reported as 500 without detail.
func respondError(w http.ResponseWriter, lg *zap.SugaredLogger, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, apperr.ErrIntegrity):
		code = http.StatusUnprocessableEntity
	}
	if code == http.StatusInternalServerError {
		lg.Errorw("request failed", "error", err)
		respondStatus(w, code, errorBody{Error: "internal error"})
		return
	}
	body := errorBody{Error: err.Error(), Fields: apperr.FieldsOf(err)}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Error = ae.Message
	}
	respondStatus(w, code, body)
}

// decodeJSON reads the request body into v, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondStatus(w, http.StatusBadRequest, errorBody{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperr.Validation("invalid query", apperr.FieldErrors{name: "must be a non-negative integer"})
	}
	return n, nil
}
