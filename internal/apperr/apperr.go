// Package apperr defines the error kinds shared by the service packages and
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrIntegrity    = errors.New("integrity violation")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// FieldErrors maps a request field to the reason it was rejected.
type FieldErrors map[string]string

func (f FieldErrors) Add(field, reason string) {
	if _, ok := f[field]; !ok {
		f[field] = reason
	}
}

// Error carries one of the sentinel kinds plus optional field-level reasons.
type Error struct {
	Kind    error
	Message string
	Fields  FieldErrors
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *Error) Unwrap() error { return e.Kind }

func Validation(msg string, fields FieldErrors) error {
	return &Error{Kind: ErrValidation, Message: msg, Fields: fields}
}

func Integrity(msg string, fields FieldErrors) error {
	return &Error{Kind: ErrIntegrity, Message: msg, Fields: fields}
}

func NotFound(what string) error {
	return &Error{Kind: ErrNotFound, Message: what + " not found"}
}

// NotFoundField reports a dangling reference supplied in field.
func NotFoundField(what, field string) error {
	return &Error{Kind: ErrNotFound, Message: what + " not found", Fields: FieldErrors{field: "does not exist"}}
}

func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// FromDB translates storage errors into error kinds. what names the entity
// for not-found and duplicate messages.
func FromDB(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.As(err, new(*Error)):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Conflict(what + " already exists")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return Integrity(what+" references a missing record", nil)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// FieldsOf returns the field reasons attached to err, if any.
func FieldsOf(err error) FieldErrors {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
