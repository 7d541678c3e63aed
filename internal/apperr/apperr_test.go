package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create report: %w", Integrity("bad values", FieldErrors{"b": "too high", "a": "missing"}))
	assert.True(t, errors.Is(err, ErrIntegrity))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "bad values (a: missing; b: too high)", errors.Unwrap(err).Error())
	assert.Equal(t, FieldErrors{"a": "missing", "b": "too high"}, FieldsOf(err))
}

func TestFromDB(t *testing.T) {
	assert.NoError(t, FromDB(nil, "plant"))
	assert.ErrorIs(t, FromDB(gorm.ErrRecordNotFound, "plant"), ErrNotFound)
	assert.ErrorIs(t, FromDB(gorm.ErrDuplicatedKey, "plant"), ErrConflict)
	assert.ErrorIs(t, FromDB(gorm.ErrForeignKeyViolated, "plant"), ErrIntegrity)

	other := errors.New("connection reset")
	err := FromDB(other, "plant")
	assert.ErrorIs(t, err, other)
	assert.EqualError(t, err, "plant: connection reset")
}

func TestFieldErrorsAddKeepsFirstReason(t *testing.T) {
	f := FieldErrors{}
	f.Add("x", "first")
	f.Add("x", "second")
	assert.Equal(t, "first", f["x"])
}
