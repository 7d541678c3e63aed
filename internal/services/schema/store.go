// Package schema is the authoritative source of per-product parameter
// definitions and checks submitted report values against them.
package schema

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"labportal/internal/apperr"
	"labportal/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewStore(db *gorm.DB, lg *zap.SugaredLogger) *Store {
	return &Store{db: db, lg: lg}
}

// WithTx returns a Store bound to an open transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, lg: s.lg}
}

// ParametersFor returns every parameter currently attached to productID in
// definition order. An unknown product or one without parameters yields an
// empty slice.
func (s *Store) ParametersFor(ctx context.Context, productID string) ([]models.ProductParameter, error) {
	params := []models.ProductParameter{}
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at, id").
		Find(&params).Error
	if err != nil {
		return nil, apperr.FromDB(err, "parameters")
	}
	return params, nil
}

// List returns all parameters, or only productID's when it is non-empty.
func (s *Store) List(ctx context.Context, productID string) ([]models.ProductParameter, error) {
	if productID != "" {
		return s.ParametersFor(ctx, productID)
	}
	params := []models.ProductParameter{}
	if err := s.db.WithContext(ctx).Order("product_id, created_at, id").Find(&params).Error; err != nil {
		return nil, apperr.FromDB(err, "parameters")
	}
	return params, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.ProductParameter, error) {
	var p models.ProductParameter
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "parameter")
	}
	return &p, nil
}

// Definition is the writable shape of a parameter. Required defaults to true
// when omitted.
type Definition struct {
	Name     string               `json:"name"`
	Type     models.ParameterType `json:"type"`
	Unit     *string              `json:"unit"`
	Required *bool                `json:"required"`
	MinValue *float64             `json:"min_value"`
	MaxValue *float64             `json:"max_value"`
	Options  []string             `json:"options"`
}

// Define attaches a new parameter to productID.
func (s *Store) Define(ctx context.Context, productID string, def Definition) (*models.ProductParameter, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, apperr.Validation("invalid parameter", apperr.FieldErrors{"product": "this field is required"})
	}
	var product models.Product
	if err := s.db.WithContext(ctx).Select("id").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundField("product", "product")
		}
		return nil, apperr.FromDB(err, "product")
	}

	p := models.ProductParameter{
		ProductID: productID,
		Name:      strings.TrimSpace(def.Name),
		Type:      def.Type,
		Unit:      trimOptional(def.Unit),
		Required:  true,
		MinValue:  def.MinValue,
		MaxValue:  def.MaxValue,
	}
	if p.Type == "" {
		p.Type = models.ParameterText
	}
	if def.Required != nil {
		p.Required = *def.Required
	}
	if def.Options != nil {
		p.Options = trimOptions(def.Options)
	}
	if fields := CheckDefinition(p); len(fields) > 0 {
		return nil, apperr.Validation("invalid parameter", fields)
	}
	if err := s.db.WithContext(ctx).Omit("Product").Create(&p).Error; err != nil {
		return nil, apperr.FromDB(err, "parameter")
	}
	s.lg.Infow("parameter defined", "parameter_id", p.ID, "product_id", productID, "name", p.Name, "type", p.Type)
	return &p, nil
}

// DefinitionPatch carries a partial update. Unit, MinValue, MaxValue and
// Options distinguish "absent" from "set to null" through the Set flags.
type DefinitionPatch struct {
	Name        *string
	Type        *models.ParameterType
	Required    *bool
	Unit        *string
	UnitSet     bool
	MinValue    *float64
	MinValueSet bool
	MaxValue    *float64
	MaxValueSet bool
	Options     []string
	OptionsSet  bool
}

// Update applies patch to the parameter. Existing report values are not
// re-validated against the new definition.
func (s *Store) Update(ctx context.Context, id string, patch DefinitionPatch) (*models.ProductParameter, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.Required != nil {
		p.Required = *patch.Required
	}
	if patch.UnitSet {
		p.Unit = trimOptional(patch.Unit)
	}
	if patch.MinValueSet {
		p.MinValue = patch.MinValue
	}
	if patch.MaxValueSet {
		p.MaxValue = patch.MaxValue
	}
	if patch.OptionsSet {
		p.Options = trimOptions(patch.Options)
	}
	if fields := CheckDefinition(*p); len(fields) > 0 {
		return nil, apperr.Validation("invalid parameter", fields)
	}
	if err := s.db.WithContext(ctx).Omit("Product").Save(p).Error; err != nil {
		return nil, apperr.FromDB(err, "parameter")
	}
	s.lg.Infow("parameter updated", "parameter_id", p.ID, "product_id", p.ProductID)
	return p, nil
}

// Delete removes the parameter; stored report values for it cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.ProductParameter{}, "id = ?", id)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "parameter")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("parameter")
	}
	s.lg.Infow("parameter deleted", "parameter_id", id)
	return nil
}

// CheckDefinition returns the field problems of a parameter definition.
func CheckDefinition(p models.ProductParameter) apperr.FieldErrors {
	fields := apperr.FieldErrors{}
	if p.Name == "" {
		fields.Add("name", "this field is required")
	} else if utf8.RuneCountInString(p.Name) > 100 {
		fields.Add("name", "must be at most 100 characters")
	}
	if !p.Type.Valid() {
		fields.Add("type", `must be one of "number", "text", "dropdown", "boolean"`)
	}
	if p.Unit != nil && utf8.RuneCountInString(*p.Unit) > 20 {
		fields.Add("unit", "must be at most 20 characters")
	}
	if p.Type != models.ParameterNumber {
		if p.MinValue != nil {
			fields.Add("min_value", "only allowed for number parameters")
		}
		if p.MaxValue != nil {
			fields.Add("max_value", "only allowed for number parameters")
		}
	} else if p.MinValue != nil && p.MaxValue != nil && *p.MinValue > *p.MaxValue {
		fields.Add("min_value", "must not exceed max_value")
	}
	if p.Type == models.ParameterDropdown {
		if len(p.Options) == 0 {
			fields.Add("options", "dropdown parameters need at least one option")
		}
		seen := map[string]bool{}
		for _, o := range p.Options {
			o = strings.TrimSpace(o)
			if o == "" {
				fields.Add("options", "options must not be blank")
			}
			if seen[o] {
				fields.Add("options", "duplicate option "+o)
			}
			seen[o] = true
		}
	} else if len(p.Options) > 0 {
		fields.Add("options", "only allowed for dropdown parameters")
	}
	return fields
}

// trimOptions strips surrounding spaces so options compare equal to the
// trimmed values submitted on reports.
func trimOptions(opts []string) models.StringList {
	if opts == nil {
		return nil
	}
	out := make(models.StringList, len(opts))
	for i, o := range opts {
		out[i] = strings.TrimSpace(o)
	}
	return out
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
