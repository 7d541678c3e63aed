package schema

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"labportal/internal/apperr"
	"labportal/internal/models"

	"github.com/shopspring/decimal"
)

const maxValueLength = 255

// Value is one submitted (parameter, value) pair.
type Value struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
}

// ValueField is the request field name reported for problems with the value
// of parameterID.
func ValueField(parameterID string) string {
	return "parameter_values[" + parameterID + "]"
}

// Validate checks a complete value set against a product's parameters.
// Malformed input (blank or repeated parameter references) is a validation
// error; values that do not satisfy the schema are an integrity error. All
// problems are reported together.
func Validate(params []models.ProductParameter, values []Value) error {
	byID := make(map[string]models.ProductParameter, len(params))
	for _, p := range params {
		byID[p.ID] = p
	}

	malformed := apperr.FieldErrors{}
	seen := make(map[string]bool, len(values))
	for i, v := range values {
		id := strings.TrimSpace(v.Parameter)
		switch {
		case id == "":
			malformed.Add("parameter_values", "entry "+strconv.Itoa(i)+" has no parameter")
		case seen[id]:
			malformed.Add(ValueField(id), "supplied more than once")
		}
		seen[id] = true
	}
	if len(malformed) > 0 {
		return apperr.Validation("invalid parameter values", malformed)
	}

	problems := apperr.FieldErrors{}
	supplied := make(map[string]bool, len(values))
	for _, v := range values {
		id := strings.TrimSpace(v.Parameter)
		p, ok := byID[id]
		if !ok {
			problems.Add(ValueField(id), "parameter does not belong to the report's product")
			continue
		}
		supplied[id] = strings.TrimSpace(v.Value) != ""
		if reason := CheckValue(p, v.Value); reason != "" {
			problems.Add(ValueField(id), reason)
		}
	}
	for _, p := range params {
		if p.Required && !supplied[p.ID] {
			problems.Add(ValueField(p.ID), p.Name+" is required")
		}
	}
	if len(problems) > 0 {
		return apperr.Integrity("parameter values do not match the product schema", problems)
	}
	return nil
}

// CheckValue returns why raw is not acceptable for p, or "" when it is.
// Blank values pass here; whether they are allowed is decided by Required.
func CheckValue(p models.ProductParameter, raw string) string {
	if utf8.RuneCountInString(raw) > maxValueLength {
		return "must be at most 255 characters"
	}
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	switch p.Type {
	case models.ParameterNumber:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return "must be a number"
		}
		if p.MinValue != nil && d.LessThan(decimal.NewFromFloat(*p.MinValue)) {
			return "must be at least " + decimal.NewFromFloat(*p.MinValue).String()
		}
		if p.MaxValue != nil && d.GreaterThan(decimal.NewFromFloat(*p.MaxValue)) {
			return "must be at most " + decimal.NewFromFloat(*p.MaxValue).String()
		}
	case models.ParameterDropdown:
		if !p.Options.Contains(v) {
			return "must be one of " + strings.Join(p.Options, ", ")
		}
	case models.ParameterBoolean:
		if _, ok := ParseBool(v); !ok {
			return "must be true or false"
		}
	}
	return ""
}

// ParseBool accepts the boolean spellings lab staff commonly enter.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}
