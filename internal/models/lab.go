package models

import (
	"time"

	"labportal/internal/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ParameterType string

const (
	ParameterNumber   ParameterType = "number"
	ParameterText     ParameterType = "text"
	ParameterDropdown ParameterType = "dropdown"
	ParameterBoolean  ParameterType = "boolean"
)

func (t ParameterType) Valid() bool {
	switch t {
	case ParameterNumber, ParameterText, ParameterDropdown, ParameterBoolean:
		return true
	}
	return false
}

type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusApproved ReportStatus = "approved"
	StatusRejected ReportStatus = "rejected"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is an end state of the approval workflow.
func (s ReportStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Plant struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProductID string    `gorm:"uniqueIndex;not null;size:50" json:"product_id"`
	Name      string    `gorm:"not null;size:100" json:"name"`
	PlantID   string    `gorm:"size:36;not null;index" json:"plant"`
	Plant     *Plant    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductParameter is one entry of a product's report schema. MinValue and
// MaxValue only apply to number parameters, Options only to dropdowns.
type ProductParameter struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	ProductID string        `gorm:"size:36;not null;index" json:"product"`
	Product   *Product      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name      string        `gorm:"not null;size:100" json:"name"`
	Type      ParameterType `gorm:"not null;size:20;default:text" json:"type"`
	Unit      *string       `gorm:"size:20" json:"unit"`
	Required  bool          `gorm:"not null" json:"required"`
	MinValue  *float64      `json:"min_value"`
	MaxValue  *float64      `json:"max_value"`
	Options   StringList    `gorm:"type:jsonb" json:"options"`
	CreatedAt time.Time     `json:"created_at"`
}

type LabReport struct {
	ID            string               `gorm:"primaryKey;size:36" json:"id"`
	ProductID     string               `gorm:"size:36;not null;index" json:"product"`
	Product       *Product             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	BatchNo       string               `gorm:"not null;size:50" json:"batch_no"`
	SubmittedByID *string              `gorm:"size:36" json:"submitted_by"`
	SubmittedBy   *User                `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	SubmittedAt   time.Time            `gorm:"not null;index" json:"submitted_at"`
	ApprovedByID  *string              `gorm:"size:36" json:"approved_by"`
	ApprovedBy    *User                `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	ApprovedAt    *time.Time           `json:"approved_at"`
	Status        ReportStatus         `gorm:"not null;size:20;default:pending;index" json:"status"`
	Values        []LabReportParameter `gorm:"foreignKey:LabReportID;constraint:OnDelete:CASCADE" json:"-"`
}

// LabReportParameter holds one measured value. A report stores at most one
// value per parameter.
type LabReportParameter struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	LabReportID string            `gorm:"size:36;not null;uniqueIndex:idx_report_parameter" json:"lab_report"`
	ParameterID string            `gorm:"size:36;not null;uniqueIndex:idx_report_parameter" json:"parameter"`
	Parameter   *ProductParameter `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Value       string            `gorm:"not null;size:255" json:"value"`
	Position    int               `gorm:"not null;default:0" json:"-"`
}

// ReportStatusEvent is an append-only record of a status change, kept so that
// re-stamping approved_by/approved_at never loses earlier decisions.
type ReportStatusEvent struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	LabReportID string       `gorm:"size:36;not null;index" json:"lab_report"`
	LabReport   *LabReport   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	FromStatus  ReportStatus `gorm:"size:20" json:"from_status"`
	ToStatus    ReportStatus `gorm:"not null;size:20" json:"to_status"`
	ActorID     *string      `gorm:"size:36" json:"actor"`
	Actor       *User        `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (p *Plant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *ProductParameter) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (r *LabReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// BeforeCreate refuses a value whose parameter belongs to a different
// product than its report. It runs on the caller's transaction.
func (v *LabReportParameter) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	var n int64
	err := tx.Table("lab_reports AS r").
		Joins("JOIN product_parameters AS p ON p.product_id = r.product_id").
		Where("r.id = ? AND p.id = ?", v.LabReportID, v.ParameterID).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Integrity("parameter does not belong to the report's product",
			apperr.FieldErrors{"parameter_values[" + v.ParameterID + "]": "parameter does not belong to the report's product"})
	}
	return nil
}
