package labreport

import (
	"time"

	"labportal/internal/models"
)

// ValueView is a stored value with its parameter's display fields.
type ValueView struct {
	Parameter     string  `json:"parameter"`
	ParameterName string  `json:"parameter_name"`
	Value         string  `json:"value"`
	Unit          *string `json:"unit"`
}

// View is the read representation of a lab report. The *_name and
// *_username fields are derived from foreign keys and never written.
type View struct {
	ID                  string              `json:"id"`
	Product             string              `json:"product"`
	ProductName         string              `json:"product_name"`
	BatchNo             string              `json:"batch_no"`
	SubmittedBy         *string             `json:"submitted_by"`
	SubmittedByUsername *string             `json:"submitted_by_username"`
	SubmittedAt         time.Time           `json:"submitted_at"`
	ApprovedBy          *string             `json:"approved_by"`
	ApprovedByUsername  *string             `json:"approved_by_username"`
	ApprovedAt          *time.Time          `json:"approved_at"`
	Status              models.ReportStatus `json:"status"`
	ParameterValues     []ValueView         `json:"parameter_values"`
}

func newView(r models.LabReport) View {
	v := View{
		ID:              r.ID,
		Product:         r.ProductID,
		BatchNo:         r.BatchNo,
		SubmittedBy:     r.SubmittedByID,
		SubmittedAt:     r.SubmittedAt,
		ApprovedBy:      r.ApprovedByID,
		ApprovedAt:      r.ApprovedAt,
		Status:          r.Status,
		ParameterValues: make([]ValueView, 0, len(r.Values)),
	}
	if r.Product != nil {
		v.ProductName = r.Product.Name
	}
	if r.SubmittedBy != nil {
		name := r.SubmittedBy.Username
		v.SubmittedByUsername = &name
	}
	if r.ApprovedBy != nil {
		name := r.ApprovedBy.Username
		v.ApprovedByUsername = &name
	}
	for _, val := range r.Values {
		vv := ValueView{Parameter: val.ParameterID, Value: val.Value}
		if val.Parameter != nil {
			vv.ParameterName = val.Parameter.Name
			vv.Unit = val.Parameter.Unit
		}
		v.ParameterValues = append(v.ParameterValues, vv)
	}
	return v
}

// HistoryEntry is one recorded status change.
type HistoryEntry struct {
	From          models.ReportStatus `json:"from_status"`
	To            models.ReportStatus `json:"to_status"`
	Actor         *string             `json:"actor"`
	ActorUsername *string             `json:"actor_username"`
	At            time.Time           `json:"at"`
}

// Summary counts reports per status.
type Summary struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}
