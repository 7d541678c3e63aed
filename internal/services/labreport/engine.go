// Package labreport implements lab report submission and the
// pending → approved/rejected review workflow.
package labreport

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"labportal/internal/apperr"
	"labportal/internal/auth"
	"labportal/internal/models"
	"labportal/internal/services/schema"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxBatchNoLength = 50

type Engine struct {
	db           *gorm.DB
	schema       *schema.Store
	lg           *zap.SugaredLogger
	now          func() time.Time
	lockTerminal bool
}

type Option func(*Engine)

// WithClock overrides the time source used for submitted_at/approved_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTerminalLock makes status changes out of approved/rejected fail with
// ErrConflict instead of re-stamping the report.
func WithTerminalLock(lock bool) Option {
	return func(e *Engine) { e.lockTerminal = lock }
}

func NewEngine(db *gorm.DB, store *schema.Store, lg *zap.SugaredLogger, opts ...Option) *Engine {
	e := &Engine{db: db, schema: store, lg: lg, now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(e)
	}
	return e
}

type CreateRequest struct {
	Product         string         `json:"product"`
	BatchNo         string         `json:"batch_no"`
	ParameterValues []schema.Value `json:"parameter_values"`
}

// Patch is a partial update. Nil fields keep their stored value. A non-empty
// ParameterValues replaces the report's whole value set; an empty one leaves
// it untouched. ApprovedBy and ApprovedAt are accepted for wire compatibility
// but never persisted: approval stamps come only from the acting identity.
type Patch struct {
	Product         *string              `json:"product"`
	BatchNo         *string              `json:"batch_no"`
	Status          *models.ReportStatus `json:"status"`
	ApprovedBy      *string              `json:"approved_by"`
	ApprovedAt      *time.Time           `json:"approved_at"`
	ParameterValues []schema.Value       `json:"parameter_values"`
}

// Create validates req against the product's current schema and stores the
// report and its values in one transaction. The report starts pending and is
// stamped with actor as submitter.
func (e *Engine) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (*View, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthorized("authentication required")
	}
	if !actor.HasAnyRole(auth.Submitters...) {
		return nil, apperr.Forbidden("only lab assistants and managers may submit reports")
	}

	fields := apperr.FieldErrors{}
	productID := strings.TrimSpace(req.Product)
	if productID == "" {
		fields.Add("product", "this field is required")
	}
	batchNo := strings.TrimSpace(req.BatchNo)
	checkBatchNo(fields, batchNo)
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid lab report", fields)
	}

	if err := e.productExists(ctx, e.db, productID); err != nil {
		return nil, err
	}
	params, err := e.schema.ParametersFor(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(params, req.ParameterValues); err != nil {
		return nil, err
	}

	now := e.now()
	report := models.LabReport{
		ProductID:     productID,
		BatchNo:       batchNo,
		SubmittedByID: &actor.ID,
		SubmittedAt:   now,
		Status:        models.StatusPending,
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&report).Error; err != nil {
			return apperr.FromDB(err, "lab report")
		}
		if err := insertValues(tx, report.ID, req.ParameterValues); err != nil {
			return err
		}
		if err := recordStatus(tx, report.ID, "", models.StatusPending, actor, now); err != nil {
			return err
		}
		return audit(tx, actor, report.ID, "REPORT_CREATE", map[string]any{
			"product_id": productID, "batch_no": batchNo, "values": len(req.ParameterValues),
		})
	})
	if err != nil {
		return nil, err
	}
	e.lg.Infow("lab report submitted", "report_id", report.ID, "product_id", productID, "batch_no", batchNo, "actor", actor.ID, "values", len(req.ParameterValues))
	return e.Get(ctx, report.ID)
}

// Update merges patch into report id. Moving to approved or rejected stamps
// approved_by/approved_at with actor and the current time, whatever the
// request carried. A supplied value list is validated against the (possibly
// new) product schema and replaces the stored values wholesale. Once a report
// is approved or rejected only approvers may change its status or values.
func (e *Engine) Update(ctx context.Context, actor auth.Actor, id string, patch Patch) (*View, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthorized("authentication required")
	}

	fields := apperr.FieldErrors{}
	var batchNo string
	if patch.BatchNo != nil {
		batchNo = strings.TrimSpace(*patch.BatchNo)
		checkBatchNo(fields, batchNo)
	}
	if patch.Product != nil && strings.TrimSpace(*patch.Product) == "" {
		fields.Add("product", "may not be blank")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		fields.Add("status", `must be one of "pending", "approved", "rejected"`)
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid lab report", fields)
	}
	if patch.Status != nil && patch.Status.Terminal() && !actor.HasAnyRole(auth.Approvers...) {
		return nil, apperr.Forbidden("only supervisors and managers may approve or reject reports")
	}
	if patch.ApprovedBy != nil || patch.ApprovedAt != nil {
		e.lg.Debugw("ignoring client supplied approval stamp", "report_id", id, "actor", actor.ID)
	}
	replace := len(patch.ParameterValues) > 0

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.LabReport
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&report, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "lab report")
		}
		from := report.Status
		now := e.now()
		if from.Terminal() && (patch.Status != nil || replace) && !actor.HasAnyRole(auth.Approvers...) {
			return apperr.Forbidden("only supervisors and managers may reopen or change values of a decided report")
		}
		if patch.Status != nil && e.lockTerminal && from.Terminal() {
			return apperr.Conflict("report is already " + string(from))
		}

		productID := report.ProductID
		if patch.Product != nil {
			productID = strings.TrimSpace(*patch.Product)
		}
		if productID != report.ProductID {
			if err := e.productExists(ctx, tx, productID); err != nil {
				return err
			}
			if !replace {
				var stored int64
				if err := tx.Model(&models.LabReportParameter{}).Where("lab_report_id = ?", id).Count(&stored).Error; err != nil {
					return err
				}
				if stored > 0 {
					return apperr.Integrity("changing the product requires replacing the parameter values",
						apperr.FieldErrors{"parameter_values": "stored values belong to the previous product"})
				}
			}
		}

		if replace {
			params, err := e.schema.WithTx(tx).ParametersFor(ctx, productID)
			if err != nil {
				return err
			}
			if err := schema.Validate(params, patch.ParameterValues); err != nil {
				return err
			}
			if err := tx.Where("lab_report_id = ?", id).Delete(&models.LabReportParameter{}).Error; err != nil {
				return err
			}
		}

		updates := map[string]interface{}{"product_id": productID}
		if patch.BatchNo != nil {
			updates["batch_no"] = batchNo
		}
		if patch.Status != nil {
			updates["status"] = *patch.Status
			if patch.Status.Terminal() {
				updates["approved_by_id"] = actor.ID
				updates["approved_at"] = now
			}
		}
		if err := tx.Model(&models.LabReport{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "lab report")
		}
		// Values go in after the product change so ownership checks see it.
		if replace {
			if err := insertValues(tx, id, patch.ParameterValues); err != nil {
				return err
			}
		}

		if patch.Status != nil && (*patch.Status != from || patch.Status.Terminal()) {
			if err := recordStatus(tx, id, from, *patch.Status, actor, now); err != nil {
				return err
			}
		}
		md := map[string]any{"product_id": productID, "replaced_values": replace}
		action := "REPORT_UPDATE"
		if patch.Status != nil {
			md["from_status"] = from
			md["to_status"] = *patch.Status
			action = "REPORT_STATUS"
		}
		return audit(tx, actor, id, action, md)
	})
	if err != nil {
		return nil, err
	}

	kv := []interface{}{"report_id", id, "actor", actor.ID, "replaced_values", replace}
	if patch.Status != nil {
		kv = append(kv, "status", *patch.Status)
	}
	e.lg.Infow("lab report updated", kv...)
	return e.Get(ctx, id)
}

// Delete removes a report and, through cascades, its values and history.
func (e *Engine) Delete(ctx context.Context, actor auth.Actor, id string) error {
	if !actor.Authenticated() {
		return apperr.Unauthorized("authentication required")
	}
	if !actor.HasAnyRole(auth.RoleManager) {
		return apperr.Forbidden("only managers may delete reports")
	}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lab_report_id = ?", id).Delete(&models.LabReportParameter{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lab_report_id = ?", id).Delete(&models.ReportStatusEvent{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.LabReport{}, "id = ?", id)
		if res.Error != nil {
			return apperr.FromDB(res.Error, "lab report")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("lab report")
		}
		return audit(tx, actor, id, "REPORT_DELETE", map[string]any{})
	})
	if err != nil {
		return err
	}
	e.lg.Infow("lab report deleted", "report_id", id, "actor", actor.ID)
	return nil
}

func (e *Engine) Get(ctx context.Context, id string) (*View, error) {
	var r models.LabReport
	if err := withDisplay(e.db.WithContext(ctx)).First(&r, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "lab report")
	}
	v := newView(r)
	return &v, nil
}

// History lists the status changes of report id, oldest first.
func (e *Engine) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	var count int64
	if err := e.db.WithContext(ctx).Model(&models.LabReport{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperr.NotFound("lab report")
	}
	var events []models.ReportStatusEvent
	if err := e.db.WithContext(ctx).Preload("Actor").
		Where("lab_report_id = ?", id).Order("created_at, id").Find(&events).Error; err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(events))
	for _, ev := range events {
		h := HistoryEntry{From: ev.FromStatus, To: ev.ToStatus, Actor: ev.ActorID, At: ev.CreatedAt}
		if ev.Actor != nil {
			name := ev.Actor.Username
			h.ActorUsername = &name
		}
		out = append(out, h)
	}
	return out, nil
}

func (e *Engine) productExists(ctx context.Context, db *gorm.DB, productID string) error {
	var p models.Product
	err := db.WithContext(ctx).Select("id").First(&p, "id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundField("product", "product")
	}
	return err
}

func checkBatchNo(fields apperr.FieldErrors, batchNo string) {
	switch {
	case batchNo == "":
		fields.Add("batch_no", "this field is required")
	case utf8.RuneCountInString(batchNo) > maxBatchNoLength:
		fields.Add("batch_no", "must be at most 50 characters")
	}
}

func insertValues(tx *gorm.DB, reportID string, values []schema.Value) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]models.LabReportParameter, 0, len(values))
	for i, v := range values {
		rows = append(rows, models.LabReportParameter{
			LabReportID: reportID,
			ParameterID: strings.TrimSpace(v.Parameter),
			Value:       strings.TrimSpace(v.Value),
			Position:    i,
		})
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return apperr.FromDB(err, "parameter value")
	}
	return nil
}

func recordStatus(tx *gorm.DB, reportID string, from, to models.ReportStatus, actor auth.Actor, at time.Time) error {
	ev := models.ReportStatusEvent{LabReportID: reportID, FromStatus: from, ToStatus: to, ActorID: &actor.ID, CreatedAt: at}
	return tx.Omit(clause.Associations).Create(&ev).Error
}

func audit(tx *gorm.DB, actor auth.Actor, reportID, action string, md map[string]any) error {
	md["report_id"] = reportID
	b, err := json.Marshal(md)
	if err != nil {
		return err
	}
	uid, rid := actor.ID, reportID
	return tx.Create(&models.AuditLog{UserID: &uid, ReportID: &rid, Action: action, Metadata: models.JSONB(b)}).Error
}

// withDisplay preloads everything newView reads.
func withDisplay(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Product").
		Preload("SubmittedBy").
		Preload("ApprovedBy").
		Preload("Values", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Values.Parameter")
}
