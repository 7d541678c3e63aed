package labreport

import (
	"context"

	"labportal/internal/apperr"
	"labportal/internal/models"

	"gorm.io/gorm"
)

const (
	MaxPageSize = 500
	// MaxPage keeps the computed offset well inside int range.
	MaxPage = 1_000_000
)

// Filter selects reports by exact status and product. PageSize 0 returns
// every matching report.
type Filter struct {
	Status    models.ReportStatus
	ProductID string
	Page      int
	PageSize  int
}

func (f Filter) check() error {
	fields := apperr.FieldErrors{}
	if f.Status != "" && !f.Status.Valid() {
		fields.Add("status", `must be one of "pending", "approved", "rejected"`)
	}
	if f.PageSize < 0 || f.PageSize > MaxPageSize {
		fields.Add("page_size", "must be between 1 and 500")
	}
	if f.Page < 0 || f.Page > MaxPage {
		fields.Add("page", "must be between 1 and 1000000")
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid filter", fields)
	}
	return nil
}

func (f Filter) apply(db *gorm.DB) *gorm.DB {
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.ProductID != "" {
		db = db.Where("product_id = ?", f.ProductID)
	}
	return db
}

// Page is one slice of a filtered listing. Total counts all matches.
type Page struct {
	Results  []View `json:"results"`
	Total    int64  `json:"count"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// List returns the reports matching f, newest submission first.
func (e *Engine) List(ctx context.Context, f Filter) (*Page, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	db := e.db.WithContext(ctx)

	var total int64
	if err := f.apply(db.Model(&models.LabReport{})).Count(&total).Error; err != nil {
		return nil, err
	}

	q := withDisplay(f.apply(db)).Order("submitted_at desc, id")
	page := Page{Total: total}
	if f.PageSize > 0 {
		if f.Page == 0 {
			f.Page = 1
		}
		q = q.Limit(f.PageSize).Offset((f.Page - 1) * f.PageSize)
		page.Page, page.PageSize = f.Page, f.PageSize
	}
	var reports []models.LabReport
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	page.Results = make([]View, 0, len(reports))
	for _, r := range reports {
		page.Results = append(page.Results, newView(r))
	}
	return &page, nil
}

// Summarize counts reports per status, optionally for one product.
func (e *Engine) Summarize(ctx context.Context, productID string) (*Summary, error) {
	var rows []struct {
		Status models.ReportStatus
		N      int64
	}
	q := e.db.WithContext(ctx).Model(&models.LabReport{}).Select("status, count(*) as n").Group("status")
	if productID != "" {
		q = q.Where("product_id = ?", productID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	var s Summary
	for _, r := range rows {
		switch r.Status {
		case models.StatusPending:
			s.Pending = r.N
		case models.StatusApproved:
			s.Approved = r.N
		case models.StatusRejected:
			s.Rejected = r.N
		}
		s.Total += r.N
	}
	return &s, nil
}
