package handlers

import (
	"net/http"

	"labportal/internal/auth"
	"labportal/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MyLogs returns recent audit logs. Regular users see their own entries;
// managers can pass ?all=1 to see everyone's, and ?report_id= narrows to one
// lab report.
func MyLogs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.WithContext(r.Context()).Order("created_at desc, id desc").Limit(200)
		all := r.URL.Query().Get("all") == "1"
		if !all || !auth.FromContext(r.Context()).HasRole(auth.RoleManager) {
			q = q.Where("user_id = ?", auth.Subject(r.Context()))
		}
		if rid := r.URL.Query().Get("report_id"); rid != "" {
			q = q.Where("report_id = ?", rid)
		}
		logs := []models.AuditLog{}
		if err := q.Find(&logs).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, logs)
	}
}
