package handlers

import (
	"net/http"

	"labportal/internal/auth"
	"labportal/internal/models"
	"labportal/internal/services/labreport"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func reportFilter(r *http.Request) (labreport.Filter, error) {
	q := r.URL.Query()
	f := labreport.Filter{
		Status:    models.ReportStatus(q.Get("status")),
		ProductID: q.Get("product_id"),
	}
	var err error
	if f.Page, err = queryInt(r, "page"); err != nil {
		return f, err
	}
	if f.PageSize, err = queryInt(r, "page_size"); err != nil {
		return f, err
	}
	if f.Page > 0 && f.PageSize == 0 {
		f.PageSize = 50
	}
	return f, nil
}

func ListReports(engine *labreport.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := reportFilter(r)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		page, err := engine.List(r.Context(), f)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, page)
	}
}

func CreateReport(engine *labreport.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req labreport.CreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		v, err := engine.Create(r.Context(), auth.ActorFrom(r.Context()), req)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondStatus(w, http.StatusCreated, v)
	}
}

func GetReport(engine *labreport.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := engine.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, v)
	}
}

func UpdateReport(engine *labreport.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch labreport.Patch
		if !decodeJSON(w, r, &patch) {
			return
		}
		v, err := engine.Update(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id"), patch)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, v)
	}
}

func DeleteReport(engine *labreport.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Delete(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
			respondError(w, lg, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ReportHistory(engine *labreport.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := engine.History(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, h)
	}
}

func ReportSummary(engine *labreport.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := engine.Summarize(r.Context(), r.URL.Query().Get("product_id"))
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, s)
	}
}

// ExportReports streams the filtered reports as an xlsx attachment.
func ExportReports(engine *labreport.Engine, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := reportFilter(r)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		x, name, err := engine.Export(r.Context(), f)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		defer x.Close()
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+name)
		if err := x.Write(w); err != nil {
			lg.Errorw("export write failed", "error", err)
		}
	}
}
