package httpserver

import (
	"net/http"

	"labportal/internal/auth"
	"labportal/internal/httpserver/handlers"
	"labportal/internal/services/labreport"
	"labportal/internal/services/schema"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, lg *zap.SugaredLogger, tokens *auth.Tokens, opts ...labreport.Option) http.Handler {
	store := schema.NewStore(db, lg.Named("schema"))
	engine := labreport.NewEngine(db, store, lg.Named("labreport"), opts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, handlers.RequestLogger(lg.Named("http")))
	r.Post("/v1/auth/login", handlers.Login(db, tokens, lg))
	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db, tokens))
		protected.Get("/v1/me", handlers.Me(db, lg))
		protected.Post("/v1/auth/logout", handlers.Logout(db, lg))
		protected.Post("/v1/auth/password", handlers.ChangePassword(db, lg))

		protected.Get("/v1/plants", handlers.ListPlants(db, lg))
		protected.Get("/v1/products", handlers.ListProducts(db, lg))
		protected.Get("/v1/products/{id}", handlers.GetProduct(db, lg))
		protected.Get("/v1/products/{id}/parameters", handlers.ListParameters(store, lg))
		protected.Get("/v1/parameters", handlers.ListParameters(store, lg))
		protected.Get("/v1/parameters/{id}", handlers.GetParameter(store, lg))

		protected.Group(func(manager chi.Router) {
			manager.Use(auth.RequireRole(auth.RoleManager))
			manager.Get("/v1/admin/users", handlers.ListUsers(db, lg))
			manager.Post("/v1/admin/users", handlers.CreateUser(db, lg))
			manager.Patch("/v1/admin/users/{id}", handlers.UpdateUser(db, lg))
			manager.Delete("/v1/admin/users/{id}", handlers.DeleteUser(db, lg))

			manager.Post("/v1/plants", handlers.CreatePlant(db, lg))
			manager.Patch("/v1/plants/{id}", handlers.UpdatePlant(db, lg))
			manager.Delete("/v1/plants/{id}", handlers.DeletePlant(db, lg))
			manager.Post("/v1/products", handlers.CreateProduct(db, lg))
			manager.Patch("/v1/products/{id}", handlers.UpdateProduct(db, lg))
			manager.Delete("/v1/products/{id}", handlers.DeleteProduct(db, lg))
			manager.Post("/v1/parameters", handlers.CreateParameter(store, lg))
			manager.Patch("/v1/parameters/{id}", handlers.UpdateParameter(store, lg))
			manager.Delete("/v1/parameters/{id}", handlers.DeleteParameter(store, lg))
		})

		protected.Get("/v1/lab-reports", handlers.ListReports(engine, lg))
		protected.Post("/v1/lab-reports", handlers.CreateReport(engine, lg))
		protected.Get("/v1/lab-reports/summary", handlers.ReportSummary(engine, lg))
		protected.Get("/v1/lab-reports/export", handlers.ExportReports(engine, lg))
		protected.Get("/v1/lab-reports/{id}", handlers.GetReport(engine, lg))
		protected.Patch("/v1/lab-reports/{id}", handlers.UpdateReport(engine, lg))
		protected.Delete("/v1/lab-reports/{id}", handlers.DeleteReport(engine, lg))
		protected.Get("/v1/lab-reports/{id}/history", handlers.ReportHistory(engine, lg))

		protected.Get("/v1/logs", handlers.MyLogs(db, lg))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
