package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/subtrans/backend/internal/api/handlers"
	"github.com/subtrans/backend/internal/api/middleware"
	"github.com/subtrans/backend/internal/auth"
	"github.com/subtrans/backend/internal/config"
	"github.com/subtrans/backend/internal/db"
	"github.com/subtrans/backend/internal/db/models"
	"github.com/subtrans/backend/internal/job"
)

const maxJSONBody = 1 << 20

// Deps are the services the HTTP API is built on
type Deps struct {
	DB          *db.Database
	JWT         *auth.JWTService
	Config      *config.Config
	Queue       *job.JobQueue
	ModelLister handlers.ModelLister
	Logger      *zap.SugaredLogger

	// Done stops background goroutines owned by the router
	Done <-chan struct{}
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.CORS(d.Config.CORSOrigins))

	loginLimiter := middleware.NewRateLimiter(10, time.Minute, d.Done)

	// Handlers
	authHandler := handlers.NewAuthHandler(d.DB, d.JWT)
	filesHandler := handlers.NewFilesHandler(d.Config.MediaPath)
	subtitleHandler := handlers.NewSubtitleHandler(d.Config.MediaPath, d.DB, d.Queue, job.TranslateParams{
		Engine:      d.Config.Engine,
		TargetLang:  d.Config.TargetLang,
		SourceLang:  d.Config.SourceLang,
		BatchSize:   d.Config.BatchSize,
		Concurrency: d.Config.BatchConcurrency,
	})
	jobHandler := handlers.NewJobHandler(d.Queue, d.DB)
	settingsHandler := handlers.NewSettingsHandler(d.DB)
	presetsHandler := handlers.NewPresetsHandler(d.DB)
	modelsHandler := handlers.NewGeminiModelsHandler(d.ModelLister)
	adminHandler := handlers.NewAdminHandler(d.DB, d.Queue, loginLimiter)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(maxJSONBody))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Auth (public)
		r.With(loginLimiter.Handler).Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.JWT))

			r.Get("/auth/me", authHandler.Me)

			// Files
			r.Get("/files/tree", filesHandler.GetTree)
			r.Get("/files/tree/*", filesHandler.GetTree)
			r.Get("/files/search", filesHandler.Search)

			// Subtitles
			r.Get("/subtitle/content/*", subtitleHandler.ServeSubtitle)
			r.Get("/subtitle/cues/*", subtitleHandler.GetCues)

			// Jobs
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Get("/jobs/{id}/batches", jobHandler.GetBatches)

			// Presets
			r.Get("/presets", presetsHandler.ListPresets)

			// Editors can translate and manage their runs
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin, models.RoleEditor))

				r.Post("/subtitle/translate/*", subtitleHandler.TranslateSubtitle)
				r.Delete("/jobs/{id}", jobHandler.CancelJob)
				r.Post("/jobs/{id}/retry", jobHandler.RetryJob)

				r.Post("/presets", presetsHandler.CreatePreset)
				r.Put("/presets/{id}", presetsHandler.UpdatePreset)
				r.Delete("/presets/{id}", presetsHandler.DeletePreset)
			})

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))

				r.Get("/settings", settingsHandler.GetSettings)
				r.Put("/settings", settingsHandler.UpdateSettings)
				r.Get("/settings/gemini-models", modelsHandler.ListModels)

				r.Get("/admin/users", adminHandler.ListUsers)
				r.Post("/admin/users", adminHandler.CreateUser)
				r.Put("/admin/users/{id}", adminHandler.UpdateUser)
				r.Delete("/admin/users/{id}", adminHandler.DeleteUser)
				r.Get("/admin/stats", adminHandler.DashboardStats)
				r.Get("/admin/ratelimit", adminHandler.RateLimitStatus)
				r.Delete("/admin/ratelimit", adminHandler.ClearRateLimit)
			})
		})
	})

	return r
}
