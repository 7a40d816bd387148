package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unclebandit/anniversary-reminder/internal/handler"
)

// RouterConfig holds what NewRouter needs besides the controllers.
type RouterConfig struct {
	AdminSecret string
	CORSOrigins []string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

func NewRouter(c *ReminderController, h *handler.RecordHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", SecretHeader},
		MaxAge:         300,
	}))

	r.Get("/health", c.Health)

	// Record routes
	r.Get("/records", c.ListRecords)
	r.Post("/records", c.CreateRecord)
	r.Put("/records/{id}", c.UpdateRecord)
	r.Get("/records/{id}", h.GetRecordWithHistory)

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(RequireSecret(cfg.AdminSecret))
		r.Get("/records/{id}/preview", c.Preview)
		r.Get("/emails/sent", c.ListSent)
		r.Post("/admin/run-catchup", c.RunCatchUp)
		r.Post("/admin/send-now/{id}", c.SendNow)
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	return r
}
