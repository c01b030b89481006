package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Store is the persistence the API reads and writes besides users.
type Store interface {
	db.VehicleCollection
	db.ScheduleCollection
}

// RouterConfig wires the API's dependencies.
type RouterConfig struct {
	Auth   *auth.Service
	Users  db.UserCollection
	Store  Store
	Engine ScheduleService
	Ping   Pinger
	Log    logrus.FieldLogger

	// RateLimit is the number of requests a client may make per minute.
	// Zero disables limiting.
	RateLimit int
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth, cfg.Users, cfg.Log)
	vehicles := NewVehicleHandler(cfg.Store, cfg.Store, cfg.Engine, cfg.Log)
	reminders := NewReminderHandler(cfg.Store, cfg.Engine, cfg.Log)
	authMW := middleware.NewAuthMiddleware(cfg.Auth)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(chimw.Recoverer)

	r.Get("/health", Health(cfg.Ping))

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimit > 0 {
			api.Use(middleware.NewRateLimitMiddleware().RateLimit(cfg.RateLimit, time.Minute))
		}
		api.Use(authMW.Authenticate)

		api.Post("/auth/register", authHandler.Register)
		api.Post("/auth/login", authHandler.Login)
		api.Get("/auth/profile", authHandler.GetProfile)
		api.Put("/auth/profile", authHandler.UpdateProfile)
		api.Post("/auth/password", authHandler.ChangePassword)
		api.Put("/auth/preferences", authHandler.UpdatePreferences)

		api.Route("/vehicles", func(v chi.Router) {
			v.With(authMW.RequirePermission("view_vehicles")).Get("/", vehicles.ListVehicles)
			v.With(authMW.RequirePermission("manage_vehicles")).Post("/", vehicles.CreateVehicle)

			v.Route("/{id}", func(one chi.Router) {
				one.With(authMW.RequirePermission("view_vehicles")).Get("/", vehicles.GetVehicle)
				one.With(authMW.RequirePermission("manage_vehicles")).Delete("/", vehicles.DeleteVehicle)
				one.With(authMW.RequirePermission("manage_vehicles")).Put("/mileage", vehicles.UpdateMileage)
				one.With(authMW.RequirePermission("view_schedule")).Get("/schedule", vehicles.GetSchedule)
				one.With(authMW.RequirePermission("view_schedule")).Get("/history", vehicles.GetHistory)
				one.With(authMW.RequirePermission("complete_service")).Post("/schedule/{entryID}/complete", vehicles.CompleteService)
			})
		})

		api.With(authMW.RequirePermission("view_schedule")).Get("/reminders", reminders.ListDue)
		api.With(authMW.RequireRole(models.RoleManager)).Post("/admin/sweep", reminders.Sweep)
	})

	return r
}
