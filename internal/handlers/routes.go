package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/explore-metroplex/metroplex-api/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func RegisterRoutes(
	r *chi.Mux,
	authHandler *auth.AuthHandler,
	tourHandler *TourHandler,
	reservationHandler *ReservationHandler,
	feedbackHandler *FeedbackHandler,
	userHandler *UserHandler,
) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Initialize Huma API
	config := huma.DefaultConfig("Explore Metroplex API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	api := humachi.New(r, config)

	secured := func(o *huma.Operation) {
		o.Security = []map[string][]string{{"bearerAuth": {}}}
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Identity
	huma.Post(api, "/register", authHandler.HandleRegister)
	huma.Post(api, "/login", authHandler.HandleLogin)
	huma.Get(api, "/token", authHandler.HandleRefresh)
	huma.Delete(api, "/logout", authHandler.HandleLogout)
	huma.Get(api, "/users/me", authHandler.HandleMe, secured)
	huma.Patch(api, "/users/me/password", authHandler.HandleUpdatePassword, secured)

	// Users
	huma.Get(api, "/users", userHandler.HandleList, secured)
	huma.Patch(api, "/users/{id}", userHandler.HandleUpdate, secured)
	huma.Delete(api, "/users/{id}", userHandler.HandleDelete, secured)

	// Tour catalog
	huma.Get(api, "/tours", tourHandler.HandleList)
	huma.Get(api, "/tours/{id}", tourHandler.HandleGet)
	huma.Post(api, "/tours", tourHandler.HandleCreate, secured)
	huma.Patch(api, "/tours/{id}", tourHandler.HandleUpdate, secured)
	huma.Delete(api, "/tours/{id}", tourHandler.HandleDelete, secured)

	// Reservations and feedback
	huma.Post(api, "/tours/{id}/reservations", reservationHandler.HandleCreate, secured)
	huma.Get(api, "/reservations", reservationHandler.HandleList, secured)
	huma.Patch(api, "/reservations/{id}/cancel", reservationHandler.HandleCancel, secured)
	huma.Post(api, "/tours/{id}/feedback", feedbackHandler.HandleCreate, secured)
}
