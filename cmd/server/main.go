package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/explore-metroplex/metroplex-api/internal/auth"
	"github.com/explore-metroplex/metroplex-api/internal/cache"
	"github.com/explore-metroplex/metroplex-api/internal/config"
	"github.com/explore-metroplex/metroplex-api/internal/database"
	"github.com/explore-metroplex/metroplex-api/internal/handlers"
	"github.com/explore-metroplex/metroplex-api/internal/notifier"
	"github.com/explore-metroplex/metroplex-api/internal/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	// Connect to Database
	db := database.Connect(cfg)

	// Object storage with an optional redis cache for signed URLs
	urls := cache.NewURLCache(cfg.RedisAddr)
	store, err := storage.NewS3Store(context.Background(), cfg, urls)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	// Optional Discord notifications
	var n notifier.Notifier
	discordNotifier, err := notifier.NewDiscordNotifier(cfg.DiscordBotToken, cfg.DiscordChannelID)
	if err != nil {
		log.Printf("Discord notifier not initialized: %v", err)
	} else {
		n = discordNotifier
	}

	// Initialize Handlers
	authHandler := auth.NewAuthHandler(cfg, db)
	tourHandler := handlers.NewTourHandler(db, store, authHandler)
	reservationHandler := handlers.NewReservationHandler(db, store, n, authHandler)
	feedbackHandler := handlers.NewFeedbackHandler(db, authHandler)
	userHandler := handlers.NewUserHandler(db, authHandler)

	// Initialize Router
	r := chi.NewRouter()

	// Register Routes
	handlers.RegisterRoutes(r, authHandler, tourHandler, reservationHandler, feedbackHandler, userHandler)

	// Start Server
	log.Printf("Starting server on port %s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
