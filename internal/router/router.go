package router

import (
	"log"

	"cloud.google.com/go/firestore"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/timiebi/alertos/backend/internal/handlers"
	"github.com/timiebi/alertos/backend/internal/middleware"
	"github.com/timiebi/alertos/backend/internal/models"
	"github.com/timiebi/alertos/backend/internal/repositories"
	"github.com/timiebi/alertos/backend/pkg/config"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, cfg *config.Config, pgdb *gorm.DB, mgClient *mongo.Client, firestoreClient *firestore.Client, firebaseAuthClient *auth.Client) {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	profileRepo := repositories.NewFirestoreProfileRepository(firestoreClient)
	requestRepo := repositories.NewFirestoreRequestRepository(firestoreClient)
	alertRepo := repositories.NewFirestoreAlertRepository(firestoreClient)
	trailRepo := repositories.NewMongoTrailRepository(mgClient.Database("alertos"))
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, profileRepo, firebaseAuthClient, cfg.JWTSecret)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// Profile routes
	profileHandler := handlers.NewProfileHandler(profileRepo)
	profileHandler.RegisterProfileRoutes(api)
	log.Println("Profile routes configured.")

	// Roster routes
	rosterHandler := handlers.NewRosterHandler(profileRepo, requestRepo)
	rosterHandler.RegisterRosterRoutes(api)
	log.Println("Roster routes configured.")

	// Alert routes
	alertHandler := handlers.NewAlertHandler(alertRepo, profileRepo, trailRepo)
	alertHandler.RegisterAlertRoutes(api)
	log.Println("Alert routes configured.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	// Realtime stream
	streamHandler := handlers.NewStreamHandler(alertRepo, profileRepo, trailRepo, notificationRepo)
	streamHandler.RegisterStreamRoutes(api)
	log.Println("Stream route configured.")

	log.Println("All routes configured.")
}
