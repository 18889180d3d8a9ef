package main

import (
	"log"
	"os"
	"time"

	"mindhunt/database"
	"mindhunt/handlers"
	"mindhunt/middleware"
	"mindhunt/realtime"
	"mindhunt/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	validateEnvironment()

	database.InitDB()
	defer database.CloseDB()

	hub := realtime.NewHub()
	scheduler := services.NewHintScheduler(database.GetDB(), hub)
	defer scheduler.Stop()

	handlers.Init(hub, scheduler)

	// Rebuild pending hint timers lost in the restart.
	if err := scheduler.Recover(); err != nil {
		log.Fatalf("Hint scheduler recovery failed: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	corsOrigins := os.Getenv("CORS_ORIGINS")
	if corsOrigins == "" {
		corsOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Use(middleware.RateLimitMiddleware())

	api := app.Group("/api")

	// Auth routes with stricter rate limiting
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.AuthRateLimitMiddleware())
	authGroup.Post("/register", handlers.Register)
	authGroup.Post("/login", handlers.Login)

	userGroup := api.Group("/users")
	userGroup.Use(middleware.AuthMiddleware)
	userGroup.Get("/me", handlers.GetCurrentUser)

	// Team routes
	teamGroup := api.Group("/teams")
	teamGroup.Use(middleware.AuthMiddleware)
	teamGroup.Post("/", handlers.CreateTeam)
	teamGroup.Post("/join", handlers.JoinTeam)
	teamGroup.Get("/mine", handlers.GetMyTeam)

	// Hunt routes
	huntGroup := api.Group("/hunt")
	huntGroup.Get("/", handlers.GetCurrentHunt)
	huntGroup.Get("/leaderboard", handlers.GetLeaderboard)
	huntGroup.Get("/episodes", middleware.AuthMiddleware, handlers.GetEpisodes)
	huntGroup.Get("/episodes/:id/rank", middleware.AuthMiddleware, handlers.GetEpisodeRank)

	// Guess submission, one per user per window
	api.Post("/puzzles/:code/guess",
		middleware.AuthMiddleware,
		middleware.GuessRateLimitMiddleware(),
		handlers.SubmitGuess)

	// Staff routes
	staffGroup := api.Group("/staff")
	staffGroup.Use(middleware.StaffAuthMiddleware)
	staffGroup.Get("/teams", handlers.GetTeams)
	staffGroup.Post("/teams/:id/reset", handlers.ResetTeam)
	staffGroup.Post("/unlock", handlers.ManualUnlock)
	staffGroup.Post("/unlock-all", handlers.UnlockAll)
	staffGroup.Post("/recompute", handlers.RecomputeAll)
	staffGroup.Post("/hunts", handlers.SaveHunt)
	staffGroup.Post("/episodes", handlers.SaveEpisode)
	staffGroup.Post("/puzzles", handlers.SavePuzzle)
	staffGroup.Delete("/puzzles/:id", handlers.DeletePuzzle)

	// Realtime puzzle channel
	app.Get("/ws/puzzle/:code",
		middleware.AuthMiddleware,
		handlers.WebSocketUpgrade,
		handlers.PuzzleSocket)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("🚀 Server starting on port %s", port)
	log.Printf("📊 Environment: %s", getEnv("APP_ENV", "development"))
	log.Printf("🔐 JWT Secret configured: %v", os.Getenv("JWT_SECRET") != "")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// validateEnvironment checks for required environment variables
func validateEnvironment() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("FATAL: JWT_SECRET environment variable must be set. Generate one with: openssl rand -base64 64")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("FATAL: JWT_SECRET must be at least 32 characters long")
	}

	if os.Getenv("APP_ENV") == "production" {
		corsOrigins := os.Getenv("CORS_ORIGINS")
		if corsOrigins == "" || corsOrigins == "http://localhost:3000" {
			log.Println("WARNING: CORS_ORIGINS not properly configured for production")
		}
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if os.Getenv("APP_ENV") == "production" && code == 500 {
		message = "An error occurred. Please try again later."
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
