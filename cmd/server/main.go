package main

import (
	"context"
	"log"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/natsukage/task-tracker-api/internal/config"
	"github.com/natsukage/task-tracker-api/internal/database"
	"github.com/natsukage/task-tracker-api/internal/events"
	"github.com/natsukage/task-tracker-api/internal/handlers"
	"github.com/natsukage/task-tracker-api/internal/middleware"
	"github.com/natsukage/task-tracker-api/internal/repository"
	"github.com/natsukage/task-tracker-api/internal/scheduler"
	"github.com/natsukage/task-tracker-api/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	gin.SetMode(cfg.GinMode)

	logger := logrus.New()
	if cfg.GinMode == "release" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Shared redis client: pub/sub fan-out of task events
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr(),
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to ping redis: %v", err)
	}

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware with Redis
	store, err := redisStore.NewStore(
		10,                        // Redis pool size
		"tcp",                     // network type
		cfg.RedisAddr(),           // Redis address from config
		"",                        // username (empty for default user)
		"",                        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax (1=Strict, 2=Lax, 3=None)
	})
	r.Use(sessions.Sessions("task_session", store))

	// Repositories
	taskRepo := repository.NewTaskRepository(database.GetDB())
	userRepo := repository.NewUserRepository(database.GetDB())

	// Event fan-out
	notifier := events.NewRedisNotifier(redisClient, logger)

	// Services
	authService := services.NewAuthService(userRepo)
	taskService := services.NewTaskService(taskRepo, notifier)
	adminService := services.NewAdminService(taskRepo, userRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	taskHandler := handlers.NewTaskHandler(taskService)
	adminHandler := handlers.NewAdminHandler(adminService)
	broadcastingHandler := handlers.NewBroadcastingHandler()

	// Retention sweep for old tasks
	go scheduler.NewCleanup(taskRepo, logger).Run(context.Background())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Task Tracker API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.POST("/reorder", taskHandler.ReorderTasks)
			tasks.GET("/statistics", taskHandler.GetStatistics)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PUT("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}

		// Private-channel subscription auth (protected)
		api.POST("/broadcasting/auth", middleware.RequireAuth(), broadcastingHandler.Authorize)

		// Admin routes (protected + admin only)
		admin := api.Group("/admin")
		admin.Use(middleware.RequireAuth(), middleware.RequireAdmin())
		{
			admin.GET("/tasks", adminHandler.ListAllTasks)
			admin.GET("/statistics", adminHandler.SystemStatistics)
			admin.GET("/users/:id/statistics", adminHandler.UserStatistics)
		}
	}

	// Start server
	log.Printf("Server starting on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
