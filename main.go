package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"canteen-api/config"
	"canteen-api/handlers"
	"canteen-api/models"
	"canteen-api/notify"
	"canteen-api/routes"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

func setupLogger() {
	var handler slog.Handler
	if gin.Mode() == gin.ReleaseMode {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	// Set Gin mode
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.DebugMode)
	}
	setupLogger()

	// Initialize database and the component graph
	config.InitDB()
	mailer := notify.NewSMTPMailer(
		config.MailHost, config.MailPort,
		config.MailUsername, config.MailPassword, config.MailFrom,
	)
	handlers.Init(config.DB, mailer)

	// Background sweep: expired sessions and stale read notifications.
	// Short, periodic, off the request path.
	c := cron.New()
	c.AddFunc("@every 15m", func() {
		swept := handlers.Store().Sweep()
		cutoff := time.Now().AddDate(0, 0, -90)
		res := config.DB.Where("is_read = ? AND created_at < ?", true, cutoff).
			Delete(&models.Notification{})
		slog.Info("periodic sweep finished",
			"sessions_expired", swept, "notifications_purged", res.RowsAffected)
	})
	c.Start()
	defer c.Stop()

	// Create Gin router with default middleware (logger + recovery)
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "School Canteen Ordering API",
			"version": "1.0.0",
		})
	})

	// Register all routes
	routes.SetupRoutes(r)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on http://localhost:%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
