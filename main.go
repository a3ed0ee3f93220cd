package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"catalog/internal/handlers"
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/storage"
	"catalog/pkg/rabbitmq"
)

// NewApp assembles the Fiber application around an initialized product
// service: middleware, routes, static image serving and the health check.
func NewApp(productService *services.ProductService, uploadDir, frontendOrigin string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
		// Default 4 MiB body limit is below the 5 MiB image cap; leave
		// headroom for the multipart framing and text fields.
		BodyLimit: 8 * 1024 * 1024,
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     frontendOrigin,
		AllowCredentials: true,
	}))

	// Uploaded images are written by the image store and served back here.
	app.Static(storage.PublicPrefix, uploadDir)

	api := app.Group("/api")
	productHandler := handlers.NewProductHandler(productService)
	productHandler.RegisterRoutes(api)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return app
}

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":3001")
	viper.SetDefault("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=catalog port=5432 sslmode=disable")
	viper.SetDefault("UPLOAD_DIR", "./uploads")
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.AutomaticEnv()

	appPort := viper.GetString("APP_PORT")
	uploadDir := viper.GetString("UPLOAD_DIR")

	// --- Database ---
	// TranslateError makes unique-constraint violations visible as
	// gorm.ErrDuplicatedKey, which the repository relies on for Conflict.
	db, err := gorm.Open(postgres.Open(viper.GetString("DATABASE_DSN")), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Event publisher (optional) ---
	// The catalog must serve without a broker, so a connection failure
	// only disables events.
	var events services.EventPublisher
	var mqClient *rabbitmq.Client
	if mqURL := viper.GetString("RABBITMQ_URL"); mqURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: mqURL})
		if err != nil {
			log.Printf("RabbitMQ unavailable, product events disabled: %v", err)
		} else {
			events = mqClient
			defer mqClient.Close()
		}
	}

	// --- Wiring ---
	productRepo := repositories.NewGORMProductRepository(db)
	imageStore := storage.NewDiskImageStore(uploadDir)
	productService := services.NewProductService(productRepo, imageStore, events)

	app := NewApp(productService, uploadDir, viper.GetString("FRONTEND_URL"))

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
