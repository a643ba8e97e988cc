package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"catalog-service/internal/config"
	"catalog-service/internal/enrichment"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
	"catalog-service/internal/storage"
)

// @title Catalog Management API
// @version 1.0.0
// @description Catalog management service with spreadsheet ingestion, product enrichment and offer generation

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8089
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logrus logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis for catalog caching (optional)
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logger.WithError(err).Warn("Invalid REDIS_URL, catalog caching disabled")
	} else {
		redisClient = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, catalog caching disabled")
			redisClient = nil
		} else {
			logger.Info("✓ Redis connected")
		}
		cancel()
	}

	// Initialize NATS events publisher (optional)
	eventsPublisher, err := events.NewPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize events publisher (events won't be published)")
	} else if eventsPublisher != nil {
		defer eventsPublisher.Close()
		logger.Info("✓ NATS events publisher initialized")
	}

	// Initialize document-service client for catalog file storage
	filesClient := storage.NewFilesClient(cfg.DocumentServiceURL)

	// Initialize repositories
	catalogsRepo := repository.NewCatalogsRepository(db, redisClient)
	productsRepo := repository.NewProductsRepository(db)
	offersRepo := repository.NewOffersRepository(db)

	// Initialize enrichment pipeline
	mapper := enrichment.NewMapper()
	registry := enrichment.NewRegistry(
		enrichment.NewAmazonProvider(),
		enrichment.NewKeepaProvider(cfg.KeepaAPIKey, cfg.KeepaBaseURL, cfg.KeepaRatePerSec),
	)
	engine := enrichment.NewEngine(catalogsRepo, productsRepo, filesClient, mapper, registry)

	// Initialize offer services
	offerService := services.NewOfferService(offersRepo, productsRepo, catalogsRepo)
	sheetService := services.NewOfferSheetService()

	// Initialize handlers
	catalogsHandler := handlers.NewCatalogsHandler(catalogsRepo, productsRepo, offersRepo, filesClient, engine, eventsPublisher, cfg)
	productsHandler := handlers.NewProductsHandler(productsRepo, cfg)
	offersHandler := handlers.NewOffersHandler(offersRepo, offerService, sheetService, eventsPublisher, cfg)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadyCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	if cfg.Environment == "production" {
		api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	} else {
		api.Use(middleware.DevelopmentAuthMiddleware())
	}

	{
		catalogs := api.Group("/catalogs")
		{
			catalogs.POST("/upload", catalogsHandler.UploadCatalog)
			catalogs.GET("", catalogsHandler.ListCatalogs)
			catalogs.GET("/:id", catalogsHandler.GetCatalog)
			catalogs.PUT("/:id", catalogsHandler.UpdateCatalog)
			catalogs.DELETE("/:id", catalogsHandler.DeleteCatalog)
			catalogs.GET("/:id/summary", catalogsHandler.GetCatalogSummary)
			catalogs.GET("/:id/enrichment-status", catalogsHandler.GetEnrichmentStatus)
			catalogs.POST("/:id/enrich", catalogsHandler.EnrichCatalog)
			catalogs.GET("/:id/products", productsHandler.ListCatalogProducts)
		}

		products := api.Group("/products")
		{
			products.GET("/:id", productsHandler.GetProduct)
		}

		offers := api.Group("/offers")
		{
			offers.POST("/generate", offersHandler.GenerateOffers)
			offers.GET("", offersHandler.ListOffers)
			offers.GET("/:id", offersHandler.GetOffer)
			offers.PUT("/:id", offersHandler.UpdateOffer)
			offers.DELETE("/:id", offersHandler.DeleteOffer)
			offers.GET("/:id/sheet", offersHandler.DownloadOfferSheet)
		}

		enrichmentRoutes := api.Group("/enrichment")
		{
			enrichmentRoutes.GET("/providers", catalogsHandler.ListProviders)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down catalog-service...")

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}

	log.Println("Catalog service stopped")
}
