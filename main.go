package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chillistore/internal/config"
	"chillistore/internal/database"
	"chillistore/internal/handlers"
	"chillistore/internal/invalidation"
	applogger "chillistore/internal/logger"
	"chillistore/internal/middleware"
	"chillistore/internal/models"
	"chillistore/internal/repositories"
	"chillistore/internal/services"
	"chillistore/internal/storemode"
	"chillistore/pkg/blobstore"
	"chillistore/pkg/rabbitmq"

	"cloud.google.com/go/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// App is the assembled service.
type App struct {
	Fiber *fiber.App
	Auth  *services.AuthService

	logger  *zap.Logger
	closers []func() error
}

// Close releases every resource NewApp opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := applogger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	app, err := NewApp(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("store_mode", cfg.Mode.Name()))
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down server")

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("error during fiber shutdown", zap.Error(err))
	}
	if err := app.Close(); err != nil {
		log.Error("error releasing resources", zap.Error(err))
	}
	log.Info("server gracefully stopped")
}

// NewApp wires repositories, services and handlers from cfg.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = applogger.OrNop(log)
	a := &App{logger: log}
	fail := func(err error) (*App, error) {
		_ = a.Close()
		return nil, err
	}

	// --- Database ---
	db, err := database.Open(cfg.DatabaseURL, log)
	if err != nil {
		return fail(err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := database.Migrate(db); err != nil {
		return fail(err)
	}

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	brandRepo := repositories.NewGORMBrandRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	if err := seedCatalog(ctx, log, productRepo, categoryRepo, brandRepo); err != nil {
		return fail(err)
	}
	mode, err := resolveMode(ctx, cfg.Mode, brandRepo)
	if err != nil {
		return fail(err)
	}

	// --- Blob storage ---
	var memoryStore *blobstore.MemoryStore
	var store blobstore.Store
	switch cfg.BlobBackend {
	case config.BlobBackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fail(fmt.Errorf("failed to create storage client: %w", err))
		}
		gcs, err := blobstore.NewGCSStore(client, cfg.GCSBucket, cfg.AssetPublicBaseURL)
		if err != nil {
			_ = client.Close()
			return fail(err)
		}
		a.closers = append(a.closers, gcs.Close)
		store = gcs
	default:
		memoryStore = blobstore.NewMemoryStore(cfg.AssetPublicBaseURL)
		store = memoryStore
	}

	// --- Services ---
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.StoreID, log.Named("auth"))
	a.Auth = authService
	if cfg.OwnerUsername != "" {
		if _, err := authService.EnsureShopOwner(ctx, cfg.OwnerUsername, cfg.OwnerEmail, cfg.OwnerPassword); err != nil {
			return fail(fmt.Errorf("failed to bootstrap shop owner: %w", err))
		}
	}

	assetService := services.NewAssetService(store, log.Named("assets"))
	catalogService := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   productRepo,
		Categories: categoryRepo,
		Brands:     brandRepo,
		Logger:     log.Named("catalog"),
	})

	publishers, err := a.invalidationPublishers(ctx, cfg, catalogService)
	if err != nil {
		return fail(err)
	}
	dispatcher := invalidation.NewDispatcher(log.Named("invalidation"), 0, publishers...)
	a.closers = append(a.closers, func() error { dispatcher.Close(); return nil })

	productService := services.NewProductService(services.ProductServiceDeps{
		Repository:    productRepo,
		Authorizer:    authService,
		Validator:     services.NewProductValidator(mode, assetService),
		Brands:        brandRepo,
		Invalidator:   dispatcher,
		Logger:        log.Named("products"),
		DefaultLocale: cfg.DefaultLocale,
	})

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService, log)
	productHandler := handlers.NewProductHandler(catalogService, log)
	adminHandler := handlers.NewAdminProductHandler(handlers.AdminProductHandlerDeps{
		Products: productService,
		Catalog:  catalogService,
		Assets:   assetService,
		Guard:    services.NewSubmissionGuard(),
		Mode:     mode,
		Logger:   log,
	})

	// --- Fiber App ---
	app := fiber.New(fiber.Config{
		AppName:   "chillistore",
		BodyLimit: 2 * services.MaxImageBytes,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)
	adminHandler.RegisterRoutes(apiV1.Group("/admin", middleware.AuthRequired(authService, log)))

	if memoryStore != nil {
		handlers.NewAssetHandler(memoryStore).RegisterRoutes(app, "/assets")
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":       "healthy",
			"time":         time.Now().Format(time.RFC3339),
			"store_mode":   mode.Name(),
			"invalidation": cfg.InvalidationBackend,
		})
	})

	a.Fiber = app
	return a, nil
}

// invalidationPublishers always includes the local catalog cache. A broker
// backend adds a publisher and a subscriber so peers drop their caches too.
func (a *App) invalidationPublishers(ctx context.Context, cfg *config.Config, local *services.CatalogService) ([]invalidation.Publisher, error) {
	publishers := []invalidation.Publisher{local}

	switch cfg.InvalidationBackend {
	case config.InvalidationRabbitMQ:
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, a.logger.Named("rabbitmq"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mqClient.Close)
		if err := mqClient.Consume(invalidation.DeliveryHandler(local)); err != nil {
			return nil, err
		}
		publishers = append(publishers, invalidation.NewAMQPPublisher(mqClient))

	case config.InvalidationKafka:
		publisher := invalidation.NewKafkaPublisher(invalidation.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		a.closers = append(a.closers, publisher.Close)
		publishers = append(publishers, publisher)

		reader := invalidation.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, "chillistore-"+uuid.NewString())
		subscriber := invalidation.NewKafkaSubscriber(reader, local, a.logger.Named("kafka"))
		subCtx, cancel := context.WithCancel(context.Background())
		a.closers = append(a.closers, func() error {
			cancel()
			return subscriber.Close()
		})
		go func() {
			if err := subscriber.Run(subCtx); err != nil {
				a.logger.Error("kafka subscriber stopped", zap.Error(err))
			}
		}()
	}
	return publishers, nil
}

// resolveMode checks the configured default brand of a single-brand shop, or fills it
// in from the first brand on record.
func resolveMode(ctx context.Context, mode storemode.Mode, brands repositories.BrandRepository) (storemode.Mode, error) {
	single, ok := mode.(storemode.Single)
	if !ok {
		return mode, nil
	}
	if single.DefaultBrandID != "" {
		if _, err := brands.GetByID(ctx, single.DefaultBrandID); err != nil {
			return nil, fmt.Errorf("DEFAULT_BRAND_ID %q: %w", single.DefaultBrandID, err)
		}
		return mode, nil
	}
	all, err := brands.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.New("single store mode needs DEFAULT_BRAND_ID or at least one brand")
	}
	return storemode.Single{DefaultBrandID: all[0].ID}, nil
}

// seedCatalog populates an empty catalog with a sample brand, categories and products.
func seedCatalog(ctx context.Context, log *zap.Logger, products repositories.ProductRepository, categories repositories.CategoryRepository, brands repositories.BrandRepository) error {
	n, err := brands.Count(ctx)
	if err != nil || n > 0 {
		return err
	}

	brand := &models.Brand{Name: "Chilli Works", Slug: "chilli-works", Country: "United Kingdom", Description: "Small-batch sauces."}
	if err := brands.Create(ctx, brand); err != nil {
		return err
	}

	fruity := &models.Category{Name: "Fruity", Slug: "fruity"}
	superhot := &models.Category{Name: "Superhot", Slug: "superhot"}
	for _, c := range []*models.Category{fruity, superhot} {
		if err := categories.Create(ctx, c); err != nil {
			return err
		}
	}

	mild, extreme := "mild", "extreme"
	now := time.Now()
	seed := []models.Product{
		{
			Name: "Mild Mango", Slug: "mild-mango", PriceCents: 599, Currency: models.DefaultCurrency,
			Description: "Sweet mango with a gentle *scotch bonnet* warmth.",
			BrandID:     &brand.ID, CategoryID: &fruity.ID, HeatLevel: &mild,
			ChilliTypes: []models.ChilliType{{ID: uuid.NewString(), Name: "Scotch Bonnet", Slug: "scotch-bonnet"}},
			CreatedAt:   now.Add(-time.Minute),
		},
		{
			Name: "Ghost Pepper Inferno", Slug: "ghost-pepper-inferno", PriceCents: 899, Currency: models.DefaultCurrency,
			Description: "**Bhut jolokia** at full strength.",
			BrandID:     &brand.ID, CategoryID: &superhot.ID, HeatLevel: &extreme,
			ChilliTypes: []models.ChilliType{{ID: uuid.NewString(), Name: "Ghost Pepper", Slug: "ghost-pepper", HeatLevel: &extreme}},
			CreatedAt:   now,
		},
	}
	for i := range seed {
		if err := products.Create(ctx, &seed[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", seed[i].Name, err)
		}
		log.Info("seeded product", zap.String("name", seed[i].Name), zap.String("id", seed[i].ID))
	}
	return nil
}
