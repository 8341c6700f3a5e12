package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/billing"
	"invoice-backend/internal/documents"
	"invoice-backend/internal/export"
	"invoice-backend/internal/extract"
	"invoice-backend/internal/llm"
	"invoice-backend/internal/llm/openai"
	"invoice-backend/internal/processing"
	"invoice-backend/internal/services/health"
	"invoice-backend/internal/shared/auth"
	"invoice-backend/internal/shared/config"
	"invoice-backend/internal/shared/resilience"
	"invoice-backend/internal/shared/server"
	"invoice-backend/internal/shared/server/middleware"
	"invoice-backend/internal/shared/storage/db"
	"invoice-backend/internal/shared/storage/object"
	localstore "invoice-backend/internal/shared/storage/object/local"
	s3store "invoice-backend/internal/shared/storage/object/s3"
	"invoice-backend/internal/shared/telemetry"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Store             object.ObjectStore
	Extractor         llm.Extractor
	DocumentsRepo     documents.Repo
	SubscriptionsRepo billing.Repo
	DocumentsService  *documents.Service
	ProcessingService *processing.Service
	BillingService    *billing.Service
	DocumentsHandler  *documents.Handler
	ProcessHandler    *processing.Handler
	ExportHandler     *export.Handler
	BillingHandler    *billing.Handler
}

// Build prepares every dependency and mounts the HTTP routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	extractor, err := buildExtractor(cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Store:     store,
		Extractor: extractor,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Signer:          auth.NewSigner(cfg.JWTSecret),
		Limiter:         middleware.NewRateLimiter(nil),
		Health:          health.NewService(pinger(sqlDB)),
		DocumentHandler: app.DocumentsHandler,
		ProcessHandler:  app.ProcessHandler,
		ExportHandler:   app.ExportHandler,
		BillingHandler:  app.BillingHandler,
	})

	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Options{
			Region:        cfg.AWSRegion,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			KMSKeyID:      cfg.SSEKMSKeyID,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL), nil
	}
}

func buildExtractor(cfg config.Config) (llm.Extractor, error) {
	if cfg.LLMProvider != "openai" {
		telemetry.Warn("bootstrap.extraction_disabled", map[string]any{"provider": cfg.LLMProvider})
		return llm.PlaceholderClient{}, nil
	}
	if strings.TrimSpace(cfg.LLMAPIKey) == "" && cfg.IsDevLike() {
		telemetry.Warn("bootstrap.extraction_disabled", map[string]any{"reason": "LLM_API_KEY empty"})
		return llm.PlaceholderClient{}, nil
	}

	client, err := openai.NewClient(openai.Options{
		BaseURL:   cfg.LLMBaseURL,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		Timeout:   cfg.LLMTimeout,
		MaxTokens: cfg.LLMMaxTokens,
		JSONMode:  cfg.LLMJSONMode,
	})
	if err != nil {
		return nil, err
	}

	breaker := resilience.DefaultConfig()
	breaker.Enabled = cfg.LLMBreakerEnabled
	return llm.NewGuarded(client, breaker), nil
}

func buildServices(app *App) {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.SubscriptionsRepo = &billing.PGRepo{DB: app.DB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.SubscriptionsRepo = billing.NewMemoryRepo()
	}

	app.DocumentsService = documents.NewService(app.Store, app.DocumentsRepo)

	app.ProcessingService = processing.NewService(
		app.DocumentsRepo,
		app.Store,
		extract.NewConverter(app.Config.MaxPDFPages),
		app.Extractor,
	)
	if app.Config.ProcessingStaleAfter > 0 {
		app.ProcessingService.StaleAfter = app.Config.ProcessingStaleAfter
	}

	app.BillingService = billing.NewService(app.SubscriptionsRepo, app.Config.StripeWebhookSecret)

	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)
	app.ProcessHandler = processing.NewHandler(app.ProcessingService)
	app.ExportHandler = export.NewHandler(app.DocumentsService)
	app.BillingHandler = billing.NewHandler(app.BillingService)
}

// pinger avoids handing a typed nil *sql.DB to the health check.
func pinger(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}

func closeDB(sqlDB *sql.DB) {
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
}
