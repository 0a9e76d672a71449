package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/catalog"
	"github.com/erdflow/erdflow-engine/pkg/config"
	"github.com/erdflow/erdflow-engine/pkg/database"
	"github.com/erdflow/erdflow-engine/pkg/handlers"
	"github.com/erdflow/erdflow-engine/pkg/logging"
	"github.com/erdflow/erdflow-engine/pkg/middleware"
	"github.com/erdflow/erdflow-engine/pkg/platform"
	"github.com/erdflow/erdflow-engine/pkg/repositories"
	"github.com/erdflow/erdflow-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsPath = "./migrations"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Bool("platform_configured", cfg.Platform.BaseURL != ""))

	ctx := context.Background()

	// Deployment history store
	db, err := database.Connect(ctx, cfg.Database.ConnectionString(), cfg.Database.MaxConnections)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(migrationDB, migrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	// Standard-entity registry
	registry, err := loadRegistry(cfg)
	if err != nil {
		logger.Fatal("Failed to load entity registry", zap.Error(err))
	}
	logger.Info("Entity registry loaded", zap.Int("entities", registry.Len()))

	// Platform client. The HTTP transport is supplied per deployment target;
	// without one, detection and validation work normally and deployment
	// requests fail fast.
	client := platform.Unconfigured()
	if cfg.Platform.BaseURL == "" {
		logger.Warn("No platform configured; deployment requests will be rejected")
	}

	// Repositories
	deploymentRepo := repositories.NewDeploymentRepository(db)
	rollbackRepo := repositories.NewRollbackRepository(db)

	// Services
	matcher := services.NewMatcherService(registry, services.MatcherOptions{
		AliasConfidence: cfg.Matcher.AliasConfidence,
		FuzzyThreshold:  cfg.Matcher.FuzzyThreshold,
	}, logger)
	validator := services.NewValidatorService(logger)
	resolver := services.NewResolverService(logger)
	deployer := services.NewDeploymentService(client, validator, deploymentRepo, cfg.Platform.CallTimeout(), logger)

	tracker := services.NewRollbackTracker(cfg.Rollback.Retention(), cfg.Rollback.CleanupInterval(), logger)
	tracker.Start()
	defer tracker.Stop()

	rollback := services.NewRollbackService(client, deploymentRepo, rollbackRepo, tracker, cfg.Platform.CallTimeout(), logger)

	mux := http.NewServeMux()

	// Register handlers
	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	schemaHandler := handlers.NewSchemaHandler(matcher, validator, resolver, logger)
	schemaHandler.RegisterRoutes(mux)

	deploymentHandler := handlers.NewDeploymentHandler(matcher, resolver, deployer, rollback, logger)
	deploymentHandler.RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting erdflow-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func loadRegistry(cfg *config.Config) (*catalog.Registry, error) {
	if cfg.Catalog.RegistryPath != "" {
		return catalog.LoadFile(cfg.Catalog.RegistryPath)
	}
	return catalog.Default()
}
