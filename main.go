package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/config"
	"github.com/mylesweissleder/newday-engine/pkg/database"
	"github.com/mylesweissleder/newday-engine/pkg/handlers"
	"github.com/mylesweissleder/newday-engine/pkg/llm"
	"github.com/mylesweissleder/newday-engine/pkg/logging"
	"github.com/mylesweissleder/newday-engine/pkg/repositories"
	"github.com/mylesweissleder/newday-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())))

	weights, err := config.LoadScoringWeights(cfg.WeightsPath)
	if err != nil {
		logger.Fatal("Failed to load scoring weights", zap.Error(err))
	}
	logger.Info("Scoring weights loaded", zap.String("weights_version", weights.Version))

	// Migrations run over database/sql; the pool below is pgx-native.
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	db, err := database.NewConnection(context.Background(), &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	contactRepo := repositories.NewContactRepository()
	relRepo := repositories.NewRelationshipRepository()
	candidateRepo := repositories.NewCandidateRepository()
	oppRepo := repositories.NewOpportunityRepository()
	feedbackRepo := repositories.NewFeedbackRepository()
	notifRepo := repositories.NewNotificationRepository()

	// Optional narrative summarizer.
	var summarizer llm.Summarizer
	if cfg.Insight.Enabled {
		client, err := llm.NewClient(&llm.Config{
			BaseURL: cfg.Insight.BaseURL,
			Model:   cfg.Insight.Model,
			APIKey:  cfg.Insight.APIKey,
			Timeout: cfg.Insight.Timeout,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create LLM client", zap.Error(err))
		}
		summarizer = client
	}

	// Services
	gate := services.NewAccountBatchGate()
	discoveryService := services.NewDiscoveryService(contactRepo, relRepo, candidateRepo, cfg.Discovery, cfg.Batch, weights, gate, logger)
	scoringService := services.NewScoringService(contactRepo, relRepo, cfg.Batch, weights, gate, logger)
	opportunityService := services.NewOpportunityService(oppRepo, contactRepo, relRepo, cfg.Opportunity, summarizer, gate, logger)
	successService := services.NewSuccessService(oppRepo, feedbackRepo, weights, logger)
	notificationService := services.NewNotificationService(oppRepo, notifRepo, &services.LogNotifier{Logger: logger}, logger)

	// HTTP layer
	scopeProvider := database.NewAccountScopeProvider(db)
	accountScope := handlers.NewAccountMiddleware(scopeProvider, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewContactHandler(contactRepo, logger).RegisterRoutes(mux, accountScope)
	handlers.NewDiscoveryHandler(discoveryService, logger).RegisterRoutes(mux, accountScope)
	handlers.NewScoringHandler(scoringService, logger).RegisterRoutes(mux, accountScope)
	handlers.NewOpportunityHandler(opportunityService, logger).RegisterRoutes(mux, accountScope)
	handlers.NewSuccessHandler(successService, logger).RegisterRoutes(mux, accountScope)
	handlers.NewNotificationHandler(notificationService, logger).RegisterRoutes(mux, accountScope)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	logger.Info("Starting newday-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
