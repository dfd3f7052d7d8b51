package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/trackline/cmdb/internal/api/handlers"
	"github.com/trackline/cmdb/internal/api/router"
	"github.com/trackline/cmdb/internal/config"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/validator"
	"github.com/trackline/cmdb/internal/repository/postgres"
	"github.com/trackline/cmdb/internal/schema"
	"github.com/trackline/cmdb/internal/services"
	"github.com/trackline/cmdb/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := postgres.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, migrations.GetFS()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Info("Database ready")

	// Repositories
	ciRepo := postgres.NewCIRepository(db)
	ruleRepo := postgres.NewRuleRepository(db)
	edgeRepo := postgres.NewRelationshipRepository(db)
	kindRepo := postgres.NewKindRepository(db)
	baselineRepo := postgres.NewBaselineRepository(db)
	definitionRepo := postgres.NewDefinitionRepository(db)
	detailRepo := postgres.NewDetailRepository(db)

	// Services
	registry := schema.Default()
	evaluator := services.NewEvaluator(ciRepo, log)
	retention := services.NewRetentionService(baselineRepo, definitionRepo, log)
	relationshipService := services.NewRelationshipService(edgeRepo, kindRepo, ciRepo, log)
	ciService := services.NewCIService(ciRepo, evaluator, retention, edgeRepo, kindRepo, detailRepo, relationshipService, registry, log)
	traverser := services.NewTraversalService(ciRepo, edgeRepo, cfg.CMDB.MaxTraversalDepth, log)
	ingestor := services.NewIngestService(ciService, relationshipService, detailRepo, ruleRepo, log)
	baselineService := services.NewBaselineService(baselineRepo, definitionRepo, log)

	// Handlers
	val := validator.New()
	h := &router.Handlers{
		Health:       handlers.NewHealthHandler(db, log),
		CI:           handlers.NewCIHandler(ciService, ingestor, traverser, ciRepo, ruleRepo, log, val),
		Relationship: handlers.NewRelationshipHandler(relationshipService, log, val),
		Baseline:     handlers.NewBaselineHandler(baselineService, log),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}
	log.Info("Server stopped")
}
