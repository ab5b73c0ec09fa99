// Package bootstrap handles application initialization and lifecycle
// management for the document indexing service.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/doc-indexer/internal/logger"
)

// Start initializes and runs the document indexing service.
func Start() error {
	cfg, configErr := LoadConfig()
	if configErr != nil {
		return fmt.Errorf("config: %w", configErr)
	}

	log, logErr := CreateLogger(cfg)
	if logErr != nil {
		return fmt.Errorf("logger: %w", logErr)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting document indexing service",
		logger.String("name", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
	)

	db, dbErr := SetupDatabase(cfg)
	if dbErr != nil {
		return fmt.Errorf("database: %w", dbErr)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()
	log.Info("Database connection established")

	components, setupErr := SetupComponents(cfg, db, log)
	if setupErr != nil {
		return fmt.Errorf("components: %w", setupErr)
	}
	defer func() {
		if closeErr := components.Vectors.Close(); closeErr != nil {
			log.Error("Failed to close vector store", logger.Error(closeErr))
		}
	}()

	ctx := context.Background()

	if ensureErr := components.Vectors.EnsureCollection(ctx); ensureErr != nil {
		return fmt.Errorf("vector collection: %w", ensureErr)
	}
	log.Info("Vector collection ready", logger.String("collection", cfg.Qdrant.Collection))

	components.Worker.Start(ctx)
	defer components.Worker.Stop()
	log.Info("Indexing worker started")

	if runErr := components.Server.RunWithGracefulShutdown(ctx); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return fmt.Errorf("server: %w", runErr)
	}

	log.Info("Document indexing service stopped")
	return nil
}
