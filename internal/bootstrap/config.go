package bootstrap

import (
	"fmt"
	"os"

	"github.com/jonesrussell/doc-indexer/internal/config"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

// defaultConfigPath is used when CONFIG_PATH is not set.
const defaultConfigPath = "config.yml"

// LoadConfig loads and validates the service configuration.
func LoadConfig() (*config.Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, loadErr := config.Load(configPath)
	if loadErr != nil {
		return nil, fmt.Errorf("load config: %w", loadErr)
	}

	return cfg, nil
}

// CreateLogger creates a structured logger for the service.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	log, logErr := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if logErr != nil {
		return nil, fmt.Errorf("create logger: %w", logErr)
	}

	return log.With(logger.String("service", cfg.Service.Name)), nil
}
