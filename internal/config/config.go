package config

import (
	"fmt"
	"time"
)

// Default service configuration values.
const (
	defaultServiceName    = "doc-indexer"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8086
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

// Default database configuration values.
const (
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBUser          = "postgres"
	defaultDBName          = "docindexer"
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 25
	defaultDBMaxIdleConns  = 5
	defaultDBConnLifetimeH = 1
)

// Default worker configuration values.
const (
	defaultWorkerPollInterval    = time.Second
	defaultWorkerBatchSize       = 10
	defaultWorkerBaseBackoff     = 2 * time.Second
	defaultWorkerMaxAttempts     = 5
	defaultSummarizeThreshold    = 1200
	defaultWorkerStaleRunningAge = 5 * time.Minute
	defaultWorkerReapInterval    = time.Minute
)

// Default semantic search configuration values.
const (
	defaultSearchTopK          = 20
	defaultSimilarityThreshold = 0.75
)

// Default AI provider configuration values.
const (
	defaultQdrantURL        = "http://localhost:6334"
	defaultQdrantCollection = "documents"
	defaultVectorSize       = 768
	defaultEmbeddingsURL    = "http://localhost:11434"
	defaultEmbeddingsModel  = "nomic-embed-text"
	defaultChatURL          = "http://localhost:11434/v1"
	defaultChatModel        = "llama3.1"
	defaultChatTemperature  = 0.2
	defaultProviderTimeout  = 60 * time.Second
)

// Config holds the application configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Database   DatabaseConfig   `yaml:"database"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Chat       ChatConfig       `yaml:"chat"`
	Worker     WorkerConfig     `yaml:"worker"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServiceConfig holds service identity and runtime settings.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"DOC_INDEXER_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"        yaml:"debug"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port                  int           `env:"POSTGRES_PORT"     yaml:"port"`
	User                  string        `env:"POSTGRES_USER"     yaml:"user"`
	Password              string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database              string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode               string        `yaml:"sslmode"`
	MaxConnections        int           `yaml:"max_connections"`
	MaxIdleConns          int           `yaml:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// QdrantConfig holds vector index connection settings.
type QdrantConfig struct {
	URL        string `env:"QDRANT_URL"     yaml:"url"`
	APIKey     string `env:"QDRANT_API_KEY" yaml:"api_key"`
	Collection string `yaml:"collection"`
	VectorSize uint64 `yaml:"vector_size"`
}

// EmbeddingsConfig holds the embedding provider settings.
type EmbeddingsConfig struct {
	BaseURL string        `env:"EMBEDDINGS_URL" yaml:"base_url"`
	Model   string        `env:"EMBEDDINGS_MODEL" yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// ChatConfig holds the chat-completion provider settings.
type ChatConfig struct {
	BaseURL     string        `env:"CHAT_URL"     yaml:"base_url"`
	APIKey      string        `env:"CHAT_API_KEY" yaml:"api_key"`
	Model       string        `env:"CHAT_MODEL"   yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// WorkerConfig holds indexing worker settings.
type WorkerConfig struct {
	PollInterval            time.Duration `yaml:"poll_interval"`
	BatchSize               int           `yaml:"batch_size"`
	BaseBackoff             time.Duration `yaml:"base_backoff"`
	MaxAttempts             int           `yaml:"max_attempts"`
	SummarizeThresholdChars int           `yaml:"summarize_threshold_chars"`
	StaleRunningAge         time.Duration `yaml:"stale_running_age"`
	ReapInterval            time.Duration `yaml:"reap_interval"`
}

// SearchConfig holds semantic search settings. Query rewriting is on unless
// explicitly disabled; dual-query fusion and LLM reranking are opt-in.
type SearchConfig struct {
	DisableQueryRewrite bool    `yaml:"disable_query_rewrite"`
	DualQueryEnabled    bool    `yaml:"dual_query_enabled"`
	RerankEnabled       bool    `yaml:"rerank_enabled"`
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// QueryRewriteEnabled reports whether query rewriting is active.
func (s *SearchConfig) QueryRewriteEnabled() bool {
	return !s.DisableQueryRewrite
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from a YAML file, applies defaults, then env overrides.
func Load(path string) (*Config, error) {
	var cfg Config
	if loadErr := loadFile(path, &cfg); loadErr != nil {
		return nil, fmt.Errorf("load config: %w", loadErr)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return &ValidationError{Field: "service.port", Message: "must be between 1 and 65535"}
	}

	if c.Database.Host == "" {
		return &ValidationError{Field: "database.host", Message: "is required"}
	}

	if c.Database.Database == "" {
		return &ValidationError{Field: "database.database", Message: "is required"}
	}

	if c.Qdrant.Collection == "" {
		return &ValidationError{Field: "qdrant.collection", Message: "is required"}
	}

	if c.Worker.MaxAttempts <= 0 {
		return &ValidationError{Field: "worker.max_attempts", Message: "must be positive"}
	}

	return nil
}

// setDefaults applies default values to all configuration sections.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setProviderDefaults(cfg)
	setWorkerDefaults(&cfg.Worker)
	setSearchDefaults(&cfg.Search)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}

	if s.Version == "" {
		s.Version = defaultServiceVersion
	}

	if s.Port == 0 {
		s.Port = defaultServicePort
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}

	if d.Port == 0 {
		d.Port = defaultDBPort
	}

	if d.User == "" {
		d.User = defaultDBUser
	}

	if d.Database == "" {
		d.Database = defaultDBName
	}

	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}

	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}

	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}

	if d.ConnectionMaxLifetime == 0 {
		d.ConnectionMaxLifetime = defaultDBConnLifetimeH * time.Hour
	}
}

func setProviderDefaults(cfg *Config) {
	if cfg.Qdrant.URL == "" {
		cfg.Qdrant.URL = defaultQdrantURL
	}

	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = defaultQdrantCollection
	}

	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = defaultVectorSize
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = defaultEmbeddingsURL
	}

	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = defaultEmbeddingsModel
	}

	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = defaultProviderTimeout
	}

	if cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = defaultChatURL
	}

	if cfg.Chat.Model == "" {
		cfg.Chat.Model = defaultChatModel
	}

	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = defaultChatTemperature
	}

	if cfg.Chat.Timeout == 0 {
		cfg.Chat.Timeout = defaultProviderTimeout
	}
}

func setWorkerDefaults(w *WorkerConfig) {
	if w.PollInterval == 0 {
		w.PollInterval = defaultWorkerPollInterval
	}

	if w.BatchSize == 0 {
		w.BatchSize = defaultWorkerBatchSize
	}

	if w.BaseBackoff == 0 {
		w.BaseBackoff = defaultWorkerBaseBackoff
	}

	if w.MaxAttempts == 0 {
		w.MaxAttempts = defaultWorkerMaxAttempts
	}

	if w.SummarizeThresholdChars == 0 {
		w.SummarizeThresholdChars = defaultSummarizeThreshold
	}

	if w.StaleRunningAge == 0 {
		w.StaleRunningAge = defaultWorkerStaleRunningAge
	}

	if w.ReapInterval == 0 {
		w.ReapInterval = defaultWorkerReapInterval
	}
}

func setSearchDefaults(s *SearchConfig) {
	if s.TopK == 0 {
		s.TopK = defaultSearchTopK
	}

	if s.SimilarityThreshold == 0 {
		s.SimilarityThreshold = defaultSimilarityThreshold
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}

	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}
