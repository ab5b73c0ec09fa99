package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if writeErr := os.WriteFile(path, []byte(content), 0o644); writeErr != nil {
		t.Fatalf("write config file: %v", writeErr)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfigFile(t, "database:\n  host: db.internal\n")

	cfg, loadErr := Load(path)
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}

	if cfg.Service.Port != defaultServicePort {
		t.Errorf("port = %d, want %d", cfg.Service.Port, defaultServicePort)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Database.Database != defaultDBName {
		t.Errorf("database = %q, want %q", cfg.Database.Database, defaultDBName)
	}
	if cfg.Worker.BaseBackoff != defaultWorkerBaseBackoff {
		t.Errorf("base backoff = %v, want %v", cfg.Worker.BaseBackoff, defaultWorkerBaseBackoff)
	}
	if cfg.Chat.Temperature != defaultChatTemperature {
		t.Errorf("temperature = %v, want %v", cfg.Chat.Temperature, defaultChatTemperature)
	}
	if cfg.Search.TopK != defaultSearchTopK {
		t.Errorf("top_k = %d, want %d", cfg.Search.TopK, defaultSearchTopK)
	}
}

func TestLoad_FileValuesWin(t *testing.T) {
	path := writeConfigFile(t, `
service:
  port: 9999
worker:
  poll_interval: 250ms
  max_attempts: 3
search:
  disable_query_rewrite: true
`)

	cfg, loadErr := Load(path)
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}

	if cfg.Service.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Service.Port)
	}
	if cfg.Worker.PollInterval != 250*time.Millisecond {
		t.Errorf("poll interval = %v, want 250ms", cfg.Worker.PollInterval)
	}
	if cfg.Worker.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Worker.MaxAttempts)
	}
	if cfg.Search.QueryRewriteEnabled() {
		t.Error("query rewrite should be disabled")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "database:\n  host: from-file\n")

	t.Setenv("POSTGRES_HOST", "from-env")
	t.Setenv("DOC_INDEXER_PORT", "8200")

	cfg, loadErr := Load(path)
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}

	if cfg.Database.Host != "from-env" {
		t.Errorf("host = %q, want from-env", cfg.Database.Host)
	}
	if cfg.Service.Port != 8200 {
		t.Errorf("port = %d, want 8200", cfg.Service.Port)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, loadErr := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}

	if cfg.Service.Name != defaultServiceName {
		t.Errorf("name = %q, want %q", cfg.Service.Name, defaultServiceName)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"port out of range", func(cfg *Config) { cfg.Service.Port = 70000 }},
		{"missing db host", func(cfg *Config) { cfg.Database.Host = "" }},
		{"missing collection", func(cfg *Config) { cfg.Qdrant.Collection = "" }},
		{"non-positive attempts", func(cfg *Config) { cfg.Worker.MaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			setDefaults(&cfg)
			tt.mutate(&cfg)

			if validateErr := cfg.Validate(); validateErr == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestQueryRewriteEnabled_DefaultOn(t *testing.T) {
	var cfg Config
	setDefaults(&cfg)

	if !cfg.Search.QueryRewriteEnabled() {
		t.Error("query rewrite should default to enabled")
	}
}
