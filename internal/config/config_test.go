package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCCHAT_LLM_API_KEY", "test-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 8001 {
		t.Errorf("Server.MCPPort = %d, want 8001", cfg.Server.MCPPort)
	}
	if cfg.Chunking.Strategy != "fixed_size" || cfg.Chunking.ChunkSize != 500 {
		t.Errorf("chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Retrieval.Backend != "sqlite" || cfg.Retrieval.TopK != 5 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.History.Limit != 20 || cfg.History.TTLHours != 24 {
		t.Errorf("history defaults: %+v", cfg.History)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Errorf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("DOCCHAT_LLM_API_KEY", "test-key")

	path := filepath.Join(t.TempDir(), "docchat.yaml")
	content := `
server:
  port: 9090
chunking:
  strategy: semantic
  threshold: 0.8
retrieval:
  backend: qdrant
  qdrant:
    url: http://qdrant:6333
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Chunking.Strategy != "semantic" || cfg.Chunking.Threshold != 0.8 {
		t.Errorf("chunking from file: %+v", cfg.Chunking)
	}
	if cfg.Retrieval.Qdrant.URL != "http://qdrant:6333" {
		t.Errorf("Qdrant.URL = %q", cfg.Retrieval.Qdrant.URL)
	}
	// Values the file doesn't mention keep their defaults.
	if cfg.Chunking.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d, want default 500", cfg.Chunking.ChunkSize)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("DOCCHAT_LLM_API_KEY", "env-key")
	t.Setenv("DOCCHAT_SERVER_PORT", "7070")
	t.Setenv("DOCCHAT_CHUNK_STRATEGY", "semantic")
	t.Setenv("DOCCHAT_CHUNK_THRESHOLD", "0.9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Chunking.Strategy != "semantic" {
		t.Errorf("Chunking.Strategy = %q", cfg.Chunking.Strategy)
	}
	if cfg.Chunking.Threshold != 0.9 {
		t.Errorf("Chunking.Threshold = %v", cfg.Chunking.Threshold)
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("DOCCHAT_LLM_API_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "DOCCHAT_LLM_API_KEY") {
		t.Errorf("error should mention the env variable, got: %v", err)
	}
}

func TestUploadsDirDerivedFromDataDir(t *testing.T) {
	t.Setenv("DOCCHAT_LLM_API_KEY", "test-key")
	t.Setenv("DOCCHAT_DATA_DIR", "/var/lib/docchat")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.UploadsDir != "/var/lib/docchat/uploads" {
		t.Errorf("UploadsDir = %q", cfg.Storage.UploadsDir)
	}

	t.Setenv("DOCCHAT_UPLOADS_DIR", "/tmp/uploads")
	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with explicit uploads dir: %v", err)
	}
	if cfg.Storage.UploadsDir != "/tmp/uploads" {
		t.Errorf("explicit UploadsDir = %q", cfg.Storage.UploadsDir)
	}
}

func TestMalformedYAML(t *testing.T) {
	t.Setenv("DOCCHAT_LLM_API_KEY", "test-key")

	path := filepath.Join(t.TempDir(), "docchat.yaml")
	if err := os.WriteFile(path, []byte("server: [not: a map\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}
