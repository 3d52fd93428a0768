// Package config loads application configuration from an optional YAML file,
// a local .env file, and DOCCHAT_* environment variables (highest priority).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port    int `yaml:"port"`
	MCPPort int `yaml:"mcp_port"`
	// Token protects the HTTP API via bearer auth. Empty disables auth
	// (local development only).
	Token string `yaml:"token"`
}

type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	UploadsDir string `yaml:"uploads_dir"`
}

type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type ChunkingConfig struct {
	Strategy  string  `yaml:"strategy"`
	ChunkSize int     `yaml:"chunk_size"`
	Threshold float64 `yaml:"threshold"`
}

type RetrievalConfig struct {
	TopK    int          `yaml:"top_k"`
	Backend string       `yaml:"backend"` // "sqlite" or "qdrant"
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

type HistoryConfig struct {
	Limit    int `yaml:"limit"`
	TTLHours int `yaml:"ttl_hours"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    8000,
			MCPPort: 8001,
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "http://localhost:11434",
			Model:     "all-minilm",
			Dimension: 384,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "openai/gpt-oss-120b",
		},
		Chunking: ChunkingConfig{
			Strategy:  "fixed_size",
			ChunkSize: 500,
			Threshold: 0.75,
		},
		Retrieval: RetrievalConfig{
			TopK:    5,
			Backend: "sqlite",
			Qdrant: QdrantConfig{
				URL:        "http://localhost:6333",
				Collection: "docchat",
			},
		},
		History: HistoryConfig{
			Limit:    20,
			TTLHours: 24,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration: defaults, then the YAML file at path (skipped if
// missing), then .env, then DOCCHAT_* environment variables. The LLM API key
// is required.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	// .env values only fill unset environment variables.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	applyDerivedDefaults(&cfg)

	if cfg.LLM.APIKey == "" {
		return Config{}, errors.New("missing required config: LLM API key. Set llm.api_key or environment variable DOCCHAT_LLM_API_KEY")
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envString("DOCCHAT_API_TOKEN", &cfg.Server.Token)
	envInt("DOCCHAT_SERVER_PORT", &cfg.Server.Port)
	envInt("DOCCHAT_MCP_PORT", &cfg.Server.MCPPort)
	envString("DOCCHAT_DATA_DIR", &cfg.Storage.DataDir)
	envString("DOCCHAT_UPLOADS_DIR", &cfg.Storage.UploadsDir)
	envString("DOCCHAT_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	envString("DOCCHAT_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("DOCCHAT_EMBEDDING_DIMENSION", &cfg.Embedding.Dimension)
	envString("DOCCHAT_LLM_BASE_URL", &cfg.LLM.BaseURL)
	envString("DOCCHAT_LLM_API_KEY", &cfg.LLM.APIKey)
	envString("DOCCHAT_LLM_MODEL", &cfg.LLM.Model)
	envString("DOCCHAT_CHUNK_STRATEGY", &cfg.Chunking.Strategy)
	envInt("DOCCHAT_CHUNK_SIZE", &cfg.Chunking.ChunkSize)
	envFloat("DOCCHAT_CHUNK_THRESHOLD", &cfg.Chunking.Threshold)
	envInt("DOCCHAT_TOP_K", &cfg.Retrieval.TopK)
	envString("DOCCHAT_VECTOR_BACKEND", &cfg.Retrieval.Backend)
	envString("DOCCHAT_QDRANT_URL", &cfg.Retrieval.Qdrant.URL)
	envString("DOCCHAT_QDRANT_API_KEY", &cfg.Retrieval.Qdrant.APIKey)
	envString("DOCCHAT_QDRANT_COLLECTION", &cfg.Retrieval.Qdrant.Collection)
	envInt("DOCCHAT_HISTORY_LIMIT", &cfg.History.Limit)
	envInt("DOCCHAT_HISTORY_TTL_HOURS", &cfg.History.TTLHours)
	envString("DOCCHAT_LOG_LEVEL", &cfg.Log.Level)
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.Storage.UploadsDir == "" {
		cfg.Storage.UploadsDir = cfg.Storage.DataDir + "/uploads"
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
