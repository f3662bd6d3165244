package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"

	BackendChromem  = "chromem"
	BackendPostgres = "postgres"

	DriverPgdriver = "pgdriver"
	DriverPQ       = "pq"
)

const (
	defaultProvider       = ProviderGoogleAI
	defaultInferenceModel = "gemini-1.5-flash"
	defaultEmbeddingModel = "embedding-001"
	defaultTimeout        = 60 * time.Second
	defaultChunkSize      = 1000
	defaultChunkOverlap   = 200
	defaultTopK           = 4
	defaultStoreRoot      = "./indexes"
	defaultLogLevel       = "info"
	defaultLogFile        = "./logs/document-chat.log"
)

// LLMConfig describes one remote model endpoint.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Key         string        `yaml:"key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	StoreRoot     string `yaml:"store_root"`
	Backend       string `yaml:"backend"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := newConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config holding only the built-in defaults.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(&cfg)
	return &cfg
}

// newConfig presets the fields whose zero value is a valid setting, so YAML
// only overrides them when the key is present.
func newConfig() Config {
	return Config{RAG: RAGConfig{ChunkOverlap: defaultChunkOverlap}}
}

func applyEnv(cfg *Config) {
	for _, name := range []string{"LLM_API_KEY", "GOOGLE_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			cfg.LLM.Key = v
			break
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.EmbedLLM.Model = v
	}
	if v := os.Getenv("STORE_ROOT"); v != "" {
		cfg.RAG.StoreRoot = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = defaultProvider
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultInferenceModel
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = defaultTimeout
	}
	// answers are always generated deterministically
	cfg.LLM.Temperature = 0

	// the embedding endpoint shares the chat endpoint unless configured apart
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = cfg.LLM.Provider
	}
	if cfg.EmbedLLM.Key == "" {
		cfg.EmbedLLM.Key = cfg.LLM.Key
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == cfg.LLM.Provider {
		cfg.EmbedLLM.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = defaultEmbeddingModel
	}
	if cfg.EmbedLLM.Timeout == 0 {
		cfg.EmbedLLM.Timeout = cfg.LLM.Timeout
	}

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.StoreRoot == "" {
		cfg.RAG.StoreRoot = defaultStoreRoot
	}
	if cfg.RAG.Backend == "" {
		cfg.RAG.Backend = BackendChromem
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaultLogFile
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, validateLLM("llm", &c.LLM)...)
	errs = append(errs, validateLLM("embed_llm", &c.EmbedLLM)...)

	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap))
	}
	if c.RAG.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK))
	}
	switch c.RAG.Backend {
	case BackendChromem:
		if strings.TrimSpace(c.RAG.StoreRoot) == "" {
			errs = append(errs, errors.New("rag.store_root is required"))
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres backend"))
		}
		if c.Database.Driver != DriverPgdriver && c.Database.Driver != DriverPQ {
			errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rag.backend %q", c.RAG.Backend))
	}
	if n := len(c.RAG.EncryptionKey); n != 0 && n != 32 {
		errs = append(errs, fmt.Errorf("rag.encryption_key must be 32 bytes, got %d", n))
	}
	return errors.Join(errs...)
}

func validateLLM(section string, c *LLMConfig) []error {
	var errs []error
	switch c.Provider {
	case ProviderGoogleAI, ProviderOpenAI:
		if c.Key == "" {
			errs = append(errs, fmt.Errorf("%s.key is required for provider %s (set LLM_API_KEY or GOOGLE_API_KEY)", section, c.Provider))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown %s.provider %q", section, c.Provider))
	}
	if c.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", section))
	}
	return errs
}
