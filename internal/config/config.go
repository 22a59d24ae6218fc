package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendMemory   = "memory"

	StrategyWindow    = "window"
	StrategyRecursive = "recursive"

	configDirName  = ".chat_with_docs"
	configFileName = "config.yaml"
)

type LLMConfig struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	Key            string `yaml:"api_key,omitempty"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

type VectorStoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
	DSN        string `yaml:"dsn,omitempty"`
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Debug      bool   `yaml:"debug"`
}

type ChunkingConfig struct {
	Strategy string `yaml:"strategy"`
	Size     int    `yaml:"size"`
	Overlap  int    `yaml:"overlap"`
}

type EmbeddingConfig struct {
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        uint64  `yaml:"max_retries"`
}

type IngestConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type QueryConfig struct {
	TopK int `yaml:"top_k"`
}

// OCRConfig selects the tesseract binary and its language packs, e.g. "eng+deu".
type OCRConfig struct {
	Binary   string `yaml:"binary"`
	Language string `yaml:"language,omitempty"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

type Config struct {
	Provider    string            `yaml:"provider"`
	Ollama      LLMConfig         `yaml:"ollama"`
	OpenAI      LLMConfig         `yaml:"openai"`
	Gemini      LLMConfig         `yaml:"gemini"`
	DataPath    string            `yaml:"data_path"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Query       QueryConfig       `yaml:"query"`
	OCR         OCRConfig         `yaml:"ocr"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	LogLevel    string            `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Provider: ProviderOllama,
		Ollama: LLMConfig{
			BaseURL:        "http://localhost:11434",
			ChatModel:      "mistral",
			EmbeddingModel: "mxbai-embed-large",
		},
		OpenAI: LLMConfig{
			ChatModel:      "gpt-3.5-turbo",
			EmbeddingModel: "text-embedding-ada-002",
		},
		Gemini: LLMConfig{
			ChatModel:      "gemini-pro",
			EmbeddingModel: "gemini-embedding-001",
		},
		DataPath: "data",
		VectorStore: VectorStoreConfig{
			Backend:    BackendChromem,
			Path:       "chroma",
			Collection: "documents",
			Host:       "localhost",
			Port:       6334,
		},
		Chunking: ChunkingConfig{
			Strategy: StrategyWindow,
			Size:     800,
			Overlap:  80,
		},
		Embedding: EmbeddingConfig{
			BatchSize:  32,
			MaxRetries: 3,
		},
		Ingest:   IngestConfig{BatchSize: 100},
		Query:    QueryConfig{TopK: 5},
		OCR:      OCRConfig{Binary: "tesseract"},
		LogLevel: "info",
	}
}

// DefaultPath is ~/.chat_with_docs/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// LoadConfig reads the YAML file at path and merges it onto the defaults.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	merge(cfg, &fileCfg)
	if err := applyExplicitZeros(cfg, data); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyExplicitZeros honours fields where zero is a meaningful setting and
// merge cannot tell it apart from an absent key.
func applyExplicitZeros(cfg *Config, data []byte) error {
	var explicit struct {
		Chunking struct {
			Overlap *int `yaml:"overlap"`
		} `yaml:"chunking"`
	}
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return err
	}
	if explicit.Chunking.Overlap != nil {
		cfg.Chunking.Overlap = *explicit.Chunking.Overlap
	}
	return nil
}

// Load reads the file and applies environment overrides. The result is meant to be
// resolved once at start-up and passed down by value.
func Load(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides secrets and paths from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.Key = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.Key = v
	}
	if v := getenv("CHATDOCS_VECTOR_STORE_PATH"); v != "" {
		cfg.VectorStore.Path = v
	}
	if v := getenv("CHATDOCS_DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LLM returns the settings of the selected provider.
func (c *Config) LLM() LLMConfig {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAI
	case ProviderGemini:
		return c.Gemini
	default:
		return c.Ollama
	}
}

// Validate reports whether the selected provider and store have what they need.
func (c *Config) Validate() error {
	if c.VectorStore.Backend == BackendChromem && strings.TrimSpace(c.VectorStore.Path) == "" {
		return errors.New("vector_store.path is not configured")
	}
	switch c.VectorStore.Backend {
	case BackendChromem, BackendQdrant, BackendMemory:
	case BackendPGVector:
		if c.VectorStore.DSN == "" {
			return errors.New("vector_store.dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unsupported vector store backend %q", c.VectorStore.Backend)
	}

	llm := c.LLM()
	switch c.Provider {
	case ProviderOllama:
		if llm.ChatModel == "" || llm.EmbeddingModel == "" {
			return errors.New("ollama chat and embedding models must be set")
		}
	case ProviderOpenAI, ProviderGemini:
		if llm.ChatModel == "" {
			return fmt.Errorf("%s chat model must be set", c.Provider)
		}
		if llm.Key == "" {
			return fmt.Errorf("%s api key is not configured", c.Provider)
		}
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}

	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)", c.Chunking.Overlap, c.Chunking.Size)
	}
	return nil
}

// Masked returns a copy safe to print.
func (c *Config) Masked() *Config {
	out := *c
	out.OpenAI.Key = mask(c.OpenAI.Key)
	out.Gemini.Key = mask(c.Gemini.Key)
	out.Ollama.Key = mask(c.Ollama.Key)
	out.VectorStore.DSN = mask(c.VectorStore.DSN)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func merge(dst, src *Config) {
	setString(&dst.Provider, src.Provider)
	mergeLLM(&dst.Ollama, src.Ollama)
	mergeLLM(&dst.OpenAI, src.OpenAI)
	mergeLLM(&dst.Gemini, src.Gemini)
	setString(&dst.DataPath, src.DataPath)

	setString(&dst.VectorStore.Backend, src.VectorStore.Backend)
	setString(&dst.VectorStore.Path, src.VectorStore.Path)
	setString(&dst.VectorStore.Collection, src.VectorStore.Collection)
	setString(&dst.VectorStore.DSN, src.VectorStore.DSN)
	setString(&dst.VectorStore.Host, src.VectorStore.Host)
	setInt(&dst.VectorStore.Port, src.VectorStore.Port)
	dst.VectorStore.Compress = dst.VectorStore.Compress || src.VectorStore.Compress
	dst.VectorStore.Debug = dst.VectorStore.Debug || src.VectorStore.Debug

	setString(&dst.Chunking.Strategy, src.Chunking.Strategy)
	setInt(&dst.Chunking.Size, src.Chunking.Size)
	setInt(&dst.Chunking.Overlap, src.Chunking.Overlap)

	setInt(&dst.Embedding.BatchSize, src.Embedding.BatchSize)
	if src.Embedding.RequestsPerSecond > 0 {
		dst.Embedding.RequestsPerSecond = src.Embedding.RequestsPerSecond
	}
	if src.Embedding.MaxRetries > 0 {
		dst.Embedding.MaxRetries = src.Embedding.MaxRetries
	}

	setInt(&dst.Ingest.BatchSize, src.Ingest.BatchSize)
	setInt(&dst.Query.TopK, src.Query.TopK)
	setString(&dst.OCR.Binary, src.OCR.Binary)
	setString(&dst.OCR.Language, src.OCR.Language)
	setString(&dst.Metrics.Textfile, src.Metrics.Textfile)
	setString(&dst.LogLevel, src.LogLevel)
}

func mergeLLM(dst *LLMConfig, src LLMConfig) {
	setString(&dst.BaseURL, src.BaseURL)
	setString(&dst.Key, src.Key)
	setString(&dst.ChatModel, src.ChatModel)
	setString(&dst.EmbeddingModel, src.EmbeddingModel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
