package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, "chroma", cfg.VectorStore.Path)
	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 80, cfg.Chunking.Overlap)
	assert.Equal(t, 100, cfg.Ingest.BatchSize)
	assert.Equal(t, 5, cfg.Query.TopK)
}

func TestLoadConfig_MergesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`provider: openai
openai:
  chat_model: gpt-4o
vector_store:
  path: /tmp/store
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-ada-002", cfg.OpenAI.EmbeddingModel, "unset fields keep defaults")
	assert.Equal(t, "/tmp/store", cfg.VectorStore.Path)
	assert.Equal(t, BackendChromem, cfg.VectorStore.Backend)
}

func TestLoadConfig_ExplicitZeroOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`chunking:
  size: 500
  overlap: 0
ocr:
  language: eng+deu
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 0, cfg.Chunking.Overlap)
	assert.Equal(t, "eng+deu", cfg.OCR.Language)
	assert.Equal(t, "tesseract", cfg.OCR.Binary)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Provider = ProviderGemini
	cfg.Gemini.Key = "secret"

	require.NoError(t, Save(path, cfg))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, loaded.Provider)
	assert.Equal(t, "secret", loaded.Gemini.Key)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"OPENAI_API_KEY":             "sk-test",
		"CHATDOCS_VECTOR_STORE_PATH": "/var/lib/store",
	}
	ApplyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "sk-test", cfg.OpenAI.Key)
	assert.Equal(t, "/var/lib/store", cfg.VectorStore.Path)
	assert.Empty(t, cfg.Gemini.Key)
	assert.Equal(t, "data", cfg.DataPath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "openai without key", mutate: func(c *Config) { c.Provider = ProviderOpenAI }, wantErr: true},
		{name: "openai with key", mutate: func(c *Config) { c.Provider = ProviderOpenAI; c.OpenAI.Key = "k" }},
		{name: "gemini without key", mutate: func(c *Config) { c.Provider = ProviderGemini }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "bard" }, wantErr: true},
		{name: "empty store path", mutate: func(c *Config) { c.VectorStore.Path = " " }, wantErr: true},
		{name: "pgvector without dsn", mutate: func(c *Config) { c.VectorStore.Backend = BackendPGVector }, wantErr: true},
		{name: "memory backend", mutate: func(c *Config) { c.VectorStore.Backend = BackendMemory }},
		{name: "unknown backend", mutate: func(c *Config) { c.VectorStore.Backend = "faiss" }, wantErr: true},
		{name: "overlap too large", mutate: func(c *Config) { c.Chunking.Overlap = 800 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMasked(t *testing.T) {
	cfg := Default()
	cfg.OpenAI.Key = "sk-abcdef123456"

	masked := cfg.Masked()
	assert.NotEqual(t, cfg.OpenAI.Key, masked.OpenAI.Key)
	assert.Equal(t, "sk", masked.OpenAI.Key[:2])
	assert.Equal(t, "sk-abcdef123456", cfg.OpenAI.Key, "original is untouched")
}
