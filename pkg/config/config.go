package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/xhad/resumatch/pkg/llm"
	"github.com/xhad/resumatch/pkg/processor"
	"github.com/xhad/resumatch/pkg/store"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Index     IndexConfig     `yaml:"index"`
	Processor ProcessorConfig `yaml:"processor"`
	Loader    LoaderConfig    `yaml:"loader"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Server    ServerConfig    `yaml:"server"`
	UI        UIConfig        `yaml:"ui"`
}

type LLMConfig struct {
	Provider       string  `yaml:"provider"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	APIKey         string  `yaml:"api_key"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

type IndexConfig struct {
	Backend     string `yaml:"backend"`
	PersistDir  string `yaml:"persist_dir"`
	DatabaseURL string `yaml:"database_url"`
	TableName   string `yaml:"table_name"`
	VectorDim   int    `yaml:"vector_dim"`
	SearchLimit int    `yaml:"search_limit"`
}

type ProcessorConfig struct {
	ChunkSize       int  `yaml:"chunk_size"`
	ChunkOverlap    int  `yaml:"chunk_overlap"`
	RemoveStopwords bool `yaml:"remove_stopwords"`
}

type LoaderConfig struct {
	Validate bool `yaml:"validate"`
}

type ScraperConfig struct {
	RateLimit      float64 `yaml:"rate_limit"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	UserAgent      string  `yaml:"user_agent"`
}

type ServerConfig struct {
	Addr        string  `yaml:"addr"`
	TempDir     string  `yaml:"temp_dir"`
	RateLimit   float64 `yaml:"rate_limit"`
	MaxUploadMB int     `yaml:"max_upload_mb"`
}

type UIConfig struct {
	Streaming bool `yaml:"streaming"`
}

// LoadConfig reads path, or the first config file found in the default
// locations, then applies .env, environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// If no path provided, try default locations
	if path == "" {
		home, _ := os.UserHomeDir()
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(home, ".config/resumatch/config.yaml"),
			"/etc/resumatch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// loadDotEnv loads ./.env when present. Variables already set in the
// environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = llm.ProviderOpenAI
	}
	switch config.LLM.Provider {
	case llm.ProviderOpenAI:
		if config.LLM.Model == "" {
			config.LLM.Model = llm.DefaultOpenAIModel
		}
		if config.LLM.EmbeddingModel == "" {
			config.LLM.EmbeddingModel = llm.DefaultOpenAIEmbeddingModel
		}
	case llm.ProviderOllama:
		if config.LLM.Model == "" {
			config.LLM.Model = llm.DefaultOllamaModel
		}
		if config.LLM.EmbeddingModel == "" {
			config.LLM.EmbeddingModel = llm.DefaultOllamaEmbeddingModel
		}
		if config.LLM.BaseURL == "" {
			config.LLM.BaseURL = llm.DefaultOllamaURL
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}

	if config.Index.Backend == "" {
		config.Index.Backend = store.BackendDisk
	}
	if config.Index.PersistDir == "" {
		config.Index.PersistDir = store.DefaultPersistDir
	}
	if config.Index.TableName == "" {
		config.Index.TableName = store.DefaultTableName
	}
	if config.Index.SearchLimit == 0 {
		config.Index.SearchLimit = store.DefaultSearchLimit
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = processor.DefaultChunkSize
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = processor.DefaultChunkOverlap
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.TimeoutSeconds == 0 {
		config.Scraper.TimeoutSeconds = 30
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.TempDir == "" {
		config.Server.TempDir = os.TempDir()
	}
	if config.Server.RateLimit == 0 {
		config.Server.RateLimit = 1.0
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 10
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && config.LLM.Provider == llm.ProviderOllama {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DatabaseURL = dbURL
	}
	if dir := os.Getenv("RESUMATCH_INDEX_DIR"); dir != "" {
		config.Index.PersistDir = dir
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}

// ChatConfig maps the llm section onto the chat engine settings.
func (c *Config) ChatConfig() llm.ChatConfig {
	return llm.ChatConfig{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		BaseURL:     c.LLM.BaseURL,
		APIKey:      c.LLM.APIKey,
	}
}

func (c *Config) EmbedderConfig() llm.EmbedderConfig {
	return llm.EmbedderConfig{
		Provider: c.LLM.Provider,
		Model:    c.LLM.EmbeddingModel,
		BaseURL:  c.LLM.BaseURL,
		APIKey:   c.LLM.APIKey,
	}
}

func (c *Config) VectorStoreConfig() store.VectorStoreConfig {
	return store.VectorStoreConfig{
		Backend:    c.Index.Backend,
		PersistDir: c.Index.PersistDir,
		ConnString: c.Index.DatabaseURL,
		TableName:  c.Index.TableName,
		VectorDim:  c.Index.VectorDim,
	}
}

func (c *Config) ProcessorConfig() processor.ProcessorConfig {
	return processor.ProcessorConfig{
		ChunkSize:       c.Processor.ChunkSize,
		ChunkOverlap:    c.Processor.ChunkOverlap,
		RemoveStopwords: c.Processor.RemoveStopwords,
	}
}
