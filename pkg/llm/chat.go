package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultOllamaModel = "mistral"
)

// ErrMissingAPIKey is returned when a hosted provider has no credential.
var ErrMissingAPIKey = errors.New("missing api key")

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	APIKey      string
}

// ChatEngine is an llms.Model that applies the configured temperature and
// token limit to every call. Per-call options still win.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

var _ llms.Model = (*ChatEngine)(nil)

// NewWithConfig creates a new ChatEngine for the configured provider.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case ProviderOpenAI:
		if config.APIKey == "" {
			return nil, fmt.Errorf("%w: set OPENAI_API_KEY or llm.api_key", ErrMissingAPIKey)
		}
		if config.Model == "" {
			config.Model = DefaultOpenAIModel
		}
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	case ProviderOllama:
		if config.Model == "" {
			config.Model = DefaultOllamaModel
		}
		if config.BaseURL == "" {
			config.BaseURL = DefaultOllamaURL
		}
		model, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{config: config, llm: model}, nil
}

// NewWithModel wraps an existing model with the config's call defaults.
func NewWithModel(config ChatConfig, model llms.Model) *ChatEngine {
	return &ChatEngine{config: config, llm: model}
}

func (ce *ChatEngine) Config() ChatConfig {
	return ce.config
}

func (ce *ChatEngine) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	resp, err := ce.llm.GenerateContent(ctx, messages, ce.callOptions(options)...)
	if err != nil {
		return resp, fmt.Errorf("chat error: %w", err)
	}
	return resp, nil
}

func (ce *ChatEngine) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, ce, prompt, options...)
}

func (ce *ChatEngine) callOptions(options []llms.CallOption) []llms.CallOption {
	defaults := []llms.CallOption{llms.WithTemperature(ce.config.Temperature)}
	if ce.config.MaxTokens > 0 {
		defaults = append(defaults, llms.WithMaxTokens(ce.config.MaxTokens))
	}
	return append(defaults, options...)
}
