package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/resumatch/internal/fakes"
	"github.com/xhad/resumatch/pkg/llm"
)

func TestNewWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  llm.ChatConfig
		wantErr error
		fails   bool
	}{
		{
			name:   "ollama with defaults",
			config: llm.ChatConfig{Provider: llm.ProviderOllama},
		},
		{
			name:   "openai with key",
			config: llm.ChatConfig{Provider: llm.ProviderOpenAI, APIKey: "sk-test"},
		},
		{
			name:    "openai without key",
			config:  llm.ChatConfig{Provider: llm.ProviderOpenAI},
			wantErr: llm.ErrMissingAPIKey,
			fails:   true,
		},
		{
			name:    "default provider needs a key",
			config:  llm.ChatConfig{},
			wantErr: llm.ErrMissingAPIKey,
			fails:   true,
		},
		{
			name:   "temperature too high",
			config: llm.ChatConfig{Provider: llm.ProviderOllama, Temperature: 2.5},
			fails:  true,
		},
		{
			name:   "negative max tokens",
			config: llm.ChatConfig{Provider: llm.ProviderOllama, MaxTokens: -1},
			fails:  true,
		},
		{
			name:   "unknown provider",
			config: llm.ChatConfig{Provider: "carrier-pigeon"},
			fails:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := llm.NewWithConfig(tt.config)
			if tt.fails {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, engine)
		})
	}
}

func TestNewWithConfigDefaults(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{Provider: llm.ProviderOllama})
	require.NoError(t, err)

	cfg := engine.Config()
	assert.Equal(t, llm.DefaultOllamaModel, cfg.Model)
	assert.Equal(t, llm.DefaultOllamaURL, cfg.BaseURL)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.Zero(t, cfg.Temperature)
}

func TestChatEngine_DelegatesToModel(t *testing.T) {
	model := fakes.NewLLM("fit score 8/10")
	engine := llm.NewWithModel(llm.ChatConfig{Temperature: 0.2}, model)

	out, err := engine.Call(context.Background(), "how good is this resume")
	require.NoError(t, err)
	assert.Equal(t, "fit score 8/10", out)
	assert.Equal(t, "how good is this resume", model.LastPrompt())
}

func TestChatEngine_WrapsErrors(t *testing.T) {
	model := fakes.NewLLM("")
	model.Fail = true
	engine := llm.NewWithModel(llm.ChatConfig{}, model)

	_, err := engine.GenerateContent(context.Background(), []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "hi"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fakes.ErrGenerationUnavailable)
}

func TestChatEngine_OllamaRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"mistral","message":{"role":"assistant","content":"strong match"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    llm.ProviderOllama,
		BaseURL:     srv.URL,
		Temperature: 0.5,
	})
	require.NoError(t, err)

	out, err := engine.Call(context.Background(), "analyze")
	require.NoError(t, err)
	assert.Equal(t, "strong match", out)

	assert.Equal(t, llm.DefaultOllamaModel, body["model"])
	options, ok := body["options"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.5, options["temperature"], 1e-6)
}
