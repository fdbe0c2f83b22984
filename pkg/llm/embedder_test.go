package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/resumatch/internal/fakes"
	"github.com/xhad/resumatch/pkg/llm"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: llm.ProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultOllamaEmbeddingModel, emb.Config.Model)

	emb, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: llm.ProviderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultOpenAIEmbeddingModel, emb.Config.Model)

	_, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: llm.ProviderOpenAI})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	_, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: "nope"})
	assert.Error(t, err)
}

func TestEmbedder_BatchesThroughClient(t *testing.T) {
	client := fakes.NewEmbedder()
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{BatchSize: 2}, client)
	require.NoError(t, err)

	texts := []string{"first chunk", "second chunk", "third\nchunk"}
	vectors, err := emb.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, client.Dim)
	}
	// Two batches of at most two texts.
	assert.Equal(t, 2, client.Calls())

	q, err := emb.EmbedQuery(context.Background(), "third chunk")
	require.NoError(t, err)
	assert.Equal(t, vectors[2], q)
}

func TestEmbedder_PropagatesClientErrors(t *testing.T) {
	client := fakes.NewEmbedder()
	client.Fail = true
	emb, err := llm.NewEmbedderWithClient(llm.EmbedderConfig{}, client)
	require.NoError(t, err)

	_, err = emb.EmbedDocuments(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, fakes.ErrEmbeddingUnavailable)
}
