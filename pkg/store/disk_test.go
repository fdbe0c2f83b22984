package store_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/resumatch/internal/fakes"
	"github.com/xhad/resumatch/internal/models"
	"github.com/xhad/resumatch/pkg/store"
)

func testChunks() []schema.Document {
	return []schema.Document{
		{PageContent: "senior python developer django flask", Metadata: map[string]any{"page": 1, "source": "cv.pdf"}},
		{PageContent: "kubernetes helm terraform aws", Metadata: map[string]any{"page": 1, "source": "cv.pdf"}},
		{PageContent: "team lead mentoring hiring", Metadata: map[string]any{"page": 2, "source": "cv.pdf"}},
	}
}

func openDisk(t *testing.T, embedder *fakes.Embedder) *store.DiskStore {
	t.Helper()
	s, err := store.OpenDiskStore(filepath.Join(t.TempDir(), "index.db"), embedder)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDiskStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openDisk(t, fakes.NewEmbedder())

	ids, err := s.AddDocuments(ctx, testChunks())
	require.NoError(t, err)
	require.Len(t, ids, 3)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := s.SimilaritySearch(ctx, "python developer", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Contains(t, results[0].PageContent, "python")
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.Contains(t, ids, results[0].Metadata[models.MetaID])
	assert.Equal(t, 1, results[0].Metadata[models.MetaPage])
	assert.Equal(t, "cv.pdf", results[0].Metadata[models.MetaSource])
}

func TestDiskStore_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	s := openDisk(t, fakes.NewEmbedder())

	var docs []schema.Document
	for i := 0; i < 6; i++ {
		docs = append(docs, schema.Document{PageContent: "go engineer", Metadata: map[string]any{"page": i + 1}})
	}
	_, err := s.AddDocuments(ctx, docs)
	require.NoError(t, err)

	results, err := s.SimilaritySearch(ctx, "go", 0)
	require.NoError(t, err)
	assert.Len(t, results, store.DefaultSearchLimit)
}

func TestDiskStore_ScoreThreshold(t *testing.T) {
	ctx := context.Background()
	s := openDisk(t, fakes.NewEmbedder())

	_, err := s.AddDocuments(ctx, testChunks())
	require.NoError(t, err)

	results, err := s.SimilaritySearch(ctx, "python developer", 4, vectorstores.WithScoreThreshold(0.3))
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(0.3))
	}
	assert.Less(t, len(results), 3)
}

func TestDiskStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := openDisk(t, fakes.NewEmbedder())

	_, err := s.AddDocuments(ctx, testChunks())
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	results, err := s.SimilaritySearch(ctx, "python", 4)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Resetting an empty index is fine.
	assert.NoError(t, s.Reset(ctx))
}

func TestDiskStore_EmbeddingFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	embedder := fakes.NewEmbedder()
	embedder.Fail = true
	s := openDisk(t, embedder)

	_, err := s.AddDocuments(ctx, testChunks())
	require.Error(t, err)
	assert.ErrorIs(t, err, fakes.ErrEmbeddingUnavailable)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiskStore_Deduplicater(t *testing.T) {
	ctx := context.Background()
	s := openDisk(t, fakes.NewEmbedder())

	skipPageTwo := vectorstores.WithDeduplicater(func(_ context.Context, doc schema.Document) bool {
		return models.PageOf(doc) == 2
	})
	ids, err := s.AddDocuments(ctx, testChunks(), skipPageTwo)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestDiskProvider_OpenAndRemove(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vector_db")
	embedder := fakes.NewEmbedder()

	p, err := store.NewProvider(ctx, store.VectorStoreConfig{PersistDir: dir}, embedder, slog.Default())
	require.NoError(t, err)
	defer p.Close()

	idx, err := p.Open(ctx)
	require.NoError(t, err)
	_, err = idx.AddDocuments(ctx, testChunks())
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = os.Stat(filepath.Join(dir, "index.db"))
	require.NoError(t, err)

	// Contents survive a reopen until Remove.
	idx, err = p.Open(ctx)
	require.NoError(t, err)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, idx.Close())

	require.NoError(t, p.Remove(ctx))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is harmless.
	require.NoError(t, p.Remove(ctx))

	idx, err = p.Open(ctx)
	require.NoError(t, err)
	defer idx.Close()
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiskProvider_RemoveKeepsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keep := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	p := store.NewDiskProvider(dir, fakes.NewEmbedder(), nil)
	idx, err := p.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	require.NoError(t, p.Remove(ctx))
	_, err = os.Stat(keep)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "index.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewProvider_UnknownBackend(t *testing.T) {
	_, err := store.NewProvider(context.Background(), store.VectorStoreConfig{Backend: "chroma"}, fakes.NewEmbedder(), nil)
	assert.Error(t, err)

	_, err = store.NewProvider(context.Background(), store.VectorStoreConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestNewProvider_PGVectorRequiresURL(t *testing.T) {
	_, err := store.NewProvider(context.Background(), store.VectorStoreConfig{Backend: store.BackendPGVector}, fakes.NewEmbedder(), nil)
	assert.Error(t, err)
}
