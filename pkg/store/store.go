package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/resumatch/internal/models"
	"github.com/xhad/resumatch/internal/types"
)

const (
	BackendDisk     = "disk"
	BackendPGVector = "pgvector"

	DefaultPersistDir  = "./vector_db"
	DefaultTableName   = "resume_chunks"
	DefaultSearchLimit = 4
)

type VectorStoreConfig struct {
	Backend    string
	PersistDir string
	ConnString string
	TableName  string
	// VectorDim pins the pgvector column width; 0 leaves it untyped.
	VectorDim int
}

// Provider creates the single live index for a session and tears down its
// storage when the next résumé arrives.
type Provider interface {
	Open(ctx context.Context) (types.Index, error)
	// Remove deletes the on-disk store or table backing the index.
	Remove(ctx context.Context) error
	Close() error
}

func NewProvider(ctx context.Context, config VectorStoreConfig, embedder embeddings.Embedder, logger *slog.Logger) (Provider, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch config.Backend {
	case "", BackendDisk:
		return NewDiskProvider(config.PersistDir, embedder, logger), nil
	case BackendPGVector:
		return NewPGProvider(ctx, config, embedder, logger)
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", config.Backend)
	}
}

// record is a stored chunk. Only page provenance survives indexing.
type record struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Page    int       `json:"page"`
	Source  string    `json:"source,omitempty"`
	Vector  []float32 `json:"vector"`
}

func (r record) document(score float32) schema.Document {
	return schema.Document{
		PageContent: r.Content,
		Metadata: map[string]any{
			models.MetaID:     r.ID,
			models.MetaPage:   r.Page,
			models.MetaSource: r.Source,
		},
		Score: score,
	}
}

func sourceOf(doc schema.Document) string {
	s, _ := doc.Metadata[models.MetaSource].(string)
	return s
}

func applyOptions(options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}

// dedupe drops documents the caller's Deduplicater reports as seen.
func dedupe(ctx context.Context, docs []schema.Document, opts vectorstores.Options) []schema.Document {
	if opts.Deduplicater == nil {
		return docs
	}
	kept := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		if !opts.Deduplicater(ctx, doc) {
			kept = append(kept, doc)
		}
	}
	return kept
}

func embedDocuments(ctx context.Context, embedder embeddings.Embedder, docs []schema.Document) ([][]float32, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = sanitizeUTF8(doc.PageContent)
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}
	return vectors, nil
}

// cosineSimilarity returns a value in [-1, 1]; mismatched or zero vectors
// score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

type scored struct {
	rec   record
	score float32
}

// topK sorts by descending score and keeps the first k.
func topK(matches []scored, k int) []schema.Document {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	docs := make([]schema.Document, len(matches))
	for i, m := range matches {
		docs[i] = m.rec.document(m.score)
	}
	return docs
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
