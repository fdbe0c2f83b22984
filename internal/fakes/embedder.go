// Package fakes provides deterministic stand-ins for the embedding and
// generation services, plus a tiny PDF writer, so the pipeline can be tested
// offline.
package fakes

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// ErrEmbeddingUnavailable is returned by an Embedder with Fail set.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Embedder maps each word to a hashed dimension (bag of words), so texts
// sharing words score higher under cosine similarity.
type Embedder struct {
	Dim  int
	Fail bool

	mu    sync.Mutex
	calls int
}

func NewEmbedder() *Embedder {
	return &Embedder{Dim: 256}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.record(ctx); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := e.record(ctx); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

// CreateEmbedding lets the fake stand in for an embeddings.EmbedderClient.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedDocuments(ctx, texts)
}

// Calls reports how many embedding requests were made.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Embedder) record(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.Fail {
		return ErrEmbeddingUnavailable
	}
	return nil
}

func (e *Embedder) vector(text string) []float32 {
	dim := e.Dim
	if dim <= 0 {
		dim = 256
	}
	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(dim)]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
