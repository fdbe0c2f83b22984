package types

import (
	"context"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Core interfaces

// Index is a similarity-searchable collection of embedded chunks. It is
// single-use: a new résumé always gets a fresh Index.
type Index interface {
	vectorstores.VectorStore
	// Reset deletes every chunk and embedding held by the index.
	Reset(ctx context.Context) error
	// Count reports how many chunks the index holds.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Loader turns a PDF on disk into one normalized document per page.
type Loader interface {
	Load(ctx context.Context, path string) ([]schema.Document, error)
}

// Splitter re-splits page documents into overlapping chunks.
type Splitter interface {
	Split(pages []schema.Document) ([]schema.Document, error)
}
