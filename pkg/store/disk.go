package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/resumatch/internal/models"
	"github.com/xhad/resumatch/internal/types"
	bolt "go.etcd.io/bbolt"
)

const indexFile = "index.db"

var chunksBucket = []byte("chunks")

// DiskStore keeps chunks and their vectors in a bbolt file and answers
// queries with an exact cosine scan. Fine for one résumé's worth of chunks.
type DiskStore struct {
	db       *bolt.DB
	path     string
	embedder embeddings.Embedder
}

var _ types.Index = (*DiskStore)(nil)

func OpenDiskStore(path string, embedder embeddings.Embedder) (*DiskStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	return &DiskStore{db: db, path: path, embedder: embedder}, nil
}

func (s *DiskStore) Path() string {
	return s.path
}

func (s *DiskStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := applyOptions(options)
	embedder := s.embedder
	if opts.Embedder != nil {
		embedder = opts.Embedder
	}

	docs = dedupe(ctx, docs, opts)
	if len(docs) == 0 {
		return nil, nil
	}

	vectors, err := embedDocuments(ctx, embedder, docs)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(chunksBucket)
		if err != nil {
			return err
		}
		for i, doc := range docs {
			rec := record{
				ID:      uuid.NewString(),
				Content: doc.PageContent,
				Page:    models.PageOf(doc),
				Source:  sourceOf(doc),
				Vector:  vectors[i],
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.ID), data); err != nil {
				return err
			}
			ids[i] = rec.ID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	return ids, nil
}

func (s *DiskStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(options)
	embedder := s.embedder
	if opts.Embedder != nil {
		embedder = opts.Embedder
	}
	if numDocuments <= 0 {
		numDocuments = DefaultSearchLimit
	}

	queryVector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var matches []scored
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(chunksBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			score := cosineSimilarity(queryVector, rec.Vector)
			if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
				return nil
			}
			matches = append(matches, scored{rec: rec, score: score})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	return topK(matches, numDocuments), nil
}

// Reset drops every stored chunk.
func (s *DiskStore) Reset(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(chunksBucket) == nil {
			return nil
		}
		return tx.DeleteBucket(chunksBucket)
	})
}

func (s *DiskStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(chunksBucket); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

func (s *DiskStore) Close() error {
	return s.db.Close()
}

// DiskProvider places the index file under a persist directory.
type DiskProvider struct {
	dir      string
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func NewDiskProvider(dir string, embedder embeddings.Embedder, logger *slog.Logger) *DiskProvider {
	if dir == "" {
		dir = DefaultPersistDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DiskProvider{dir: dir, embedder: embedder, logger: logger}
}

func (p *DiskProvider) Dir() string {
	return p.dir
}

func (p *DiskProvider) Open(ctx context.Context) (types.Index, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	s, err := OpenDiskStore(filepath.Join(p.dir, indexFile), p.embedder)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("opened disk index", "path", s.Path())
	return s, nil
}

// Remove deletes the index file and, when nothing else lives there, the
// persist directory.
func (p *DiskProvider) Remove(ctx context.Context) error {
	err := os.Remove(filepath.Join(p.dir, indexFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove index: %w", err)
	}
	// Non-empty or already gone: either way nothing to do.
	_ = os.Remove(p.dir)
	return nil
}

func (p *DiskProvider) Close() error {
	return nil
}
