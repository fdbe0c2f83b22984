package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/resumatch/internal/models"
	"github.com/xhad/resumatch/internal/types"
)

// PGVector stores chunks in a PostgreSQL table with a pgvector column.
// The pool belongs to the PGProvider that opened it.
type PGVector struct {
	pool     *pgxpool.Pool
	table    string
	embedder embeddings.Embedder
}

var _ types.Index = (*PGVector)(nil)

func (vs *PGVector) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := applyOptions(options)
	embedder := vs.embedder
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

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, page, source, embedding)
		VALUES ($1, $2, $3, $4, $5)`,
		vs.table)

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := uuid.NewString()
		_, err = tx.Exec(ctx, stmt,
			id,
			sanitizeUTF8(doc.PageContent),
			models.PageOf(doc),
			sourceOf(doc),
			pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunk: %w", err)
		}
		ids[i] = id
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ids, nil
}

func (vs *PGVector) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(options)
	embedder := vs.embedder
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

	// Cosine distance is in [0, 2]; 1 - distance is the similarity.
	q := fmt.Sprintf(`
		SELECT id, content, page, source, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.table)

	rows, err := vs.pool.Query(ctx, q, pgvector.NewVector(queryVector), numDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var (
			rec   record
			score float64
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Page, &rec.Source, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if opts.ScoreThreshold > 0 && float32(score) < opts.ScoreThreshold {
			continue
		}
		docs = append(docs, rec.document(float32(score)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return docs, nil
}

func (vs *PGVector) Reset(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", vs.table))
	if err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

func (vs *PGVector) Count(ctx context.Context) (int, error) {
	var n int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", vs.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (vs *PGVector) Close() error {
	return nil
}

// PGProvider owns the connection pool and the chunk table.
type PGProvider struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	table    string
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func NewPGProvider(ctx context.Context, config VectorStoreConfig, embedder embeddings.Embedder, logger *slog.Logger) (*PGProvider, error) {
	if config.ConnString == "" {
		return nil, fmt.Errorf("database url is required for the pgvector backend")
	}
	if config.TableName == "" {
		config.TableName = DefaultTableName
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PGProvider{
		config:   config,
		pool:     pool,
		table:    pgx.Identifier{config.TableName}.Sanitize(),
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Open creates the extension and table if needed. No ANN index is built:
// an exact scan over one résumé is fast and ivfflat recall on a table
// this small is poor.
func (p *PGProvider) Open(ctx context.Context) (types.Index, error) {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	column := "vector"
	if p.config.VectorDim > 0 {
		column = fmt.Sprintf("vector(%d)", p.config.VectorDim)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			page INTEGER NOT NULL,
			source TEXT,
			embedding %s
		)`, p.table, column)

	if _, err := p.pool.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	p.logger.Debug("opened pgvector index", "table", p.config.TableName)
	return &PGVector{pool: p.pool, table: p.table, embedder: p.embedder}, nil
}

// Remove drops the chunk table.
func (p *PGProvider) Remove(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", p.table)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	return nil
}

func (p *PGProvider) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
