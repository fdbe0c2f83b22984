// Package engine wires loading, chunking, indexing and retrieval QA into a
// per-user Session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/resumatch/internal/models"
	"github.com/xhad/resumatch/internal/types"
	"github.com/xhad/resumatch/pkg/processor"
	"github.com/xhad/resumatch/pkg/store"
)

var (
	// ErrNotConfigured is wrapped by every precondition failure.
	ErrNotConfigured    = errors.New("not configured")
	ErrNoJobDescription = fmt.Errorf("%w: set a job description first", ErrNotConfigured)
	ErrNoDocument       = fmt.Errorf("%w: load a resume pdf first", ErrNotConfigured)
)

// StreamFunc receives generated text as it arrives.
type StreamFunc func(ctx context.Context, chunk []byte) error

type Deps struct {
	Loader   types.Loader
	Splitter types.Splitter
	Provider store.Provider
	Model    llms.Model
	// SearchLimit is the number of chunks stuffed into the prompt.
	SearchLimit int
	Logger      *slog.Logger
}

// Engine holds the collaborators shared by every Session.
type Engine struct {
	deps   Deps
	prompt prompts.PromptTemplate
}

func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Loader == nil:
		return nil, errors.New("loader is required")
	case deps.Splitter == nil:
		return nil, errors.New("splitter is required")
	case deps.Provider == nil:
		return nil, errors.New("index provider is required")
	case deps.Model == nil:
		return nil, errors.New("model is required")
	}
	if deps.SearchLimit <= 0 {
		deps.SearchLimit = store.DefaultSearchLimit
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{deps: deps, prompt: newResumePrompt()}, nil
}

// NewSession starts with no job description and no index.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e, logger: e.deps.Logger}
}

// Close releases the index provider.
func (e *Engine) Close() error {
	return e.deps.Provider.Close()
}

// Session carries one user's job description and live index. It is not
// safe for concurrent use.
type Session struct {
	engine         *Engine
	logger         *slog.Logger
	jobDescription string
	index          types.Index
}

// SetJobDescription normalizes and stores jd, replacing any previous one.
func (s *Session) SetJobDescription(jd string) {
	s.jobDescription = processor.Normalize(jd)
	s.logger.Info("job description set", "chars", len(s.jobDescription))
}

func (s *Session) JobDescription() string {
	return s.jobDescription
}

// LoadPDF replaces the session index with one built from the PDF at path
// and returns the number of chunks indexed.
func (s *Session) LoadPDF(ctx context.Context, path string) (int, error) {
	s.dropIndex(ctx)

	pages, err := s.engine.deps.Loader.Load(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to load resume: %w", err)
	}

	chunks, err := s.engine.deps.Splitter.Split(pages)
	if err != nil {
		return 0, fmt.Errorf("failed to chunk resume: %w", err)
	}

	provider := s.engine.deps.Provider
	index, err := provider.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open index: %w", err)
	}

	if len(chunks) == 0 {
		s.logger.Warn("resume produced no text chunks", "path", path)
	} else if _, err := index.AddDocuments(ctx, chunks); err != nil {
		if cerr := index.Close(); cerr != nil {
			s.logger.Warn("failed to close index", "error", cerr)
		}
		if rerr := provider.Remove(ctx); rerr != nil {
			s.logger.Warn("failed to remove index", "error", rerr)
		}
		return 0, fmt.Errorf("failed to index resume: %w", err)
	}

	s.index = index
	s.logger.Info("resume indexed", "path", path, "pages", len(pages), "chunks", len(chunks))
	return len(chunks), nil
}

// Ask answers question against the indexed résumé and the job description.
// An empty question means DefaultQuestion.
func (s *Session) Ask(ctx context.Context, question string) (*models.Analysis, error) {
	return s.ask(ctx, question, nil)
}

// AskStream is Ask with generated text delivered to fn as it arrives.
func (s *Session) AskStream(ctx context.Context, question string, fn StreamFunc) (*models.Analysis, error) {
	return s.ask(ctx, question, fn)
}

// Retrieve returns the chunks most similar to query without calling the
// model.
func (s *Session) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	if s.index == nil {
		return nil, ErrNoDocument
	}
	docs, err := s.index.SimilaritySearch(ctx, query, s.engine.deps.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chunks: %w", err)
	}
	return models.ChunksFromDocuments(docs), nil
}

// Analyze runs the whole pipeline for one job description and résumé.
func (s *Session) Analyze(ctx context.Context, jd, path string) (*models.Analysis, error) {
	s.SetJobDescription(jd)
	if _, err := s.LoadPDF(ctx, path); err != nil {
		return nil, err
	}
	return s.Ask(ctx, DefaultQuestion)
}

// Close releases the index handle. Stored chunks stay until the next
// LoadPDF in any session removes them.
func (s *Session) Close() error {
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func (s *Session) ask(ctx context.Context, question string, fn StreamFunc) (*models.Analysis, error) {
	if s.jobDescription == "" {
		return nil, ErrNoJobDescription
	}
	if s.index == nil {
		return nil, ErrNoDocument
	}
	if question == "" {
		question = DefaultQuestion
	}

	query, err := s.engine.prompt.Format(map[string]any{
		"job_description": s.jobDescription,
		"query":           question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt: %w", err)
	}

	qa := chains.NewRetrievalQA(
		chains.LoadStuffQA(s.engine.deps.Model),
		vectorstores.ToRetriever(s.index, s.engine.deps.SearchLimit),
	)
	qa.ReturnSourceDocuments = true

	var opts []chains.ChainCallOption
	if fn != nil {
		opts = append(opts, chains.WithStreamingFunc(fn))
	}

	out, err := chains.Call(ctx, qa, map[string]any{qa.InputKey: query}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to run retrieval qa: %w", err)
	}

	text, _ := out["text"].(string)
	docs, _ := out["source_documents"].([]schema.Document)

	return &models.Analysis{
		Text:    text,
		Sources: models.ChunksFromDocuments(docs),
	}, nil
}

// dropIndex clears and removes the previous index. Failures are logged and
// never stop the caller.
func (s *Session) dropIndex(ctx context.Context) {
	if s.index != nil {
		if err := s.index.Reset(ctx); err != nil {
			s.logger.Warn("failed to clear previous index", "error", err)
		}
		if err := s.index.Close(); err != nil {
			s.logger.Warn("failed to close previous index", "error", err)
		}
		s.index = nil
	}
	if err := s.engine.deps.Provider.Remove(ctx); err != nil {
		s.logger.Warn("failed to remove previous index", "error", err)
	}
}
