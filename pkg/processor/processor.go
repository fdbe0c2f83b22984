package processor

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 150
)

type ProcessorConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	RemoveStopwords bool
	CustomStopwords []string
}

// Processor normalizes page text and splits it into overlapping chunks.
type Processor struct {
	config    ProcessorConfig
	splitter  textsplitter.TextSplitter
	stopwords map[string]struct{}
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = DefaultChunkOverlap
	}
	if config.ChunkSize < 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be non-negative and less than chunk size")
	}

	p := &Processor{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
	}

	if config.RemoveStopwords {
		p.stopwords = make(map[string]struct{})
		for _, w := range getStopwords() {
			p.stopwords[w] = struct{}{}
		}
		for _, w := range config.CustomStopwords {
			p.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}

	return p, nil
}

// New returns a Processor with the default 1500/150 window.
func New() *Processor {
	p, _ := NewWithConfig(ProcessorConfig{})
	return p
}

// Clean normalizes text and, if configured, drops stopwords.
func (p *Processor) Clean(text string) string {
	text = Normalize(text)
	if len(p.stopwords) > 0 {
		text = p.removeStopwords(text)
	}
	return text
}

// Split re-splits page documents into chunks, copying each page's metadata
// onto its chunks. Pages with no text contribute no chunks.
func (p *Processor) Split(pages []schema.Document) ([]schema.Document, error) {
	nonEmpty := make([]schema.Document, 0, len(pages))
	for _, page := range pages {
		if strings.TrimSpace(page.PageContent) == "" {
			continue
		}
		nonEmpty = append(nonEmpty, page)
	}
	if len(nonEmpty) == 0 {
		return nil, nil
	}

	docs, err := textsplitter.SplitDocuments(p.splitter, nonEmpty)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}

	chunks := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		chunks = append(chunks, doc)
	}

	return chunks, nil
}

// SplitText splits a single text; used for ad-hoc text without provenance.
func (p *Processor) SplitText(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return p.splitter.SplitText(text)
}

func (p *Processor) removeStopwords(text string) string {
	words := strings.Fields(text)
	filtered := words[:0]
	for _, word := range words {
		if _, ok := p.stopwords[word]; !ok {
			filtered = append(filtered, word)
		}
	}
	return strings.Join(filtered, " ")
}

// Common English stopwords
func getStopwords() []string {
	return []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with",
	}
}
