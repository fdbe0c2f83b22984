package models

import (
	"fmt"

	"github.com/tmc/langchaingo/schema"
)

// Metadata keys set on every page and chunk document.
const (
	MetaID         = "id"
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
)

// Chunk is a retrieved span of résumé text with its page provenance.
type Chunk struct {
	ID      string  `json:"id"`
	Page    int     `json:"page"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// Analysis is the raw model answer plus the chunks that were stuffed into
// its context.
type Analysis struct {
	Text    string  `json:"analysis"`
	Sources []Chunk `json:"sources"`
}

func ChunkFromDocument(doc schema.Document) Chunk {
	c := Chunk{
		Content: doc.PageContent,
		Score:   doc.Score,
		Page:    PageOf(doc),
	}
	if id, ok := doc.Metadata[MetaID].(string); ok {
		c.ID = id
	}
	return c
}

func ChunksFromDocuments(docs []schema.Document) []Chunk {
	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		chunks = append(chunks, ChunkFromDocument(doc))
	}
	return chunks
}

// PageOf reads the page number from document metadata. Metadata that went
// through a JSON round trip carries numbers as float64.
func PageOf(doc schema.Document) int {
	switch v := doc.Metadata[MetaPage].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}

// JobPosting is a job description fetched from the web.
type JobPosting struct {
	URL   string
	Title string
	Text  string
}
