package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/resumatch/internal/models"
	"github.com/xhad/resumatch/internal/types"
	"github.com/xhad/resumatch/pkg/processor"
)

// ErrUnreadablePDF marks input that could not be parsed as a PDF.
var ErrUnreadablePDF = errors.New("unreadable pdf")

type LoaderConfig struct {
	// Validate runs a relaxed structural check before extraction.
	Validate bool
}

// Loader turns a PDF into one normalized document per non-empty page.
type Loader struct {
	config    LoaderConfig
	processor *processor.Processor
	logger    *slog.Logger
}

var _ types.Loader = (*Loader)(nil)

func NewWithConfig(config LoaderConfig, proc *processor.Processor, logger *slog.Logger) *Loader {
	if proc == nil {
		proc = processor.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{config: config, processor: proc, logger: logger}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{}, nil, nil)
}

// Load reads the PDF at path.
func (l *Loader) Load(ctx context.Context, path string) ([]schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	return l.LoadBytes(ctx, path, data)
}

// LoadBytes extracts pages from an in-memory PDF; name is recorded as the
// source of every page.
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) ([]schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.config.Validate {
		if err := validate(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnreadablePDF, name, err)
		}
	}

	texts, err := extractPages(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadablePDF, name, err)
	}

	docs := make([]schema.Document, 0, len(texts))
	for i, text := range texts {
		cleaned := l.processor.Clean(text)
		if cleaned == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: cleaned,
			Metadata: map[string]any{
				models.MetaSource:     name,
				models.MetaPage:       i + 1,
				models.MetaTotalPages: len(texts),
			},
		})
	}

	l.logger.Debug("loaded pdf", "source", name, "pages", len(texts), "kept", len(docs))
	return docs, nil
}

func validate(data []byte) error {
	model.ConfigPath = "disable"
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.Validate(bytes.NewReader(data), conf)
}

// extractPages returns the raw text of every page, "" for pages without a
// content object. The pdf package panics on some malformed input.
func extractPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	if len(data) == 0 {
		return nil, errors.New("empty file")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := reader.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages[i-1] = strings.TrimSpace(text)
	}
	return pages, nil
}
