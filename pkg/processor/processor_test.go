package processor_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/resumatch/pkg/processor"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases and strips punctuation",
			in:   "Senior Go Engineer, Berlin!",
			want: "senior go engineer berlin",
		},
		{
			name: "masks email",
			in:   "Contact: Jane.Doe@Example.com today",
			want: "contact EMAIL today",
		},
		{
			name: "masks phone with separators",
			in:   "call 555-123-4567 or 555.123.4567",
			want: "call PHONE or PHONE",
		},
		{
			name: "masks phone without separators",
			in:   "tel 5551234567",
			want: "tel PHONE",
		},
		{
			name: "masks urls",
			in:   "see https://github.com/jane and www.jane.dev",
			want: "see URL and URL",
		},
		{
			name: "collapses whitespace and newlines",
			in:   "  python\n\n\tgo   rust \n",
			want: "python go rust",
		},
		{
			name: "keeps unicode letters",
			in:   "Développeur Café",
			want: "développeur café",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "punctuation only",
			in:   "?!...,;",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, processor.Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"Jane Doe\njane@doe.io | 555-123-4567 | https://jane.dev\n\nSkills: Python, Go, SQL.",
		"URL EMAIL PHONE already masked",
		"HTTP servers, www-data and httpd.conf",
		"Résumé — Ünïcödé façade, 1234567890x",
		"foo@ bar @baz www.x http",
		"",
	}

	for _, in := range inputs {
		once := processor.Normalize(in)
		assert.Equal(t, once, processor.Normalize(once), "input %q", in)
	}
}

func TestNormalizeRemovesEmailSubstring(t *testing.T) {
	emails := []string{"a@b.co", "first.last+tag@sub.example.org", "X@Y"}
	for _, email := range emails {
		out := processor.Normalize("reach me at " + email + " anytime")
		assert.Contains(t, out, processor.TokenEmail)
		assert.NotContains(t, out, strings.ToLower(email))
		assert.NotContains(t, out, "@")
	}
}

func TestProcessor_SplitShortTextIsOneChunk(t *testing.T) {
	p := processor.New()

	text := processor.Normalize(strings.Repeat("python developer with go experience ", 30))
	require.Less(t, len([]rune(text)), processor.DefaultChunkSize)

	chunks, err := p.Split([]schema.Document{
		{PageContent: text, Metadata: map[string]any{"page": 1}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].PageContent)
	assert.Equal(t, 1, chunks[0].Metadata["page"])
}

func TestProcessor_SplitLongTextOverlaps(t *testing.T) {
	p := processor.New()

	var words []string
	for i := 0; i < 800; i++ {
		words = append(words, fmt.Sprintf("w%03d", i))
	}
	text := strings.Join(words, " ")

	chunks, err := p.Split([]schema.Document{
		{PageContent: text, Metadata: map[string]any{"page": 2}},
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.PageContent)), processor.DefaultChunkSize)
		assert.Equal(t, 2, c.Metadata["page"])
	}

	// The tail of one chunk reappears at the head of the next.
	first := strings.Fields(chunks[0].PageContent)
	last := first[len(first)-1]
	assert.Contains(t, " "+chunks[1].PageContent+" ", " "+last+" ")
	assert.NotEqual(t, first[0], strings.Fields(chunks[1].PageContent)[0])
}

func TestProcessor_SplitEmptyYieldsNoChunks(t *testing.T) {
	p := processor.New()

	chunks, err := p.Split(nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = p.Split([]schema.Document{{PageContent: "   "}, {PageContent: ""}})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcessor_Clean(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		RemoveStopwords: true,
		CustomStopwords: []string{"Document"},
	})
	require.NoError(t, err)

	out := p.Clean("This is a test Document. It contains the Python keyword.")
	assert.Equal(t, "this test contains python keyword", out)

	plain := processor.New()
	assert.Equal(t, "this is a test", plain.Clean("This is a TEST."))
}

func TestNewWithConfigRejectsBadOverlap(t *testing.T) {
	_, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 100, ChunkOverlap: 100})
	assert.Error(t, err)

	_, err = processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: -1})
	assert.Error(t, err)
}
