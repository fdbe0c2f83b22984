package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobPage = `
<html>
	<head><title>Backend Engineer - Acme</title><style>.x{color:red}</style></head>
	<body>
		<nav>Home Jobs About</nav>
		<header>Acme Careers</header>
		<div class="job-description">
			<h1>Backend Engineer</h1><p>Requirements:</p><ul><li>Python</li><li>PostgreSQL</li></ul>
			<script>trackVisitor()</script>
		</div>
		<footer>Privacy Policy</footer>
	</body>
</html>`

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		RateLimit: 1.0,
		Timeout:   10 * time.Second,
	}

	s := NewWithConfig(config)
	assert.Equal(t, config.RateLimit, s.config.RateLimit)
	assert.Equal(t, 10*time.Second, s.client.Timeout)
	assert.NotEmpty(t, s.config.UserAgent)

	d := New()
	assert.Equal(t, 30*time.Second, d.client.Timeout)
	assert.Equal(t, 2.0, d.config.RateLimit)
}

func TestFetchWithMockServer(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(jobPage))
	}))
	defer server.Close()

	var progressed []string
	s := NewWithConfig(ScraperConfig{
		RateLimit:  10,
		OnProgress: func(url string) { progressed = append(progressed, url) },
	})

	posting, err := s.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, server.URL, posting.URL)
	assert.Equal(t, "Backend Engineer - Acme", posting.Title)
	assert.Equal(t, "Backend Engineer Requirements: Python PostgreSQL", posting.Text)
	assert.NotContains(t, posting.Text, "trackVisitor")
	assert.NotContains(t, posting.Text, "Acme Careers")
	assert.Equal(t, []string{server.URL}, progressed)
	assert.Equal(t, "resumatch/1.0", userAgent)
}

func TestFetchFallsBackToBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><nav>menu</nav><div>Go developer</div><div>Remote, EU</div></body></html>`))
	}))
	defer server.Close()

	posting, err := New().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Go developer Remote, EU", posting.Text)
}

func TestFetchPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Data engineer\n\n  Spark,   Airflow\n"))
	}))
	defer server.Close()

	posting, err := New().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Data engineer Spark, Airflow", posting.Text)
	assert.Empty(t, posting.Title)
}

func TestFetchErrors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><script>x()</script></body></html>`))
	}))
	defer empty.Close()

	s := NewWithConfig(ScraperConfig{RateLimit: 100})

	tests := []struct {
		name        string
		url         string
		unsupported bool
	}{
		{name: "ftp scheme", url: "ftp://example.com/job", unsupported: true},
		{name: "relative", url: "/jobs/1", unsupported: true},
		{name: "garbage", url: "::not a url", unsupported: true},
		{name: "not found", url: notFound.URL},
		{name: "no text", url: empty.URL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Fetch(context.Background(), tt.url)
			require.Error(t, err)
			if tt.unsupported {
				assert.ErrorIs(t, err, ErrUnsupportedURL)
			} else {
				assert.NotErrorIs(t, err, ErrUnsupportedURL)
			}
		})
	}
}

func TestFetchHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Fetch(ctx, server.URL)
	assert.Error(t, err)
}
