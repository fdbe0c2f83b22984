package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/resumatch/internal/models"
	"golang.org/x/time/rate"
)

// ErrUnsupportedURL is returned for anything but absolute http(s) URLs.
var ErrUnsupportedURL = errors.New("unsupported url")

const maxBodyBytes = 5 << 20

type ScraperConfig struct {
	RateLimit  float64 // requests per second
	Timeout    time.Duration
	UserAgent  string
	OnProgress func(url string)
	Logger     *slog.Logger
}

// Scraper fetches job postings and reduces them to their visible text.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.UserAgent == "" {
		config.UserAgent = "resumatch/1.0"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// Fetch downloads a job posting and returns its readable text.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*models.JobPosting, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	if s.config.OnProgress != nil {
		s.config.OnProgress(rawURL)
	}

	// Apply rate limiting
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html, text/plain;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job posting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, rawURL)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	posting := &models.JobPosting{URL: rawURL}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read job posting: %w", err)
		}
		posting.Text = s.cleanContent(string(data))
	} else {
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse job posting: %w", err)
		}
		posting.Title = strings.TrimSpace(doc.Find("title").First().Text())
		posting.Text = s.extractMainContent(doc)
	}

	if posting.Text == "" {
		return nil, fmt.Errorf("no text found at %s", rawURL)
	}

	s.config.Logger.Debug("fetched job posting", "url", rawURL, "chars", len(posting.Text))
	return posting, nil
}

func (s *Scraper) cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	// Remove common noise
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Accept all cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.Join(strings.Fields(content), " ")
}

func (s *Scraper) extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, iframe, svg, form").Remove()

	// Job boards usually mark the description; fall back to generic areas
	selectors := []string{
		"[itemprop=description]",
		".job-description",
		"#job-description",
		".description",
		"main",
		"article",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = visibleText(selected)
			if strings.TrimSpace(content) != "" {
				break
			}
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = visibleText(doc.Find("body"))
	}

	return s.cleanContent(content)
}

// visibleText joins text nodes with spaces so adjacent block elements do
// not run together.
func visibleText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(sel)
	return strings.Join(parts, " ")
}
