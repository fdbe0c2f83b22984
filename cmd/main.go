package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/resumatch/internal/models"
	cfgPkg "github.com/xhad/resumatch/pkg/config"
	"github.com/xhad/resumatch/pkg/engine"
	"github.com/xhad/resumatch/pkg/llm"
	"github.com/xhad/resumatch/pkg/loader"
	"github.com/xhad/resumatch/pkg/processor"
	"github.com/xhad/resumatch/pkg/scraper"
	"github.com/xhad/resumatch/pkg/store"
	"github.com/xhad/resumatch/server"
)

type Flags struct {
	ConfigPath  string
	Resume      string
	JD          string
	JDFile      string
	JDURL       string
	Question    string
	Provider    string
	Model       string
	IndexDir    string
	Streaming   bool
	Interactive bool
	Serve       bool
	Addr        string
	Verbose     bool
}

func main() {
	flags := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func parseFlags() Flags {
	var flags Flags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.Resume, "resume", "", "Resume PDF to analyze")
	flag.StringVar(&flags.JD, "jd", "", "Job description text")
	flag.StringVar(&flags.JDFile, "jd-file", "", "File containing the job description")
	flag.StringVar(&flags.JDURL, "jd-url", "", "URL of a job posting to use as the job description")
	flag.StringVar(&flags.Question, "question", "", "Question to ask instead of the default analysis")
	flag.StringVar(&flags.Provider, "provider", "", "LLM provider (openai or ollama)")
	flag.StringVar(&flags.Model, "model", "", "LLM model to use")
	flag.StringVar(&flags.IndexDir, "index-dir", "", "Directory for the on-disk index")
	flag.BoolVar(&flags.Streaming, "stream", false, "Stream the answer as it is generated")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Ask follow-up questions about the same resume")
	flag.BoolVar(&flags.Serve, "serve", false, "Run the web server")
	flag.StringVar(&flags.Addr, "addr", "", "Address for the web server")
	flag.BoolVar(&flags.Verbose, "v", false, "Verbose logging")
	flag.Parse()

	return flags
}

// loadConfig reads the config file and lets command line flags override it.
func loadConfig(flags Flags) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	if flags.Provider != "" && flags.Provider != cfg.LLM.Provider {
		cfg.LLM.Provider = flags.Provider
		switch flags.Provider {
		case llm.ProviderOllama:
			cfg.LLM.Model = llm.DefaultOllamaModel
			cfg.LLM.EmbeddingModel = llm.DefaultOllamaEmbeddingModel
			if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
				cfg.LLM.BaseURL = baseURL
			} else {
				cfg.LLM.BaseURL = llm.DefaultOllamaURL
			}
		case llm.ProviderOpenAI:
			cfg.LLM.Model = llm.DefaultOpenAIModel
			cfg.LLM.EmbeddingModel = llm.DefaultOpenAIEmbeddingModel
			cfg.LLM.BaseURL = ""
		}
	}
	if flags.Model != "" {
		cfg.LLM.Model = flags.Model
	}
	if flags.IndexDir != "" {
		cfg.Index.PersistDir = flags.IndexDir
	}
	if flags.Addr != "" {
		cfg.Server.Addr = flags.Addr
	}
	if flags.Streaming {
		cfg.UI.Streaming = true
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}
	return cfg, nil
}

func buildEngine(ctx context.Context, cfg *cfgPkg.Config, logger *slog.Logger) (*engine.Engine, error) {
	chatEngine, err := llm.NewWithConfig(cfg.ChatConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	proc, err := processor.NewWithConfig(cfg.ProcessorConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	provider, err := store.NewProvider(ctx, cfg.VectorStoreConfig(), embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	eng, err := engine.New(engine.Deps{
		Loader:      loader.NewWithConfig(loader.LoaderConfig{Validate: cfg.Loader.Validate}, proc, logger),
		Splitter:    proc,
		Provider:    provider,
		Model:       chatEngine,
		SearchLimit: cfg.Index.SearchLimit,
		Logger:      logger,
	})
	if err != nil {
		provider.Close()
		return nil, err
	}
	return eng, nil
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// spin animates a spinner until the returned stop function is called.
func spin(description string) func() {
	bar := getSpinner(description)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				bar.Finish()
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()

	var once bool
	return func() {
		if once {
			return
		}
		once = true
		close(done)
		<-stopped
	}
}

func run(ctx context.Context, flags Flags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if flags.Verbose || flags.Serve {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	eng, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	if flags.Serve {
		return serve(ctx, cfg, eng, logger)
	}

	if flags.Resume == "" {
		return errors.New("-resume is required (or use -serve)")
	}
	jd, err := jobDescription(ctx, cfg, flags)
	if err != nil {
		return err
	}

	session := eng.NewSession()
	defer session.Close()
	session.SetJobDescription(jd)

	stopSpinner := spin(" Indexing resume...")
	chunks, err := session.LoadPDF(ctx, flags.Resume)
	stopSpinner()
	if err != nil {
		return err
	}
	color.Green("✓ Indexed %s into %d chunks", flags.Resume, chunks)

	if err := answer(ctx, session, flags.Question, cfg.UI.Streaming); err != nil {
		return err
	}

	if flags.Interactive {
		return followUp(ctx, session, cfg.UI.Streaming)
	}
	return nil
}

func serve(ctx context.Context, cfg *cfgPkg.Config, eng *engine.Engine, logger *slog.Logger) error {
	srv := server.New(eng, server.Config{
		TempDir:        cfg.Server.TempDir,
		RateLimit:      cfg.Server.RateLimit,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Streaming:      cfg.UI.Streaming,
		Logger:         logger,
	})
	defer srv.Close()

	color.Cyan("Serving resume analyzer on %s", cfg.Server.Addr)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func jobDescription(ctx context.Context, cfg *cfgPkg.Config, flags Flags) (string, error) {
	switch {
	case flags.JD != "":
		return flags.JD, nil
	case flags.JDFile != "":
		data, err := os.ReadFile(flags.JDFile)
		if err != nil {
			return "", fmt.Errorf("failed to read job description: %w", err)
		}
		return string(data), nil
	case flags.JDURL != "":
		s := scraper.NewWithConfig(scraper.ScraperConfig{
			RateLimit: cfg.Scraper.RateLimit,
			Timeout:   time.Duration(cfg.Scraper.TimeoutSeconds) * time.Second,
			UserAgent: cfg.Scraper.UserAgent,
			OnProgress: func(url string) {
				color.Blue("Fetching %s", url)
			},
		})
		stopSpinner := spin(" Fetching job posting...")
		posting, err := s.Fetch(ctx, flags.JDURL)
		stopSpinner()
		if err != nil {
			return "", err
		}
		if posting.Title != "" {
			color.Green("✓ Job posting: %s", posting.Title)
		}
		return posting.Text, nil
	default:
		return "", errors.New("a job description is required: use -jd, -jd-file or -jd-url")
	}
}

func answer(ctx context.Context, session *engine.Session, question string, streaming bool) error {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	if !streaming {
		stopSpinner := spin(" Analyzing...")
		analysis, err := session.Ask(ctx, question)
		stopSpinner()
		if err != nil {
			return err
		}
		assistantPrompt("\nAssistant:\n")
		fmt.Println(analysis.Text)
		printSources(analysis.Sources)
		return nil
	}

	stopSpinner := spin(" Thinking...")
	firstChunk := true
	analysis, err := session.AskStream(ctx, question, func(_ context.Context, chunk []byte) error {
		// Clear spinner on first chunk
		if firstChunk {
			stopSpinner()
			firstChunk = false
			assistantPrompt("\nAssistant:\n")
		}
		fmt.Print(string(chunk))
		return nil
	})
	stopSpinner()
	fmt.Print("\n")
	if err != nil {
		return err
	}
	printSources(analysis.Sources)
	return nil
}

func printSources(sources []models.Chunk) {
	if len(sources) == 0 {
		return
	}
	pages := make([]string, 0, len(sources))
	for _, src := range sources {
		pages = append(pages, fmt.Sprintf("p.%d (%.2f)", src.Page, src.Score))
	}
	color.HiBlack("Sources: %s", strings.Join(pages, ", "))
}

func followUp(ctx context.Context, session *engine.Session, streaming bool) error {
	color.Cyan("\nAsk follow-up questions about this resume (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.ToLower(query) == "exit" {
			return nil
		}
		if query == "" {
			continue
		}

		if err := answer(ctx, session, query, streaming); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			color.Red("Error: %v\n", err)
		}
	}
}
