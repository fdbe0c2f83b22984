// Package server exposes the analyzer as a web form, a JSON endpoint and a
// websocket.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/resumatch/internal/models"
	"github.com/xhad/resumatch/pkg/engine"
	"github.com/xhad/resumatch/pkg/loader"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errRateLimited = errors.New("too many requests, try again shortly")

type Config struct {
	// TempDir receives uploaded PDFs for the duration of one analysis.
	TempDir        string
	RateLimit      float64 // analyses per second
	MaxUploadBytes int64
	Streaming      bool
	Logger         *slog.Logger
}

// Server runs one analysis at a time against a single session.
type Server struct {
	config  Config
	engine  *engine.Engine
	session *engine.Session
	limiter *rate.Limiter
	logger  *slog.Logger

	// mu serializes every use of session.
	mu sync.Mutex
}

func New(eng *engine.Engine, config Config) *Server {
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = 10 << 20
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Server{
		config:  config,
		engine:  eng,
		session: eng.NewSession(),
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  config.Logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// Close releases the session's index handle.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Close()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexHTML)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid upload: %v", err)})
		return
	}

	params := AnalyzeParams{JobDescription: r.FormValue("job_description")}
	var data []byte
	file, header, err := r.FormFile("resume")
	if err == nil {
		defer file.Close()
		params.Filename = header.Filename
		data, err = io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("failed to read upload: %v", err)})
			return
		}
		params.Size = int64(len(data))
	}

	if errs := params.Validate(); errs != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Errors: errs})
		return
	}

	analysis, err := s.analyze(r.Context(), params.JobDescription, data, nil)
	if err != nil {
		s.logger.Error("analysis failed", "file", params.Filename, "error", err)
		writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(conn, TypeError, "invalid message", nil)
			continue
		}

		// Handled inline: a websocket connection has a single writer.
		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	var stream engine.StreamFunc
	if s.config.Streaming {
		stream = func(_ context.Context, chunk []byte) error {
			return conn.WriteJSON(Message{Type: TypeStream, Content: string(chunk)})
		}
	}

	var (
		analysis *models.Analysis
		err      error
	)
	switch msg.Type {
	case TypeAnalyze:
		encoded, _ := msg.Data.(string)
		data, decodeErr := base64.StdEncoding.DecodeString(encoded)
		params := AnalyzeParams{JobDescription: msg.Content, Filename: "upload.pdf", Size: int64(len(data))}
		if decodeErr != nil {
			s.sendMessage(conn, TypeError, "data must be a base64 encoded pdf", nil)
			return
		}
		if errs := params.Validate(); errs != nil {
			s.sendMessage(conn, TypeError, "validation failed", errs)
			return
		}
		s.sendMessage(conn, TypeStatus, "Analyzing resume", nil)
		analysis, err = s.analyze(ctx, msg.Content, data, stream)
	case TypeAsk:
		s.sendMessage(conn, TypeStatus, "Answering question", nil)
		analysis, err = s.ask(ctx, msg.Content, stream)
	default:
		s.sendMessage(conn, TypeError, fmt.Sprintf("unknown message type %q", msg.Type), nil)
		return
	}

	if err != nil {
		s.logger.Error("websocket request failed", "type", msg.Type, "error", err)
		s.sendMessage(conn, TypeError, err.Error(), nil)
		return
	}
	s.sendMessage(conn, TypeResponse, analysis.Text, analysis.Sources)
}

func (s *Server) analyze(ctx context.Context, jd string, pdf []byte, stream engine.StreamFunc) (*models.Analysis, error) {
	if !s.limiter.Allow() {
		return nil, errRateLimited
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.writeTemp(pdf)
	if err != nil {
		return nil, err
	}
	defer s.removeTemp(path)

	s.session.SetJobDescription(jd)
	if _, err := s.session.LoadPDF(ctx, path); err != nil {
		return nil, err
	}
	if stream != nil {
		return s.session.AskStream(ctx, engine.DefaultQuestion, stream)
	}
	return s.session.Ask(ctx, engine.DefaultQuestion)
}

// ask answers a follow-up question against the last analyzed résumé.
func (s *Server) ask(ctx context.Context, question string, stream engine.StreamFunc) (*models.Analysis, error) {
	if !s.limiter.Allow() {
		return nil, errRateLimited
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stream != nil {
		return s.session.AskStream(ctx, question, stream)
	}
	return s.session.Ask(ctx, question)
}

func (s *Server) writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp(s.config.TempDir, "resume-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.removeTemp(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		s.removeTemp(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), nil
}

func (s *Server) removeTemp(path string) {
	if err := os.Remove(path); err != nil {
		s.logger.Warn("failed to remove temp file", "path", path, "error", err)
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string, data any) {
	msg := Message{
		Type:    msgType,
		Content: content,
		Data:    data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending message", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrNotConfigured), errors.Is(err, loader.ErrUnreadablePDF):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
