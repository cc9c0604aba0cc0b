// Package api serves the leaderboard over HTTP.
package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
)

// Server handles HTTP requests
type Server struct {
	store        leaderboard.Store
	errorHandler *ErrorHandler
	logger       *log.Logger
	audit        *AuditLogger
	submitToken  string
	timeout      time.Duration
	startTime    time.Time
}

// Option configures a Server
type Option func(*Server)

// WithLogger replaces the request logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAuditOutput sends audit events to w
func WithAuditOutput(w io.Writer) Option {
	return func(s *Server) { s.audit = NewAuditLogger(w) }
}

// WithSubmitToken requires token on write routes
func WithSubmitToken(token string) Option {
	return func(s *Server) { s.submitToken = token }
}

// WithTimeout bounds each request
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer creates a new API server backed by store
func NewServer(store leaderboard.Store, opts ...Option) *Server {
	s := &Server{
		store:     store,
		logger:    log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile),
		timeout:   15 * time.Second,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = NewAuditLogger(nil)
	}
	s.errorHandler = NewErrorHandler(s.logger, s.audit)
	return s
}

// Audit returns the server's audit logger
func (s *Server) Audit() *AuditLogger { return s.audit }

// Routes sets up the HTTP routes with middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)

	r.Route("/api/leaderboard", func(r chi.Router) {
		r.Get("/", s.handleLeaderboard)
		r.Get("/summary", s.handleSummary)
		r.Get("/player/{address}", s.handlePlayer)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireSubmitToken)
			r.Post("/submit", s.handleSubmit)
			r.Post("/nft-minted", s.handleNFTMinted)
		})
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Server-Version", Version)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("response_encode_failed status=%d error=%q", status, err)
	}
}
