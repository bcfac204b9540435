// Package server is a development stand-in for the interaction backend.
// It serves the same endpoints over SQLite with a deterministic extractor.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/hcplog/internal/devbackend/extract"
	"github.com/thebtf/hcplog/internal/devbackend/store"
)

// APIPrefix is where the interaction endpoints are mounted.
const APIPrefix = "/api/v1"

// requestIDHeader matches the header the client sends.
const requestIDHeader = "X-Request-ID"

// Service serves the backend API.
type Service struct {
	store     *store.Store
	extractor *extract.Extractor
	router    chi.Router
	startTime time.Time

	mu     sync.Mutex
	server *http.Server
}

// New creates a Service over st.
func New(st *store.Store, ex *extract.Extractor) *Service {
	if ex == nil {
		ex = extract.New(nil)
	}
	s := &Service{
		store:     st,
		extractor: ex,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Use(requestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors)

	s.router.Get("/health", s.handleHealth)
	s.router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/log_interaction", s.handleLogInteraction)
		r.Post("/fill_form_with_ai", s.handleFillForm)
		r.Put("/update_interaction/{logID}", s.handleUpdateInteraction)
		r.Post("/save_manual", s.handleSaveManual)
		r.Post("/chat_with_ai", s.handleChatWithAI)
		r.Post("/chat", s.handleChat)
		r.Get("/interactions", s.handleListInteractions)
		r.Get("/interactions/{logID}", s.handleGetInteraction)
	})
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Service) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	log.Info().Str("addr", addr).Msg("Development backend listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// requestID propagates the caller's request id, or assigns one, and logs the request.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("requestId", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("Request served")
	})
}

// cors allows the browser front end on another port.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
