// Package api serves read-only projections of the statistics store.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/pipeline"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// StatusProvider reports the state of background tasks.
type StatusProvider interface {
	Status() pipeline.Status
}

// Options contains configuration for creating a Server.
type Options struct {
	Store  storage.Store
	Status StatusProvider // optional
	Logger logrus.FieldLogger
}

// Server is the HTTP API server.
type Server struct {
	store  storage.Store
	status StatusProvider
	logger logrus.FieldLogger
	mux    *http.ServeMux
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	s := &Server{
		store:  opts.Store,
		status: opts.Status,
		logger: logging.OrDefault(opts.Logger).WithField("component", "api"),
		mux:    http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.health)
	s.mux.HandleFunc("GET /api/stats", s.stats)

	// /developers is the wallet-mode name of /creators.
	for _, prefix := range []string{"/api/creators", "/api/developers"} {
		s.mux.HandleFunc("GET "+prefix, s.listCreators)
		s.mux.HandleFunc("GET "+prefix+"/{id}", s.getCreator)
	}

	s.mux.HandleFunc("GET /api/coins/recent", s.recentCoins)
	s.mux.HandleFunc("GET /api/coins/{mint}", s.getCoin)
	s.mux.HandleFunc("POST /api/coins/batch", s.batchCoins)

	s.mux.HandleFunc("GET /api/search", s.search)

	s.mux.HandleFunc("GET /api/alerts", s.listAlerts)
	s.mux.HandleFunc("POST /api/alerts/{id}/read", s.markAlertRead)
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(corsMiddleware(s.mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Warn("encode response")
	}
}

func (s *Server) ok(w http.ResponseWriter, data any) {
	s.jsonResponse(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, code, message string) {
	s.jsonResponse(w, status, Envelope{Error: code, Message: message})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	s.errorResponse(w, http.StatusInternalServerError, codeInternal, "internal server error")
}
