// Package httpserver exposes the publishing service over HTTP: the JSON API,
// the post pages, the RSS feed and sitemap, and the live index stream. It is
// a thin, stateless layer over the coordinator; all state lives in the
// backing store.
package httpserver

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/peterkaminski/textpile/internal/config"
	"github.com/peterkaminski/textpile/internal/domain"
)

// Server is the HTTP server for one Textpile instance.
type Server struct {
	cfg        *config.Config
	svc        *domain.Service
	hub        *Hub
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates the HTTP server. hub may be nil to disable the live
// index stream.
func NewServer(cfg *config.Config, svc *domain.Service, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		hub:    hub,
		logger: logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/submit", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/api/remove", s.handleRemove).Methods(http.MethodPost)
	r.HandleFunc("/api/index", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/env", s.handleAdminEnv).Methods(http.MethodGet)
	r.HandleFunc("/p/{id}", s.handlePostPage).Methods(http.MethodGet)
	r.HandleFunc("/feed.xml", s.handleFeed).Methods(http.MethodGet)
	r.HandleFunc("/sitemap.xml", s.handleSitemap).Methods(http.MethodGet)
	if hub != nil {
		r.HandleFunc("/ws/index", hub.handleSocket).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, s.withBasicAuth(r)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the configured handler chain. Test helper.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	Body  string `json:"body"`
	Title string `json:"title"`
	Token string `json:"token"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Expected JSON body.")
		return
	}

	result, err := s.svc.Submit(r.Context(), req.Body, req.Title, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "Submit token required or invalid.")
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, "Body is required.")
		case errors.Is(err, domain.ErrAllocationExhausted):
			s.logger.Error("submit failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Could not allocate a post id; please retry.")
		default:
			s.logger.Error("submit failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal error.")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type removeRequest struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Expected JSON body.")
		return
	}

	if err := s.svc.Remove(r.Context(), req.ID, req.Token); err != nil {
		switch {
		case errors.Is(err, domain.ErrAdminNotConfigured):
			writeError(w, http.StatusNotImplemented, "ADMIN_TOKEN not configured.")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "Invalid admin token.")
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, "id required.")
		default:
			s.logger.Error("remove failed", "id", req.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal error.")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Post removed successfully.",
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.ReadIndex(r.Context())
	if err != nil {
		s.logger.Error("index read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
	})
}

// handleConfig serves the public display configuration consumed by the
// client-side pages.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"config": map[string]any{
			"instanceName":     s.cfg.InstanceName,
			"communityName":    s.cfg.CommunityName,
			"adminEmail":       orNil(s.cfg.AdminEmail),
			"defaultRetention": s.cfg.DefaultRetention,
			"dateFormat":       s.cfg.DateFormat,
			"timeFormat":       s.cfg.TimeFormat,
			"textpileVersion":  config.Version,
			"publicSourceZip":  s.cfg.PublicSourceZip,
			"softwareName":     config.SoftwareName,
		},
	})
}

// withBasicAuth walls the whole site behind HTTP Basic Auth when a user/pass
// pair is configured (private-community mode). /health stays reachable for
// probes.
func (s *Server) withBasicAuth(next http.Handler) http.Handler {
	if s.cfg.BasicAuthUser == "" || s.cfg.BasicAuthPass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !constantTimeEqual(user, s.cfg.BasicAuthUser) || !constantTimeEqual(pass, s.cfg.BasicAuthPass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted", charset="UTF-8"`)
			w.Header().Set("Cache-Control", "no-store")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func constantTimeEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// baseURL resolves the public base URL for absolute links: the configured
// BASE_URL when set, otherwise derived from the request.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.BaseURL != "" {
		return strings.TrimRight(s.cfg.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade work through the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}
