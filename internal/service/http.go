package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ragerrors "github.com/ragindex/ragindex/internal/errors"
	"github.com/ragindex/ragindex/pkg/version"
)

// DefaultPort is the query service's default listen port.
const DefaultPort = 1411

// Server binds the Service to HTTP.
type Server struct {
	svc    *Service
	router chi.Router
	addr   string
	server *http.Server
}

// NewServer creates an HTTP server for svc listening on addr.
func NewServer(svc *Service, addr string) *Server {
	s := &Server{svc: svc, addr: addr}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/", s.handleRoot)
	r.Get("/cache/stats", s.handleStats)
	r.Post("/query", s.handleQuery)
	r.Post("/cache/reload", s.handleReload)
	r.Delete("/cache", s.handleEvictAll)
	r.Delete("/cache/*", s.handleEvict)

	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening. It blocks until the server shuts down or fails.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 320 * time.Second, // must outlive the per-query deadline
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("query service listening", slog.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return ragerrors.New(ragerrors.ErrCodePortBind,
			fmt.Sprintf("cannot serve on %s", s.addr), err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type rootResponse struct {
	Service     string   `json:"service"`
	Status      string   `json:"status"`
	CachedCount int      `json:"cached_count"`
	Paths       []string `json:"paths"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	h := s.svc.Health()
	writeJSON(w, http.StatusOK, rootResponse{
		Service:     "ragindex " + version.Version,
		Status:      h.Status,
		CachedCount: h.CachedCount,
		Paths:       h.Paths,
	})
}

type statsResponse struct {
	TotalCached int          `json:"total_cached"`
	Indices     []statsEntry `json:"indices"`
}

type statsEntry struct {
	Path      string  `json:"path"`
	LoadedAt  string  `json:"loaded_at"`
	DocsCount int     `json:"docs_count"`
	LoadTime  float64 `json:"load_time_seconds"`
	Stale     bool    `json:"stale,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.svc.Stats()
	entries := make([]statsEntry, len(stats))
	for i, e := range stats {
		entries[i] = statsEntry{
			Path:      e.Path,
			LoadedAt:  e.LoadedAt.UTC().Format(time.RFC3339),
			DocsCount: e.DocCount,
			LoadTime:  e.LoadTime.Seconds(),
			Stale:     e.Stale,
		}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalCached: len(entries),
		Indices:     entries,
	})
}

type queryRequest struct {
	PDFDirectory string `json:"pdf_directory"`
	Question     string `json:"question"`
	TopK         int    `json:"top_k"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			ragerrors.ValidationError("malformed request body", err))
		return
	}
	if req.PDFDirectory == "" {
		writeError(w, http.StatusBadRequest,
			ragerrors.ValidationError("pdf_directory is required", nil))
		return
	}

	resp, err := s.svc.Query(r.Context(), req.PDFDirectory, req.Question, req.TopK)
	if err != nil {
		writeError(w, ragerrors.HTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type evictResponse struct {
	OK      bool `json:"ok"`
	Evicted int  `json:"evicted,omitempty"`
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	path := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	ok := s.svc.Evict(path)
	if !ok {
		writeError(w, http.StatusNotFound,
			ragerrors.ValidationError("path not cached: "+path, nil))
		return
	}
	writeJSON(w, http.StatusOK, evictResponse{OK: true})
}

func (s *Server) handleEvictAll(w http.ResponseWriter, _ *http.Request) {
	n := s.svc.EvictAll()
	writeJSON(w, http.StatusOK, evictResponse{OK: true, Evicted: n})
}

type reloadRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest,
				ragerrors.ValidationError("malformed request body", err))
			return
		}
	}
	if req.Path == "" {
		// Without an explicit path, reload the sole resident entry.
		paths := s.svc.Cache().Paths()
		if len(paths) != 1 {
			writeError(w, http.StatusBadRequest,
				ragerrors.ValidationError("path is required when multiple indices are cached", nil))
			return
		}
		req.Path = paths[0]
	}

	result, err := s.svc.Reload(r.Context(), req.Path)
	if err != nil {
		writeError(w, ragerrors.HTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var re *ragerrors.RagError
	if errors.As(err, &re) {
		resp.Code = re.Code
		if len(re.Details) > 0 {
			resp.Details = re.Details
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", slog.String("error", err.Error()))
	}
}
