// Package httpapi exposes a profile over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/keeper-security/ksm-profile/internal/audit"
	"github.com/keeper-security/ksm-profile/internal/logging"
	"github.com/keeper-security/ksm-profile/internal/metrics"
	"github.com/keeper-security/ksm-profile/pkg/profile"
	"github.com/keeper-security/ksm-profile/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize caps request bodies
const maxBodySize = 4 << 20

// Server serves one profile. Requests are serialized because a profile
// is not safe for concurrent use.
type Server struct {
	mu      sync.Mutex
	profile *profile.Profile
	kind    string

	router *chi.Mux
	server *http.Server

	logger    *slog.Logger
	audit     *audit.Logger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	limiter   *RateLimiter
	startTime time.Time
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditLogger records reads and refused writes in the audit log
func WithAuditLogger(logger *audit.Logger) Option {
	return func(s *Server) {
		s.audit = logger
	}
}

// WithMetrics times data set transfers and serves gatherer on /metrics
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithBackendKind reports the backend kind in profile info
func WithBackendKind(kind string) Option {
	return func(s *Server) {
		s.kind = kind
	}
}

// WithRateLimit caps the request rate; zero or less disables limiting
func WithRateLimit(requestsPerMinute int) Option {
	return func(s *Server) {
		if requestsPerMinute > 0 {
			s.limiter = NewRateLimiter(requestsPerMinute)
		}
	}
}

// NewServer creates a server for p
func NewServer(p *profile.Profile, opts ...Option) *Server {
	s := &Server{
		profile:   p,
		router:    chi.NewRouter(),
		logger:    logging.Discard(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(s.requestLogger)
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleInfo)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/sections", func(r chi.Router) {
		r.Get("/", s.handleListSections)
		r.Get("/{section}", s.handleGetSection)
		r.Delete("/{section}", s.handleRemoveSection)

		r.Get("/{section}/entries/{entry}", s.handleGetEntry)
		r.Put("/{section}/entries/{entry}", s.handleSetEntry)
		r.Delete("/{section}/entries/{entry}", s.handleRemoveEntry)
	})

	s.router.Get("/dataset", s.handleExport)
	s.router.Put("/dataset", s.handleImport)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("starting profile server", "addr", addr, "profile", s.profile.Name())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logging.FromContext(r.Context(), s.logger).Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	info := types.ProfileInfo{
		Name:        s.profile.Name(),
		DefaultName: s.profile.DefaultName(),
		ReadOnly:    s.profile.ReadOnly(),
		Backend:     s.kind,
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sections, err := s.profile.SectionNames()
	name := s.profile.Name()
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if sections == nil {
		sections = []string{}
	}
	respondJSON(w, http.StatusOK, types.SectionList{Profile: name, Sections: sections})
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")

	s.mu.Lock()
	entries, err := s.sectionEntries(section)
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logAccess(r, section, "read_section")
	respondJSON(w, http.StatusOK, entries)
}

// sectionEntries reads a whole section; callers hold s.mu
func (s *Server) sectionEntries(section string) (*types.SectionEntries, error) {
	names, err := s.profile.EntryNames(section)
	if err != nil {
		return nil, err
	}
	if names == nil {
		return nil, fmt.Errorf("%w: section %q", errNotFound, section)
	}

	out := &types.SectionEntries{Section: section, Entries: make([]types.EntryValue, 0, len(names))}
	for _, name := range names {
		value, err := s.profile.Value(section, name)
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		out.Entries = append(out.Entries, entryValue(section, name, value))
	}
	return out, nil
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	section, entry := chi.URLParam(r, "section"), chi.URLParam(r, "entry")

	s.mu.Lock()
	value, err := s.profile.Value(section, entry)
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if value == nil {
		s.respondError(w, r, fmt.Errorf("%w: entry %s/%s", errNotFound, section, entry))
		return
	}
	s.logAccess(r, section+"/"+entry, "read_entry")
	respondJSON(w, http.StatusOK, entryValue(section, entry, value))
}

func (s *Server) handleSetEntry(w http.ResponseWriter, r *http.Request) {
	section, entry := chi.URLParam(r, "section"), chi.URLParam(r, "entry")

	var req types.SetValueRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	value, err := decodeValue(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.mu.Lock()
	err = s.profile.SetValue(section, entry, value)
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	section, entry := chi.URLParam(r, "section"), chi.URLParam(r, "entry")

	s.mu.Lock()
	err := s.profile.RemoveEntry(section, entry)
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveSection(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")

	s.mu.Lock()
	err := s.profile.RemoveSection(section)
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func entryValue(section, entry string, value any) types.EntryValue {
	return types.EntryValue{
		Section: section,
		Entry:   entry,
		Type:    reflect.TypeOf(value).String(),
		Value:   value,
	}
}

func (s *Server) logAccess(r *http.Request, resource, action string) {
	if s.audit == nil {
		return
	}
	s.mu.Lock()
	name := s.profile.Name()
	s.mu.Unlock()

	event := audit.AccessEvent(resource, action, name, true, map[string]interface{}{
		"remote": r.RemoteAddr,
	})
	s.audit.LogWithCorrelation(event, middleware.GetReqID(r.Context()))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
