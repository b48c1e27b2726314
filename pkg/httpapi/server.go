// Package httpapi serves a read-only HTTP API over the active catalog of a
// registry. Every request reads the catalog once, so a reload that lands
// mid-request never mixes two catalogs in one response.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

// Server represents the catalog API server
type Server struct {
	router   *mux.Router
	registry *catalog.Registry
	config   *ServerConfig
	server   *http.Server
}

// ServerConfig holds the configuration for the API server
type ServerConfig struct {
	Host string
	Port int
}

// ParseAddr builds a config from a host:port address.
func ParseAddr(addr string) (*ServerConfig, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid port in address %q", addr)
	}
	return &ServerConfig{Host: host, Port: port}, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewServer creates an API server over registry
func NewServer(registry *catalog.Registry, config *ServerConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router:   mux.NewRouter(),
		registry: registry,
		config:   config,
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/catalog", s.handleCatalog).Methods("GET")
	api.HandleFunc("/plugins", s.handleListPlugins).Methods("GET")
	api.HandleFunc("/plugins/{id}", s.handleGetPlugin).Methods("GET")
	api.HandleFunc("/plugins/{id}/entities", s.handleEntities).Methods("GET")
	api.HandleFunc("/plugins/{id}/{category}/{entity}", s.handleEntityBody).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// CatalogInfo describes the active catalog.
type CatalogInfo struct {
	Name     string    `json:"name"`
	Digest   string    `json:"digest"`
	Plugins  int       `json:"plugins"`
	Origin   string    `json:"origin,omitempty"`
	LoadedAt time.Time `json:"loadedAt"`
}

// EntityBody is the JSON form of a loaded entity.
type EntityBody struct {
	Ref         string         `json:"ref"`
	Description string         `json:"description,omitempty"`
	Activation  string         `json:"activation,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	Text        string         `json:"text"`
}

// active returns the catalog or writes 503 when none is loaded.
func (s *Server) active(w http.ResponseWriter, r *http.Request) (*catalog.Catalog, bool) {
	c, err := s.registry.Active()
	if err != nil {
		s.writeErrorResponse(r.Context(), w, http.StatusServiceUnavailable, "no catalog loaded", nil)
		return nil, false
	}
	return c, true
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	c := s.registry.Current()
	if c == nil {
		s.writeErrorResponse(r.Context(), w, http.StatusServiceUnavailable, "no catalog loaded", nil)
		return
	}
	s.writeJSONResponse(r.Context(), w, map[string]any{
		"status": "ok",
		"digest": c.Digest().String(),
	})
}

// handleCatalog handles GET /api/catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	c, ok := s.active(w, r)
	if !ok {
		return
	}
	s.writeJSONResponse(r.Context(), w, CatalogInfo{
		Name:     c.Name(),
		Digest:   c.Digest().String(),
		Plugins:  c.Len(),
		Origin:   c.Origin(),
		LoadedAt: c.LoadedAt(),
	})
}

// handleListPlugins handles GET /api/plugins
func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	c, ok := s.active(w, r)
	if !ok {
		return
	}

	category := r.URL.Query().Get("category")
	plugins := make([]catalog.PluginSummary, 0, c.Len())
	for _, p := range c.Plugins() {
		if category != "" && p.Category != category {
			continue
		}
		plugins = append(plugins, p)
	}

	s.writeJSONResponse(r.Context(), w, map[string]any{
		"digest":  c.Digest().String(),
		"plugins": plugins,
	})
}

// handleGetPlugin handles GET /api/plugins/{id}
func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	c, ok := s.active(w, r)
	if !ok {
		return
	}

	p, err := c.Resolve(mux.Vars(r)["id"])
	if err != nil {
		s.writeLookupError(r.Context(), w, err)
		return
	}
	s.writeJSONResponse(r.Context(), w, p)
}

// handleEntities handles GET /api/plugins/{id}/entities
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	c, ok := s.active(w, r)
	if !ok {
		return
	}

	set, err := c.EntitiesFor(mux.Vars(r)["id"])
	if err != nil {
		s.writeLookupError(r.Context(), w, err)
		return
	}
	s.writeJSONResponse(r.Context(), w, set)
}

// handleEntityBody handles GET /api/plugins/{id}/{category}/{entity}
func (s *Server) handleEntityBody(w http.ResponseWriter, r *http.Request) {
	c, ok := s.active(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	kind, valid := manifest.ParseEntityKind(vars["category"])
	if !valid {
		s.writeErrorResponse(r.Context(), w, http.StatusBadRequest,
			fmt.Sprintf("unknown entity category %q", vars["category"]), nil)
		return
	}

	ref := catalog.Ref{Plugin: vars["id"], Kind: kind, Entity: vars["entity"]}
	ctx := logger.WithFields(r.Context(), logrus.Fields{"ref": ref.String()})
	body, err := c.LoadEntityBody(ctx, ref)
	if err != nil {
		s.writeLookupError(ctx, w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		s.writeJSONResponse(ctx, w, EntityBody{
			Ref:         ref.String(),
			Description: body.Description,
			Activation:  body.Activation,
			Meta:        body.Meta,
			Text:        body.Text,
		})
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("X-Catalog-Digest", c.Digest().String())
	if _, err := w.Write(body.Raw); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to write entity body")
	}
}

func (s *Server) writeLookupError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeErrorResponse(ctx, w, http.StatusNotFound, err.Error(), nil)
		return
	}
	s.writeErrorResponse(ctx, w, http.StatusInternalServerError, "lookup failed", err)
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(ctx context.Context, w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(ctx).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(ctx context.Context, w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(ctx).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(ctx).WithError(err).Error("failed to encode error response")
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := s.config.Addr()

	s.server = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	presenter.Info(fmt.Sprintf("Serving catalog API on http://%s", address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "API server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
