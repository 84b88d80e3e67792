// Package server provides the HTTP server for the kinesmooth trajectory
// smoothing service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/kinesmooth/internal/app"
	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/plugin"
	"github.com/ayusman/kinesmooth/internal/server/api"
	"github.com/ayusman/kinesmooth/internal/store"
)

// DefaultCacheTTL is how long the latest run of a trajectory stays cached.
const DefaultCacheTTL = 10 * time.Minute

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	// Smoothing is used by the stateless /api/smooth endpoint. When nil the
	// App's settings are used, or defaults without an App.
	Smoothing *config.SmoothingConfig
	CacheTTL  time.Duration
}

// Server represents the HTTP server for the kinesmooth application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	cache  *api.RunCache
	stream *RunStreamHandler

	closeOnce sync.Once
	stopFeed  func()
	feedDone  chan struct{}
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		cache:  api.NewRunCache(ttl),
	}
	s.setupRoutes()
	s.startCacheFeed()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	smoothing := s.config.Smoothing
	if smoothing == nil && s.config.App != nil {
		smoothing = s.config.App.SmoothingConfig()
	}
	s.mux.Handle("/api/smooth", api.NewSmoothHandler(smoothing))

	if s.config.Store != nil {
		var smoother api.Smoother
		var plugins *plugin.Manager
		if s.config.App != nil {
			smoother = s.config.App
			plugins = s.config.App.PluginManager()
		}

		trajectoryHandler := api.NewTrajectoryHandler(s.config.Store, s.cache)
		runsHandler := api.NewRunsHandler(s.config.Store, smoother, s.cache)

		// Route /api/trajectories/{id}/smooth and /runs[/...] to the runs handler.
		trajectoryRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/smooth") ||
				strings.HasSuffix(r.URL.Path, "/runs") ||
				strings.Contains(r.URL.Path, "/runs/") {
				runsHandler.ServeHTTP(w, r)
				return
			}
			trajectoryHandler.ServeHTTP(w, r)
		})

		s.mux.Handle("/api/trajectories", trajectoryRouter)
		s.mux.Handle("/api/trajectories/", trajectoryRouter)

		exportHandler := api.NewExportHandler(s.config.Store, plugins)
		s.mux.Handle("/api/exports", exportHandler)
		s.mux.Handle("/api/exports/", exportHandler)
	}

	if s.config.App != nil {
		s.mux.HandleFunc("/api/plugins", s.handlePlugins)
		s.stream = NewRunStreamHandler(s.config.App)
		s.mux.Handle("/api/stream", s.stream)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// startCacheFeed keeps the latest-run cache current with runs completed in
// the background.
func (s *Server) startCacheFeed() {
	if s.config.App == nil {
		return
	}

	runs, cancel := s.config.App.Subscribe()
	s.stopFeed = cancel
	s.feedDone = make(chan struct{})

	go func() {
		defer close(s.feedDone)
		for run := range runs {
			s.cache.Set(run)
		}
	}()
}

// Close disconnects stream clients and stops feeding the cache. It does not
// stop the App.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.stream != nil {
			s.stream.Close()
		}
		if s.stopFeed != nil {
			s.stopFeed()
			<-s.feedDone
		}
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// handlePlugins handles GET /api/plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := s.config.App.PluginManager().List()
	response := struct {
		Plugins []pluginResponse `json:"plugins"`
	}{Plugins: make([]pluginResponse, 0, len(plugins))}

	for _, p := range plugins {
		actions := p.Manifest.Actions
		if actions == nil {
			actions = []string{}
		}
		response.Plugins = append(response.Plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     actions,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Run serves on addr until ctx is cancelled, then closes the server and shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
