// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/argus-monitor/argus/internal/config"
	"github.com/argus-monitor/argus/internal/health"
	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/middleware"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/pipeline"
	"github.com/argus-monitor/argus/internal/registry"
	"github.com/argus-monitor/argus/internal/report"
	"github.com/argus-monitor/argus/internal/store"
	"github.com/argus-monitor/argus/internal/websocket"
)

// shutdownTimeout bounds the HTTP drain when no config value is set.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP API server.
type Server struct {
	serverCfg config.ServerConfig
	apiCfg    config.APIConfig
	notifyCfg config.NotifyConfig

	store    *store.Store
	registry *registry.Registry
	pipe     *pipeline.Pipeline
	hub      *websocket.Hub
	monitor  *health.Monitor
	reports  *report.Generator
	validate *validator.Validate
	upgrader gorillaws.Upgrader

	// startWatcher, when set, spins up a poll loop for a source
	// registered at runtime.
	startWatcher func(src *models.LogSource)
}

// Deps bundles the collaborators the server needs.
type Deps struct {
	Store        *store.Store
	Registry     *registry.Registry
	Pipeline     *pipeline.Pipeline
	Hub          *websocket.Hub
	Monitor      *health.Monitor
	Reports      *report.Generator
	StartWatcher func(src *models.LogSource)
}

// NewServer wires the API server.
func NewServer(serverCfg config.ServerConfig, apiCfg config.APIConfig, notifyCfg config.NotifyConfig, deps Deps) *Server {
	return &Server{
		serverCfg: serverCfg,
		apiCfg:    apiCfg,
		notifyCfg: notifyCfg,

		store:    deps.Store,
		registry: deps.Registry,
		pipe:     deps.Pipeline,
		hub:      deps.Hub,
		monitor:  deps.Monitor,
		reports:  deps.Reports,
		validate: validator.New(),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboard clients connect cross-origin in dev setups;
			// origin policy is enforced by the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startWatcher: deps.StartWatcher,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Health endpoints stay unthrottled so probes never 429.
		r.Get("/health", s.Health)
		r.Get("/health/live", s.HealthLive)
		r.Get("/health/ready", s.HealthReady)

		r.Get("/ws", s.WebSocket)

		r.Group(func(r chi.Router) {
			if s.apiCfg.RateLimitReqs > 0 {
				r.Use(httprate.Limit(
					s.apiCfg.RateLimitReqs,
					s.apiCfg.RateLimitWindow,
					httprate.WithKeyFuncs(httprate.KeyByIP),
				))
			}
			r.Use(middleware.Prometheus)
			r.Use(middleware.Compression)

			r.Post("/logs", s.IngestLog)
			r.Post("/logs/upload", s.UploadLog)
			r.Post("/logs/{id}/reprocess", s.ReprocessLog)

			r.Get("/events", s.ListEvents)
			r.Get("/events/{id}", s.GetEvent)

			r.Get("/sources", s.ListSources)
			r.Post("/sources", s.CreateSource)
			r.Post("/sources/{id}/enable", s.EnableSource)
			r.Post("/sources/{id}/disable", s.DisableSource)

			r.Get("/status", s.Status)
			r.Post("/reports/generate", s.GenerateReport)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.apiCfg.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.apiCfg.CORSOrigins
}

// String names the server in supervisor logs.
func (s *Server) String() string {
	return fmt.Sprintf("api-server-%s:%d", s.serverCfg.Host, s.serverCfg.Port)
}

// Serve runs the HTTP server until the context is cancelled, then drains
// in-flight requests. Implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.serverCfg.Host, s.serverCfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.serverCfg.ReadTimeout,
		WriteTimeout: s.serverCfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("api server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	grace := s.serverCfg.ShutdownTimeout
	if grace <= 0 {
		grace = shutdownTimeout
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logging.Err(err).Msg("api server shutdown")
	}
	return ctx.Err()
}
