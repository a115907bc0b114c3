// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package main is the entry point for the Argus server.
//
// Argus tails security log files, parses and categorizes each line,
// scores events with an AI-assisted analysis pipeline (with a
// deterministic rule-based fallback), and pushes analyzed events to
// websocket subscribers while persisting everything to SQLite.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, YAML file, environment)
//  2. Logging (zerolog)
//  3. SQLite store and source registry (cursors restored from disk)
//  4. Ingestion queue, health monitor, websocket hub
//  5. Analysis dispatcher and notification publisher
//  6. Supervision tree: watchers + pipeline, analysis + hub, HTTP API
//
// Shutdown on SIGINT/SIGTERM is ordered: the queue closes first so
// watchers stop producing, buffered batches drain within the configured
// grace period, then the supervision tree stops and the store closes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/argus-monitor/argus/internal/analysis"
	"github.com/argus-monitor/argus/internal/api"
	"github.com/argus-monitor/argus/internal/config"
	"github.com/argus-monitor/argus/internal/health"
	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/models"
	"github.com/argus-monitor/argus/internal/pipeline"
	"github.com/argus-monitor/argus/internal/publisher"
	"github.com/argus-monitor/argus/internal/queue"
	"github.com/argus-monitor/argus/internal/registry"
	"github.com/argus-monitor/argus/internal/report"
	"github.com/argus-monitor/argus/internal/store"
	"github.com/argus-monitor/argus/internal/supervisor"
	"github.com/argus-monitor/argus/internal/watcher"
	"github.com/argus-monitor/argus/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "argus: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	reg, err := registry.New(ctx, st)
	if err != nil {
		return fmt.Errorf("hydrating registry: %w", err)
	}
	if err := registerConfiguredSources(ctx, reg, cfg.Sources); err != nil {
		return err
	}

	var dedupe *watcher.DedupeStore
	if cfg.Watcher.DedupeEnabled {
		dedupe, err = watcher.OpenDedupe(cfg.Watcher.DedupePath, cfg.Watcher.DedupeTTL)
		if err != nil {
			return fmt.Errorf("opening dedupe store: %w", err)
		}
		defer dedupe.Close()
	}

	q := queue.New(cfg.Queue.Capacity)

	monitor := health.NewMonitor(health.Thresholds{
		QueueDepthRatio:   float64(cfg.Health.QueueDepthThreshold) / float64(cfg.Queue.Capacity),
		FallbackRate:      cfg.Health.FallbackRateThreshold,
		NotifyFailureRate: cfg.Health.NotifyFailureThreshold,
		Window:            cfg.Health.Window,
	})
	monitor.SetQueueProbe(func() (int, int) { return q.Depth(), q.Capacity() })

	hub := websocket.NewHub()
	monitor.SetSubscriberProbe(hub.ClientCount)

	pub := publisher.New(st, publisher.HubSource(hub), monitor, cfg.Notify.SendTimeout)

	var scorer analysis.Scorer
	if cfg.Analysis.APIKey != "" {
		scorer = analysis.NewAIScorer(analysis.AIConfig{
			APIKey:  cfg.Analysis.APIKey,
			BaseURL: cfg.Analysis.BaseURL,
			Model:   cfg.Analysis.Model,
		})
		logging.Info().Str("model", cfg.Analysis.Model).Msg("AI scorer enabled")
	} else {
		logging.Info().Msg("no API key configured, using rule-based scoring only")
	}

	sink := func(ctx context.Context, ev *models.ParsedEvent, res *models.AnalysisResult) {
		if err := st.InsertAnalysis(ctx, res); err != nil {
			logging.Err(err).Str("event_id", ev.ID.String()).Msg("failed to persist analysis")
		}
		monitor.RecordAnalysis(res.Origin)
		pub.Publish(ctx, ev, res)
	}
	disp := analysis.NewDispatcher(analysis.Config{
		Workers:              cfg.Analysis.Workers,
		CallTimeout:          cfg.Analysis.CallTimeout,
		MaxRetries:           uint64(cfg.Analysis.MaxRetries),
		RetryInitialInterval: cfg.Analysis.RetryInitialInterval,
		RatePerSecond:        cfg.Analysis.RatePerSecond,
		BreakerFailures:      cfg.Analysis.BreakerFailureThreshold,
		BreakerCooldown:      cfg.Analysis.BreakerCooldown,
	}, scorer, sink)

	pipe := pipeline.New(q, st, disp, monitor, cfg.Parser.Workers)

	watcherCfg := watcher.Config{
		PollInterval:       cfg.Watcher.PollInterval,
		PartialLineTimeout: cfg.Watcher.PartialLineTimeout,
		MaxBatchLines:      cfg.Watcher.MaxBatchLines,
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddIngestService(pipe)
	for _, src := range reg.List() {
		tree.AddIngestService(watcher.New(src, reg, q, dedupe, watcherCfg))
	}
	tree.AddAnalysisService(disp)
	tree.AddAnalysisService(hub)
	tree.AddAnalysisService(websocket.NewMetricsBroadcaster(hub, monitor.Gauges, cfg.Notify.MetricsInterval))

	apiServer := api.NewServer(cfg.Server, cfg.API, cfg.Notify, api.Deps{
		Store:    st,
		Registry: reg,
		Pipeline: pipe,
		Hub:      hub,
		Monitor:  monitor,
		Reports:  report.NewGenerator(st, cfg.Report.DefaultWindow, cfg.Report.MaxWindow),
		StartWatcher: func(src *models.LogSource) {
			tree.AddIngestService(watcher.New(src, reg, q, dedupe, watcherCfg))
		},
	})
	tree.AddAPIService(apiServer)

	errCh := tree.ServeBackground(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-sig:
		logging.Info().Str("signal", s.String()).Msg("shutting down")

		// Stop producers first, then give buffered batches the grace
		// period to flow through the pipeline before the tree stops.
		q.Close()
		if remaining := q.DrainDeadline(cfg.Queue.DrainGrace); remaining > 0 {
			logging.Warn().Int("remaining", remaining).Msg("queue did not drain before deadline")
		}
		cancel()
		err = <-errCh
	case err = <-errCh:
		// Tree terminated on its own.
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop in time")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("shutdown complete")
	return nil
}

func registerConfiguredSources(ctx context.Context, reg *registry.Registry, sources []config.SourceConfig) error {
	for _, sc := range sources {
		src, err := reg.EnsureRegistered(ctx, sc.Name, sc.Path)
		if err != nil {
			return fmt.Errorf("registering source %q: %w", sc.Name, err)
		}
		if src.Enabled != sc.Enabled {
			if _, err := reg.SetEnabled(ctx, src.ID, sc.Enabled); err != nil {
				return fmt.Errorf("setting source %q enabled=%v: %w", sc.Name, sc.Enabled, err)
			}
		}
	}
	return nil
}
