// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/argus-monitor/argus/internal/metrics"
	"github.com/argus-monitor/argus/internal/models"
)

// ErrDispatcherStopped is returned by Submit after shutdown.
var ErrDispatcherStopped = errors.New("analysis: dispatcher stopped")

// Sink receives every completed (event, verdict) pair.
type Sink func(ctx context.Context, ev *models.ParsedEvent, res *models.AnalysisResult)

// Config tunes the dispatcher worker pool and its resilience wrapping.
type Config struct {
	Workers              int
	QueueSize            int
	CallTimeout          time.Duration
	MaxRetries           uint64
	RetryInitialInterval time.Duration
	RatePerSecond        float64
	BreakerFailures      uint32
	BreakerCooldown      time.Duration
}

// Dispatcher runs a worker pool that scores events. The pool is sized
// independently of parsing so a slow external call cannot starve
// parsing throughput, and the dispatcher never emits an event without a
// verdict: when the AI path fails, the fallback scorer takes over.
type Dispatcher struct {
	cfg      Config
	scorer   Scorer
	fallback *FallbackScorer
	sink     Sink

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*models.AnalysisResult]

	jobs     chan *models.ParsedEvent
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewDispatcher builds a dispatcher. scorer may be nil (no API key
// configured), in which case every event goes straight to the fallback.
func NewDispatcher(cfg Config, scorer Scorer, sink Sink) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 16
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	d := &Dispatcher{
		cfg:      cfg,
		scorer:   scorer,
		fallback: NewFallbackScorer(),
		sink:     sink,
		jobs:     make(chan *models.ParsedEvent, cfg.QueueSize),
		stopped:  make(chan struct{}),
	}

	if cfg.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	d.breaker = gobreaker.NewCircuitBreaker[*models.AnalysisResult](gobreaker.Settings{
		Name:        "analysis-scorer",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(to.String())
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Analysis circuit breaker state changed")
		},
	})

	return d
}

// Submit hands an event to the pool, blocking while the pool is busy.
func (d *Dispatcher) Submit(ctx context.Context, ev *models.ParsedEvent) error {
	select {
	case <-d.stopped:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.jobs <- ev:
		return nil
	case <-d.stopped:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve runs the worker pool until the context is cancelled. Implements
// suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	logging.Info().
		Int("workers", d.cfg.Workers).
		Bool("ai_enabled", d.scorer != nil).
		Msg("Analysis dispatcher started")

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}

	<-ctx.Done()
	d.stopOnce.Do(func() { close(d.stopped) })
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case ev := <-d.jobs:
			res := d.score(ctx, ev)
			d.sink(ctx, ev, res)
		case <-ctx.Done():
			// Drain what is already buffered so accepted events still get
			// their verdict before shutdown completes.
			for {
				select {
				case ev := <-d.jobs:
					res, _ := d.fallback.Score(ctx, ev)
					metrics.RecordAnalysis(string(models.OriginFallback), 0)
					d.sink(context.WithoutCancel(ctx), ev, res)
				default:
					return
				}
			}
		}
	}
}

// score runs the resilient AI path and falls back deterministically.
// It always returns a complete verdict.
func (d *Dispatcher) score(ctx context.Context, ev *models.ParsedEvent) *models.AnalysisResult {
	if d.scorer != nil {
		start := time.Now()
		res, err := d.scoreAI(ctx, ev)
		if err == nil {
			metrics.RecordAnalysis(string(models.OriginAI), time.Since(start))
			return res
		}
		logging.Err(err).
			Str("event_id", ev.ID.String()).
			Msg("AI scoring exhausted, using fallback scorer")
	}

	res, _ := d.fallback.Score(ctx, ev)
	metrics.RecordAnalysis(string(models.OriginFallback), 0)
	return res
}

func (d *Dispatcher) scoreAI(ctx context.Context, ev *models.ParsedEvent) (*models.AnalysisResult, error) {
	attempt := func() (*models.AnalysisResult, error) {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		res, err := d.breaker.Execute(func() (*models.AnalysisResult, error) {
			callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
			defer cancel()
			return d.scorer.Score(callCtx, ev)
		})
		if err != nil {
			// An open breaker will not recover within this event's retry
			// budget; go to the fallback immediately.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			metrics.AnalysisRetries.Inc()
			return nil, err
		}
		return res, nil
	}

	policy := backoff.NewExponentialBackOff()
	if d.cfg.RetryInitialInterval > 0 {
		policy.InitialInterval = d.cfg.RetryInitialInterval
	}
	policy.MaxElapsedTime = 0

	return backoff.RetryWithData(attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, d.cfg.MaxRetries), ctx))
}
