package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"tradebot/internal/notifier"
	"tradebot/models"
)

// SchedulerConfig tunes the periodic sweep.
type SchedulerConfig struct {
	Symbols        []string
	Timeframes     []string
	Interval       time.Duration
	ErrBackoff     time.Duration
	PairsPerSecond float64
}

// Scheduler sweeps every configured (symbol, timeframe) pair on a fixed
// interval. Individual pair failures are logged and skipped; only a sweep
// where every pair failed triggers backoff.
type Scheduler struct {
	orch     *Orchestrator
	notifier notifier.Notifier
	cfg      SchedulerConfig
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// NewScheduler creates a sweep scheduler. notify may be nil.
func NewScheduler(orch *Orchestrator, notify notifier.Notifier, cfg SchedulerConfig) *Scheduler {
	if notify == nil {
		notify = notifier.Noop{}
	}
	return &Scheduler{
		orch:     orch,
		notifier: notify,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PairsPerSecond), 1),
		logger:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Run sweeps until ctx is cancelled. It blocks; callers run it in a
// goroutine or as the main loop.
func (s *Scheduler) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.ErrBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	s.logger.Info().
		Strs("symbols", s.cfg.Symbols).
		Strs("timeframes", s.cfg.Timeframes).
		Dur("interval", s.cfg.Interval).
		Msg("starting periodic sweep")

	for {
		succeeded, failed := s.sweep(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := s.cfg.Interval
		if succeeded == 0 && failed > 0 {
			wait = bo.NextBackOff()
			s.logger.Warn().
				Int("failed", failed).
				Dur("retry_in", wait).
				Msg("entire sweep failed, backing off")
		} else {
			bo.Reset()
			s.logger.Info().
				Int("succeeded", succeeded).
				Int("failed", failed).
				Msg("sweep complete")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// sweep analyzes every configured pair once, pacing requests through the
// rate limiter.
func (s *Scheduler) sweep(ctx context.Context) (succeeded, failed int) {
	for _, symbol := range s.cfg.Symbols {
		for _, tf := range s.cfg.Timeframes {
			if err := s.limiter.Wait(ctx); err != nil {
				return succeeded, failed
			}

			result, err := s.orch.Analyze(ctx, symbol, tf)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return succeeded, failed
				}
				failed++
				s.logger.Error().Err(err).
					Str("symbol", symbol).
					Str("timeframe", tf).
					Msg("pair analysis failed")
				continue
			}
			succeeded++
			s.notifyStrong(*result)
		}
	}
	return succeeded, failed
}

// notifyStrong forwards results that carry strong signals. Notification
// failures never affect the sweep.
func (s *Scheduler) notifyStrong(result models.AnalysisResult) {
	hasStrong := false
	for _, sig := range result.Signals {
		if sig.Strength == models.StrengthStrong {
			hasStrong = true
			break
		}
	}
	if !hasStrong {
		return
	}
	if err := s.notifier.NotifyStrongSignals(result); err != nil {
		s.logger.Error().Err(err).Str("symbol", result.Symbol).Msg("notification failed")
	}
}
