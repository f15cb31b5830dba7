// Package orchestrator drives the analysis pipeline: candles in, indicators,
// patterns, and a synthesized analysis out, with everything persisted.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradebot/internal/analysis"
	"tradebot/internal/cache"
	"tradebot/internal/candle"
	"tradebot/internal/indicator"
	"tradebot/internal/pattern"
	"tradebot/internal/storage"
	"tradebot/models"
)

// minCandles is the floor below which an analysis run is rejected.
const minCandles = 10

var (
	// ErrInsufficientData marks a fetch that returned too few candles to
	// analyze.
	ErrInsufficientData = errors.New("insufficient candle data")

	// ErrAnalysisInProgress is returned when a run for the same pair is
	// already active. Callers retry later instead of queueing.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
)

// Orchestrator runs on-demand analyses over a candle source and persists the
// results. At most one run per (symbol, timeframe) pair is active at a time.
type Orchestrator struct {
	source      candle.Source
	store       storage.Store
	detector    *pattern.Detector
	cache       *cache.Cache
	candleLimit int
	logger      zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New wires an orchestrator. candleLimit is the number of candles requested
// per fetch.
func New(source candle.Source, store storage.Store, resultCache *cache.Cache, candleLimit int) *Orchestrator {
	return &Orchestrator{
		source:      source,
		store:       store,
		detector:    pattern.NewDetector(),
		cache:       resultCache,
		candleLimit: candleLimit,
		logger:      log.With().Str("component", "orchestrator").Logger(),
		inFlight:    make(map[string]struct{}),
	}
}

func pairKey(symbol, timeframe string) string {
	return symbol + ":" + timeframe
}

// acquire marks the pair as running. It fails instead of blocking when a run
// is already active.
func (o *Orchestrator) acquire(symbol, timeframe string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	k := pairKey(symbol, timeframe)
	if _, busy := o.inFlight[k]; busy {
		return fmt.Errorf("%w for %s %s", ErrAnalysisInProgress, symbol, timeframe)
	}
	o.inFlight[k] = struct{}{}
	return nil
}

func (o *Orchestrator) release(symbol, timeframe string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, pairKey(symbol, timeframe))
}

// Analyze runs the full pipeline for one pair: fetch, compute indicators,
// detect patterns, synthesize, persist. The persisted result is returned and
// cached.
func (o *Orchestrator) Analyze(ctx context.Context, symbol, timeframe string) (*models.AnalysisResult, error) {
	if !models.IsValidTimeframe(timeframe) {
		return nil, fmt.Errorf("invalid timeframe %q", timeframe)
	}
	if err := o.acquire(symbol, timeframe); err != nil {
		return nil, err
	}
	defer o.release(symbol, timeframe)

	logger := o.logger.With().Str("symbol", symbol).Str("timeframe", timeframe).Logger()
	logger.Debug().Msg("fetching candles")

	candles, err := o.source.Fetch(ctx, symbol, timeframe, o.candleLimit)
	if err != nil {
		logger.Error().Err(err).Msg("candle fetch failed")
		return nil, err
	}
	if len(candles) < minCandles {
		logger.Warn().Int("candles", len(candles)).Msg("not enough data to analyze")
		return nil, fmt.Errorf("%w: got %d candles for %s %s, need %d",
			ErrInsufficientData, len(candles), symbol, timeframe, minCandles)
	}

	logger.Debug().Int("candles", len(candles)).Msg("computing indicators")
	snap := indicator.Compute(symbol, timeframe, candles)

	logger.Debug().Msg("detecting patterns")
	patterns := o.detector.Detect(symbol, timeframe, candles)

	logger.Debug().Int("patterns", len(patterns)).Msg("synthesizing analysis")
	result := analysis.Synthesize(symbol, timeframe, snap, patterns, candles)

	now := time.Now().UTC()
	snap.CreatedAt = now
	result.CreatedAt = now
	for i := range patterns {
		patterns[i].DetectedAt = now
	}

	logger.Debug().Msg("persisting results")
	if err := o.store.InsertIndicatorSnapshot(ctx, snap); err != nil {
		logger.Error().Err(err).Msg("persist failed")
		return nil, err
	}
	for _, p := range patterns {
		if err := o.store.InsertPatternMatch(ctx, p); err != nil {
			logger.Error().Err(err).Msg("persist failed")
			return nil, err
		}
	}
	if err := o.store.InsertAnalysisResult(ctx, result); err != nil {
		logger.Error().Err(err).Msg("persist failed")
		return nil, err
	}

	o.cache.Set(symbol, timeframe, &result)

	logger.Info().
		Int("signals", len(result.Signals)).
		Int("patterns", len(patterns)).
		Str("trend", string(result.TrendDirection)).
		Str("risk", string(result.RiskLevel)).
		Msg("analysis complete")
	return &result, nil
}

// LatestIndicators returns the most recent persisted indicator snapshot for
// the pair.
func (o *Orchestrator) LatestIndicators(ctx context.Context, symbol, timeframe string) (*models.IndicatorSnapshot, error) {
	return o.store.LatestIndicatorSnapshot(ctx, symbol, timeframe)
}

// LatestPatterns returns the most recent persisted pattern matches for the
// pair, newest first.
func (o *Orchestrator) LatestPatterns(ctx context.Context, symbol, timeframe string, activeOnly bool, limit int) ([]models.PatternMatch, error) {
	return o.store.LatestPatternMatches(ctx, symbol, timeframe, activeOnly, limit)
}

// LatestAnalysis returns the most recent analysis for the pair, served from
// cache when fresh.
func (o *Orchestrator) LatestAnalysis(ctx context.Context, symbol, timeframe string) (*models.AnalysisResult, error) {
	if cached := o.cache.Get(symbol, timeframe); cached != nil {
		return cached, nil
	}
	result, err := o.store.LatestAnalysisResult(ctx, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	o.cache.Set(symbol, timeframe, result)
	return result, nil
}

// TimeframeSummary condenses one timeframe's latest analysis.
type TimeframeSummary struct {
	Trend       models.Trend     `json:"trend"`
	RiskLevel   models.RiskLevel `json:"risk_level"`
	BuySignals  int              `json:"buy_signals"`
	SellSignals int              `json:"sell_signals"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Summary aggregates a symbol's latest analyses across timeframes.
type Summary struct {
	Symbol           string                      `json:"symbol"`
	Timeframes       map[string]TimeframeSummary `json:"timeframes"`
	OverallSentiment string                      `json:"overall_sentiment"`
}

// Summarize collects the latest analysis per timeframe and votes on overall
// sentiment. Timeframes with no stored analysis are skipped.
func (o *Orchestrator) Summarize(ctx context.Context, symbol string, timeframes []string) (*Summary, error) {
	summary := &Summary{
		Symbol:     symbol,
		Timeframes: make(map[string]TimeframeSummary, len(timeframes)),
	}

	bullish, bearish := 0, 0
	for _, tf := range timeframes {
		result, err := o.LatestAnalysis(ctx, symbol, tf)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		ts := TimeframeSummary{
			Trend:     result.TrendDirection,
			RiskLevel: result.RiskLevel,
			CreatedAt: result.CreatedAt,
		}
		for _, s := range result.Signals {
			switch s.Type {
			case models.SignalBuy:
				ts.BuySignals++
			case models.SignalSell:
				ts.SellSignals++
			}
		}
		summary.Timeframes[tf] = ts

		switch result.TrendDirection {
		case models.TrendBullish:
			bullish++
		case models.TrendBearish:
			bearish++
		}
	}

	switch {
	case bullish > bearish:
		summary.OverallSentiment = "bullish"
	case bearish > bullish:
		summary.OverallSentiment = "bearish"
	default:
		summary.OverallSentiment = "neutral"
	}
	return summary, nil
}
