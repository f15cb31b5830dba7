package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradebot/internal/cache"
	"tradebot/internal/storage"
	"tradebot/models"
)

type fakeSource struct {
	mu      sync.Mutex
	candles map[string][]models.Candle
	err     map[string]error
	block   chan struct{}
	started chan struct{}
	calls   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		candles: make(map[string][]models.Candle),
		err:     make(map[string]error),
	}
}

func (f *fakeSource) Fetch(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	f.mu.Lock()
	f.calls++
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := symbol + ":" + timeframe
	if err := f.err[key]; err != nil {
		return nil, err
	}
	return f.candles[key], nil
}

type fakeStore struct {
	mu        sync.Mutex
	snapshots []models.IndicatorSnapshot
	patterns  []models.PatternMatch
	analyses  []models.AnalysisResult
	failWith  error
}

func (f *fakeStore) InsertIndicatorSnapshot(ctx context.Context, snap models.IndicatorSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func (f *fakeStore) InsertPatternMatch(ctx context.Context, match models.PatternMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.patterns = append(f.patterns, match)
	return nil
}

func (f *fakeStore) InsertAnalysisResult(ctx context.Context, result models.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.analyses = append(f.analyses, result)
	return nil
}

func (f *fakeStore) LatestIndicatorSnapshot(ctx context.Context, symbol, timeframe string) (*models.IndicatorSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.snapshots) - 1; i >= 0; i-- {
		if f.snapshots[i].Symbol == symbol && f.snapshots[i].Timeframe == timeframe {
			return &f.snapshots[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) LatestPatternMatches(ctx context.Context, symbol, timeframe string, activeOnly bool, limit int) ([]models.PatternMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PatternMatch
	for i := len(f.patterns) - 1; i >= 0 && len(out) < limit; i-- {
		p := f.patterns[i]
		if p.Symbol != symbol || p.Timeframe != timeframe {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) LatestAnalysisResult(ctx context.Context, symbol, timeframe string) (*models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.analyses) - 1; i >= 0; i-- {
		if f.analyses[i].Symbol == symbol && f.analyses[i].Timeframe == timeframe {
			return &f.analyses[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) Close() error { return nil }

func risingCandles(n int) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		price := 100 + float64(i)
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price, High: price + 1, Low: price - 1, Close: price,
			Volume: 10,
		}
	}
	return out
}

func newTestOrchestrator(src *fakeSource, store *fakeStore) *Orchestrator {
	return New(src, store, cache.New(time.Minute), 100)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	src := newFakeSource()
	src.candles["BTCUSDT:1h"] = risingCandles(5)
	store := &fakeStore{}

	_, err := newTestOrchestrator(src, store).Analyze(context.Background(), "BTCUSDT", "1h")
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if len(store.analyses) != 0 {
		t.Fatal("analysis persisted despite insufficient data")
	}
}

func TestAnalyzeInvalidTimeframe(t *testing.T) {
	src := newFakeSource()
	store := &fakeStore{}

	if _, err := newTestOrchestrator(src, store).Analyze(context.Background(), "BTCUSDT", "7m"); err == nil {
		t.Fatal("Analyze with invalid timeframe returned nil error")
	}
	if src.calls != 0 {
		t.Fatal("fetch attempted for invalid timeframe")
	}
}

func TestAnalyzeShortSeriesSucceeds(t *testing.T) {
	// Ten candles: indicators with longer windows stay absent, but the run
	// still produces and persists a result.
	src := newFakeSource()
	src.candles["BTCUSDT:1h"] = risingCandles(10)
	store := &fakeStore{}
	orch := newTestOrchestrator(src, store)

	result, err := orch.Analyze(context.Background(), "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if result.Symbol != "BTCUSDT" || result.Timeframe != "1h" {
		t.Fatalf("result pair = %s %s", result.Symbol, result.Timeframe)
	}
	if result.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
	if len(store.snapshots) != 1 || len(store.analyses) != 1 {
		t.Fatalf("persisted %d snapshots, %d analyses, want 1 each",
			len(store.snapshots), len(store.analyses))
	}
	snap := store.snapshots[0]
	if snap.RSI != nil || snap.MACD != nil || snap.BBUpper != nil {
		t.Error("long-window indicators set on 10 candles, want nil")
	}
	if snap.CreatedAt.IsZero() {
		t.Error("snapshot CreatedAt not stamped")
	}
}

func TestAnalyzePersistErrorPropagates(t *testing.T) {
	src := newFakeSource()
	src.candles["BTCUSDT:1h"] = risingCandles(50)
	store := &fakeStore{failWith: &storage.PersistError{Op: "indicator snapshot", Err: errors.New("connection reset")}}

	_, err := newTestOrchestrator(src, store).Analyze(context.Background(), "BTCUSDT", "1h")
	var pe *storage.PersistError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PersistError", err)
	}
}

func TestAnalyzeRejectsConcurrentRun(t *testing.T) {
	src := newFakeSource()
	src.candles["BTCUSDT:1h"] = risingCandles(50)
	src.block = make(chan struct{})
	src.started = make(chan struct{}, 1)
	store := &fakeStore{}
	orch := newTestOrchestrator(src, store)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Analyze(context.Background(), "BTCUSDT", "1h")
		done <- err
	}()

	<-src.started
	if _, err := orch.Analyze(context.Background(), "BTCUSDT", "1h"); !errors.Is(err, ErrAnalysisInProgress) {
		t.Fatalf("concurrent Analyze err = %v, want ErrAnalysisInProgress", err)
	}

	// A different pair is not blocked.
	src.mu.Lock()
	block := src.block
	src.block = nil
	src.started = nil
	src.candles["ETHUSDT:1h"] = risingCandles(50)
	src.mu.Unlock()
	if _, err := orch.Analyze(context.Background(), "ETHUSDT", "1h"); err != nil {
		t.Fatalf("other pair Analyze err = %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first Analyze err = %v", err)
	}

	// The pair token is released after completion.
	if _, err := orch.Analyze(context.Background(), "BTCUSDT", "1h"); err != nil {
		t.Fatalf("re-run after release err = %v", err)
	}
}

func TestLatestAnalysisServesCache(t *testing.T) {
	src := newFakeSource()
	src.candles["BTCUSDT:1h"] = risingCandles(50)
	store := &fakeStore{}
	orch := newTestOrchestrator(src, store)

	want, err := orch.Analyze(context.Background(), "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	// Wipe the store: a cache hit must not touch it.
	store.mu.Lock()
	store.analyses = nil
	store.mu.Unlock()

	got, err := orch.LatestAnalysis(context.Background(), "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("LatestAnalysis returned error: %v", err)
	}
	if got != want {
		t.Fatal("LatestAnalysis did not serve the cached result")
	}

	if _, err := orch.LatestAnalysis(context.Background(), "BTCUSDT", "4h"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("LatestAnalysis for unknown pair err = %v, want ErrNotFound", err)
	}
}

func TestSummarizeMajorityVote(t *testing.T) {
	store := &fakeStore{
		analyses: []models.AnalysisResult{
			{Symbol: "BTCUSDT", Timeframe: "5m", TrendDirection: models.TrendBullish, RiskLevel: models.RiskLow,
				Signals: []models.Signal{{Type: models.SignalBuy}, {Type: models.SignalBuy}}},
			{Symbol: "BTCUSDT", Timeframe: "1h", TrendDirection: models.TrendBullish, RiskLevel: models.RiskMedium,
				Signals: []models.Signal{{Type: models.SignalSell}}},
			{Symbol: "BTCUSDT", Timeframe: "4h", TrendDirection: models.TrendBearish, RiskLevel: models.RiskHigh},
		},
	}
	orch := newTestOrchestrator(newFakeSource(), store)

	summary, err := orch.Summarize(context.Background(), "BTCUSDT", []string{"5m", "1h", "4h", "1d"})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}

	if summary.OverallSentiment != "bullish" {
		t.Errorf("sentiment = %q, want bullish", summary.OverallSentiment)
	}
	if len(summary.Timeframes) != 3 {
		t.Fatalf("got %d timeframes, want 3 (1d has no analysis)", len(summary.Timeframes))
	}
	ts := summary.Timeframes["5m"]
	if ts.BuySignals != 2 || ts.SellSignals != 0 {
		t.Errorf("5m signal counts = %d buy, %d sell", ts.BuySignals, ts.SellSignals)
	}
	if summary.Timeframes["4h"].RiskLevel != models.RiskHigh {
		t.Errorf("4h risk = %v", summary.Timeframes["4h"].RiskLevel)
	}
}

func TestSummarizeTie(t *testing.T) {
	store := &fakeStore{
		analyses: []models.AnalysisResult{
			{Symbol: "BTCUSDT", Timeframe: "1h", TrendDirection: models.TrendBullish},
			{Symbol: "BTCUSDT", Timeframe: "4h", TrendDirection: models.TrendBearish},
		},
	}
	orch := newTestOrchestrator(newFakeSource(), store)

	summary, err := orch.Summarize(context.Background(), "BTCUSDT", []string{"1h", "4h"})
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary.OverallSentiment != "neutral" {
		t.Errorf("sentiment = %q, want neutral on a tie", summary.OverallSentiment)
	}
}
