// Package pattern scans candle series for heuristic chart patterns. The
// detectors are approximate: fixed confidence scores, tunable percentage
// thresholds, no statistical validation.
package pattern

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradebot/models"
)

const (
	// minObservations is the floor below which no detector runs.
	minObservations = 20
	// headShouldersMinObservations is the stricter floor for head-and-shoulders.
	headShouldersMinObservations = 30
	// peakWindow is the one-sided lookaround for local peak extraction.
	peakWindow = 10
	// levelTolerance is the relative distance treated as "testing" a level,
	// and the maximum relative difference between double-top peaks.
	levelTolerance = 0.02

	headShouldersConfidence = 0.75
	doubleTopConfidence     = 0.7
	levelTestConfidence     = 0.7
)

// Detector detects chart patterns in a candle series.
type Detector struct {
	logger zerolog.Logger
}

// NewDetector creates a pattern detector.
func NewDetector() *Detector {
	return &Detector{
		logger: log.With().Str("component", "pattern_detector").Logger(),
	}
}

// Detect returns all patterns found in the series. Detection never aborts an
// analysis run: any panic inside a detector is recovered and logged, and the
// run continues with an empty pattern list.
func (d *Detector) Detect(symbol, timeframe string, candles []models.Candle) (patterns []models.PatternMatch) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("symbol", symbol).
				Str("timeframe", timeframe).
				Interface("panic", r).
				Msg("pattern detection failed")
			patterns = nil
		}
	}()

	if len(candles) < minObservations {
		return nil
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	currentPrice := candles[len(candles)-1].Close

	peaks := extractPeaks(highs)

	if m := detectHeadAndShoulders(len(candles), peaks); m != nil {
		patterns = append(patterns, *m)
	}
	if m := detectDoubleTop(peaks); m != nil {
		patterns = append(patterns, *m)
	}
	patterns = append(patterns, detectLevelTests(highs, lows, currentPrice)...)

	for i := range patterns {
		patterns[i].Symbol = symbol
		patterns[i].Timeframe = timeframe
		patterns[i].IsActive = true
	}
	return patterns
}

// extractPeaks finds indices whose high exceeds every high in the preceding
// and following peakWindow observations.
func extractPeaks(highs []float64) []models.PeakPoint {
	var peaks []models.PeakPoint
	for i := peakWindow; i < len(highs)-peakWindow; i++ {
		if highs[i] > maxOf(highs[i-peakWindow:i]) && highs[i] > maxOf(highs[i+1:i+peakWindow+1]) {
			peaks = append(peaks, models.PeakPoint{Index: i, Price: highs[i]})
		}
	}
	return peaks
}

// detectHeadAndShoulders accepts three peaks as a match only when the tallest
// one sits temporally between the next two tallest.
func detectHeadAndShoulders(seriesLen int, peaks []models.PeakPoint) *models.PatternMatch {
	if seriesLen < headShouldersMinObservations || len(peaks) < 3 {
		return nil
	}

	byPrice := make([]models.PeakPoint, len(peaks))
	copy(byPrice, peaks)
	sort.Slice(byPrice, func(i, j int) bool { return byPrice[i].Price > byPrice[j].Price })

	head, second, third := byPrice[0], byPrice[1], byPrice[2]
	left, right := second, third
	if left.Index > right.Index {
		left, right = right, left
	}
	if !(left.Index < head.Index && head.Index < right.Index) {
		return nil
	}

	return &models.PatternMatch{
		Type:        models.PatternHeadAndShoulders,
		Confidence:  headShouldersConfidence,
		Description: "Head and Shoulders pattern detected - bearish reversal signal",
		Data: models.PatternData{
			Head:          &head,
			LeftShoulder:  &left,
			RightShoulder: &right,
		},
	}
}

// detectDoubleTop emits at most one match: the first peak pair whose prices
// lie within levelTolerance of each other.
func detectDoubleTop(peaks []models.PeakPoint) *models.PatternMatch {
	for i := 0; i < len(peaks)-1; i++ {
		for j := i + 1; j < len(peaks); j++ {
			diff := math.Abs(peaks[i].Price-peaks[j].Price) / peaks[i].Price
			if diff < levelTolerance {
				first, second := peaks[i], peaks[j]
				return &models.PatternMatch{
					Type:        models.PatternDoubleTop,
					Confidence:  doubleTopConfidence,
					Description: "Double Top pattern detected - bearish reversal signal",
					Data: models.PatternData{
						FirstPeak:  &first,
						SecondPeak: &second,
					},
				}
			}
		}
	}
	return nil
}

// detectLevelTests compares the last close against the extremes of the most
// recent peakWindow observations.
func detectLevelTests(highs, lows []float64, currentPrice float64) []models.PatternMatch {
	recentHigh := maxOf(highs[len(highs)-peakWindow:])
	recentLow := minOf(lows[len(lows)-peakWindow:])

	var patterns []models.PatternMatch
	if math.Abs(currentPrice-recentLow)/recentLow < levelTolerance {
		level := recentLow
		patterns = append(patterns, models.PatternMatch{
			Type:        models.PatternSupportTest,
			Confidence:  levelTestConfidence,
			Description: fmt.Sprintf("Price testing support level at %.2f", level),
			Data:        models.PatternData{SupportLevel: &level},
		})
	}
	if math.Abs(currentPrice-recentHigh)/recentHigh < levelTolerance {
		level := recentHigh
		patterns = append(patterns, models.PatternMatch{
			Type:        models.PatternResistanceTest,
			Confidence:  levelTestConfidence,
			Description: fmt.Sprintf("Price testing resistance level at %.2f", level),
			Data:        models.PatternData{ResistanceLevel: &level},
		})
	}
	return patterns
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		if v < m {
			m = v
		}
	}
	return m
}
