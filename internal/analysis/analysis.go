// Package analysis synthesizes trading signals, trend and risk
// classification, and a human-readable report from indicator and pattern
// outputs. Synthesize is a pure function: the same inputs always produce a
// byte-identical result.
package analysis

import (
	"fmt"
	"strings"

	"tradebot/models"
)

const (
	rsiOversold   = 30
	rsiOverbought = 70

	// trendBand is the hysteresis band around EMA parity. The trend flips
	// only when EMA20 leaves the +/-1% band around EMA50, which keeps the
	// classification from flapping near equality.
	trendBandUpper = 1.01
	trendBandLower = 0.99
)

// Synthesize combines indicators and patterns into a full analysis result.
// CreatedAt is left zero; the caller stamps it when the result is persisted.
func Synthesize(symbol, timeframe string, snap models.IndicatorSnapshot, patterns []models.PatternMatch, candles []models.Candle) models.AnalysisResult {
	currentPrice := candles[len(candles)-1].Close

	signals := make([]models.Signal, 0, 3)

	if snap.RSI != nil {
		switch {
		case *snap.RSI < rsiOversold:
			signals = append(signals, models.Signal{
				Type:     models.SignalBuy,
				Strength: models.StrengthStrong,
				Reason:   fmt.Sprintf("RSI oversold at %.1f", *snap.RSI),
			})
		case *snap.RSI > rsiOverbought:
			signals = append(signals, models.Signal{
				Type:     models.SignalSell,
				Strength: models.StrengthStrong,
				Reason:   fmt.Sprintf("RSI overbought at %.1f", *snap.RSI),
			})
		}
	}

	if snap.MACD != nil && snap.MACDSignal != nil {
		if *snap.MACD > *snap.MACDSignal {
			signals = append(signals, models.Signal{
				Type:     models.SignalBuy,
				Strength: models.StrengthMedium,
				Reason:   "MACD above signal line - bullish momentum",
			})
		} else {
			signals = append(signals, models.Signal{
				Type:     models.SignalSell,
				Strength: models.StrengthMedium,
				Reason:   "MACD below signal line - bearish momentum",
			})
		}
	}

	trend := TrendDirection(snap.EMA20, snap.EMA50)
	switch trend {
	case models.TrendBullish:
		signals = append(signals, models.Signal{
			Type:     models.SignalBuy,
			Strength: models.StrengthMedium,
			Reason:   "EMA 20 above EMA 50 - upward trend",
		})
	case models.TrendBearish:
		signals = append(signals, models.Signal{
			Type:     models.SignalSell,
			Strength: models.StrengthMedium,
			Reason:   "EMA 20 below EMA 50 - downward trend",
		})
	}

	return models.AnalysisResult{
		Symbol:         symbol,
		Timeframe:      timeframe,
		AnalysisText:   analysisText(symbol, currentPrice, trend, snap.RSI, len(signals)),
		Signals:        signals,
		KeyLevels:      KeyLevels(candles),
		TrendDirection: trend,
		RiskLevel:      RiskLevel(patterns),
	}
}

// TrendDirection classifies the trend from the EMA 20/50 pair. EMA20 must
// clear EMA50 by 1% in either direction; inside the band the market counts
// as sideways.
func TrendDirection(ema20, ema50 *float64) models.Trend {
	if ema20 == nil || ema50 == nil {
		return models.TrendSideways
	}
	switch {
	case *ema20 > *ema50*trendBandUpper:
		return models.TrendBullish
	case *ema20 < *ema50*trendBandLower:
		return models.TrendBearish
	default:
		return models.TrendSideways
	}
}

// KeyLevels derives support/resistance levels and the pivot point from the
// last 20 observations.
func KeyLevels(candles []models.Candle) models.KeyLevels {
	start := len(candles) - 20
	if start < 0 {
		start = 0
	}
	recentHigh := candles[start].High
	recentLow := candles[start].Low
	for _, c := range candles[start:] {
		if c.High > recentHigh {
			recentHigh = c.High
		}
		if c.Low < recentLow {
			recentLow = c.Low
		}
	}
	lastClose := candles[len(candles)-1].Close

	return models.KeyLevels{
		SupportLevels:    []float64{recentLow, lastClose * 0.95},
		ResistanceLevels: []float64{recentHigh, lastClose * 1.05},
		PivotPoint:       (recentHigh + recentLow + lastClose) / 3,
	}
}

// RiskLevel counts reversal patterns as risk factors: two or more mean high
// risk, exactly one medium, none low.
func RiskLevel(patterns []models.PatternMatch) models.RiskLevel {
	factors := 0
	for _, p := range patterns {
		if p.Type == models.PatternHeadAndShoulders || p.Type == models.PatternDoubleTop {
			factors++
		}
	}
	switch {
	case factors >= 2:
		return models.RiskHigh
	case factors == 1:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func analysisText(symbol string, currentPrice float64, trend models.Trend, rsi *float64, signalCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Technical Analysis for %s\n", symbol)
	fmt.Fprintf(&b, "Current Price: $%.2f\n", currentPrice)
	fmt.Fprintf(&b, "Trend: %s\n", title(string(trend)))
	if rsi != nil {
		status := "Neutral"
		if *rsi < rsiOversold {
			status = "Oversold"
		} else if *rsi > rsiOverbought {
			status = "Overbought"
		}
		fmt.Fprintf(&b, "RSI: %.1f (%s)\n", *rsi, status)
	}
	fmt.Fprintf(&b, "Active Signals: %d\n", signalCount)
	return b.String()
}

// title upper-cases the first letter of an ASCII word.
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
