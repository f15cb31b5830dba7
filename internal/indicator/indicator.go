// Package indicator computes technical indicators over a candle series.
// All functions are pure: an indicator whose window exceeds the series
// length is reported as nil, and no NaN value ever leaves this package.
package indicator

import (
	"math"

	"tradebot/models"
)

// Compute derives the full indicator snapshot for a candle series.
// Calling it twice on the same series yields identical snapshots.
func Compute(symbol, timeframe string, candles []models.Candle) models.IndicatorSnapshot {
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	snap := models.IndicatorSnapshot{
		Symbol:    symbol,
		Timeframe: timeframe,
		RSI:       RSI(closes, 14),
		EMA20:     EMA(closes, 20),
		EMA50:     EMA(closes, 50),
		SMA20:     SMA(closes, 20),
		SMA50:     SMA(closes, 50),
		VolumeSMA: VolumeSMA(volumes, 20),
	}
	snap.MACD, snap.MACDSignal, snap.MACDHistogram = MACD(closes)
	snap.BBUpper, snap.BBMiddle, snap.BBLower = BollingerBands(closes, 20, 2)
	return snap
}

// finite returns a pointer to v, or nil when v is NaN or infinite. It is the
// package boundary guard: every exported value passes through it.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
