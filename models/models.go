package models

import (
	"time"
)

// Timeframes supported by the analysis pipeline and the Binance klines API.
var Timeframes = []string{"5m", "15m", "1h", "4h", "1d"}

// IsValidTimeframe reports whether tf is one of the supported timeframes.
func IsValidTimeframe(tf string) bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// Candle represents a single OHLCV price candle.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IndicatorSnapshot holds one set of indicator values for a symbol and
// timeframe. A nil field means the underlying window exceeded the available
// series length; no field ever carries NaN.
type IndicatorSnapshot struct {
	Symbol        string    `json:"symbol" db:"symbol"`
	Timeframe     string    `json:"timeframe" db:"timeframe"`
	RSI           *float64  `json:"rsi,omitempty" db:"rsi"`
	MACD          *float64  `json:"macd,omitempty" db:"macd"`
	MACDSignal    *float64  `json:"macd_signal,omitempty" db:"macd_signal"`
	MACDHistogram *float64  `json:"macd_histogram,omitempty" db:"macd_histogram"`
	BBUpper       *float64  `json:"bb_upper,omitempty" db:"bb_upper"`
	BBMiddle      *float64  `json:"bb_middle,omitempty" db:"bb_middle"`
	BBLower       *float64  `json:"bb_lower,omitempty" db:"bb_lower"`
	EMA20         *float64  `json:"ema_20,omitempty" db:"ema_20"`
	EMA50         *float64  `json:"ema_50,omitempty" db:"ema_50"`
	SMA20         *float64  `json:"sma_20,omitempty" db:"sma_20"`
	SMA50         *float64  `json:"sma_50,omitempty" db:"sma_50"`
	VolumeSMA     *float64  `json:"volume_sma,omitempty" db:"volume_sma"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// PatternType identifies a detected chart pattern.
type PatternType string

const (
	PatternHeadAndShoulders PatternType = "head_and_shoulders"
	PatternDoubleTop        PatternType = "double_top"
	PatternSupportTest      PatternType = "support_test"
	PatternResistanceTest   PatternType = "resistance_test"
)

// PeakPoint is a peak coordinate inside the analyzed candle window.
type PeakPoint struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
}

// PatternData carries the structured coordinates of a detected pattern.
// Only the fields relevant to the pattern type are set.
type PatternData struct {
	Head            *PeakPoint `json:"head,omitempty"`
	LeftShoulder    *PeakPoint `json:"left_shoulder,omitempty"`
	RightShoulder   *PeakPoint `json:"right_shoulder,omitempty"`
	FirstPeak       *PeakPoint `json:"first_peak,omitempty"`
	SecondPeak      *PeakPoint `json:"second_peak,omitempty"`
	SupportLevel    *float64   `json:"support_level,omitempty"`
	ResistanceLevel *float64   `json:"resistance_level,omitempty"`
}

// PatternMatch is one detected chart pattern with its confidence score.
type PatternMatch struct {
	Symbol      string      `json:"symbol"`
	Timeframe   string      `json:"timeframe"`
	Type        PatternType `json:"pattern_type"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description"`
	Data        PatternData `json:"pattern_data"`
	DetectedAt  time.Time   `json:"detected_at"`
	IsActive    bool        `json:"is_active"`
}

// SignalType is the direction of a trading signal.
type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
)

// SignalStrength grades a trading signal.
type SignalStrength string

const (
	StrengthWeak   SignalStrength = "weak"
	StrengthMedium SignalStrength = "medium"
	StrengthStrong SignalStrength = "strong"
)

// Signal is one directional trading signal with its triggering reason.
type Signal struct {
	Type     SignalType     `json:"type"`
	Strength SignalStrength `json:"strength"`
	Reason   string         `json:"reason"`
}

// Trend classifies the market direction.
type Trend string

const (
	TrendBullish  Trend = "bullish"
	TrendBearish  Trend = "bearish"
	TrendSideways Trend = "sideways"
)

// RiskLevel classifies the risk of the analyzed market state.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// KeyLevels holds support/resistance levels and the pivot point.
type KeyLevels struct {
	SupportLevels    []float64 `json:"support_levels"`
	ResistanceLevels []float64 `json:"resistance_levels"`
	PivotPoint       float64   `json:"pivot_point"`
}

// AnalysisResult is the outcome of one full analysis run.
type AnalysisResult struct {
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"timeframe"`
	AnalysisText   string    `json:"analysis_text"`
	Signals        []Signal  `json:"signals"`
	KeyLevels      KeyLevels `json:"key_levels"`
	TrendDirection Trend     `json:"trend_direction"`
	RiskLevel      RiskLevel `json:"risk_level"`
	CreatedAt      time.Time `json:"created_at"`
}
