package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradebot/models"
)

// maxPatternRows caps pattern reads regardless of the requested limit.
const maxPatternRows = 10

var schema = []string{
	`CREATE TABLE IF NOT EXISTS technical_indicators (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		timeframe VARCHAR(10) NOT NULL,
		rsi DOUBLE PRECISION,
		macd DOUBLE PRECISION,
		macd_signal DOUBLE PRECISION,
		macd_histogram DOUBLE PRECISION,
		bb_upper DOUBLE PRECISION,
		bb_middle DOUBLE PRECISION,
		bb_lower DOUBLE PRECISION,
		ema_20 DOUBLE PRECISION,
		ema_50 DOUBLE PRECISION,
		sma_20 DOUBLE PRECISION,
		sma_50 DOUBLE PRECISION,
		volume_sma DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_technical_symbol_timeframe
		ON technical_indicators (symbol, timeframe)`,
	`CREATE INDEX IF NOT EXISTS idx_technical_created_at
		ON technical_indicators (created_at)`,

	`CREATE TABLE IF NOT EXISTS pattern_detections (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		timeframe VARCHAR(10) NOT NULL,
		pattern_type VARCHAR(50) NOT NULL,
		pattern_data JSONB,
		confidence DOUBLE PRECISION,
		description TEXT,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_patterns_symbol_timeframe_type
		ON pattern_detections (symbol, timeframe, pattern_type)`,
	`CREATE INDEX IF NOT EXISTS idx_patterns_detected_at
		ON pattern_detections (detected_at)`,

	`CREATE TABLE IF NOT EXISTS technical_analysis (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		timeframe VARCHAR(10) NOT NULL,
		analysis_text TEXT,
		signals JSONB,
		key_levels JSONB,
		trend_direction VARCHAR(20),
		risk_level VARCHAR(20),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_symbol_timeframe
		ON technical_analysis (symbol, timeframe)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_created_at
		ON technical_analysis (created_at)`,
}

// Postgres implements Store on top of PostgreSQL.
type Postgres struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// Open connects to PostgreSQL, tunes the connection pool, and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{
		db:     db,
		logger: log.With().Str("component", "postgres_store").Logger(),
	}
	if err := p.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	p.logger.Info().Msg("connected to postgres")
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) InsertIndicatorSnapshot(ctx context.Context, snap models.IndicatorSnapshot) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO technical_indicators
			(symbol, timeframe, rsi, macd, macd_signal, macd_histogram,
			 bb_upper, bb_middle, bb_lower, ema_20, ema_50, sma_20, sma_50, volume_sma)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		snap.Symbol, snap.Timeframe, snap.RSI, snap.MACD, snap.MACDSignal, snap.MACDHistogram,
		snap.BBUpper, snap.BBMiddle, snap.BBLower, snap.EMA20, snap.EMA50,
		snap.SMA20, snap.SMA50, snap.VolumeSMA,
	)
	if err != nil {
		return &PersistError{Op: "indicator snapshot", Err: err}
	}
	return nil
}

func (p *Postgres) InsertPatternMatch(ctx context.Context, match models.PatternMatch) error {
	data, err := json.Marshal(match.Data)
	if err != nil {
		return &PersistError{Op: "pattern match", Err: err}
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO pattern_detections
			(symbol, timeframe, pattern_type, pattern_data, confidence, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		match.Symbol, match.Timeframe, match.Type, data, match.Confidence, match.Description, match.IsActive,
	)
	if err != nil {
		return &PersistError{Op: "pattern match", Err: err}
	}
	return nil
}

func (p *Postgres) InsertAnalysisResult(ctx context.Context, result models.AnalysisResult) error {
	signals, err := json.Marshal(result.Signals)
	if err != nil {
		return &PersistError{Op: "analysis result", Err: err}
	}
	levels, err := json.Marshal(result.KeyLevels)
	if err != nil {
		return &PersistError{Op: "analysis result", Err: err}
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO technical_analysis
			(symbol, timeframe, analysis_text, signals, key_levels, trend_direction, risk_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.Symbol, result.Timeframe, result.AnalysisText, signals, levels,
		result.TrendDirection, result.RiskLevel, result.CreatedAt,
	)
	if err != nil {
		return &PersistError{Op: "analysis result", Err: err}
	}
	return nil
}

func (p *Postgres) LatestIndicatorSnapshot(ctx context.Context, symbol, timeframe string) (*models.IndicatorSnapshot, error) {
	var snap models.IndicatorSnapshot
	err := p.db.GetContext(ctx, &snap, `
		SELECT symbol, timeframe, rsi, macd, macd_signal, macd_histogram,
		       bb_upper, bb_middle, bb_lower, ema_20, ema_50, sma_20, sma_50,
		       volume_sma, created_at
		FROM technical_indicators
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY created_at DESC LIMIT 1`,
		symbol, timeframe,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest indicators: %w", err)
	}
	return &snap, nil
}

type patternRow struct {
	Symbol      string          `db:"symbol"`
	Timeframe   string          `db:"timeframe"`
	PatternType string          `db:"pattern_type"`
	PatternData json.RawMessage `db:"pattern_data"`
	Confidence  float64         `db:"confidence"`
	Description string          `db:"description"`
	DetectedAt  time.Time       `db:"detected_at"`
	IsActive    bool            `db:"is_active"`
}

func (p *Postgres) LatestPatternMatches(ctx context.Context, symbol, timeframe string, activeOnly bool, limit int) ([]models.PatternMatch, error) {
	if limit <= 0 || limit > maxPatternRows {
		limit = maxPatternRows
	}

	query := `
		SELECT symbol, timeframe, pattern_type, pattern_data, confidence, description, detected_at, is_active
		FROM pattern_detections
		WHERE symbol = $1 AND timeframe = $2`
	args := []any{symbol, timeframe}
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY detected_at DESC LIMIT $3`
	args = append(args, limit)

	var rows []patternRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query latest patterns: %w", err)
	}

	matches := make([]models.PatternMatch, 0, len(rows))
	for _, r := range rows {
		m := models.PatternMatch{
			Symbol:      r.Symbol,
			Timeframe:   r.Timeframe,
			Type:        models.PatternType(r.PatternType),
			Confidence:  r.Confidence,
			Description: r.Description,
			DetectedAt:  r.DetectedAt,
			IsActive:    r.IsActive,
		}
		if len(r.PatternData) > 0 {
			if err := json.Unmarshal(r.PatternData, &m.Data); err != nil {
				return nil, fmt.Errorf("decode pattern data: %w", err)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

type analysisRow struct {
	Symbol         string          `db:"symbol"`
	Timeframe      string          `db:"timeframe"`
	AnalysisText   string          `db:"analysis_text"`
	Signals        json.RawMessage `db:"signals"`
	KeyLevels      json.RawMessage `db:"key_levels"`
	TrendDirection string          `db:"trend_direction"`
	RiskLevel      string          `db:"risk_level"`
	CreatedAt      time.Time       `db:"created_at"`
}

func (p *Postgres) LatestAnalysisResult(ctx context.Context, symbol, timeframe string) (*models.AnalysisResult, error) {
	var row analysisRow
	err := p.db.GetContext(ctx, &row, `
		SELECT symbol, timeframe, analysis_text, signals, key_levels,
		       trend_direction, risk_level, created_at
		FROM technical_analysis
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY created_at DESC LIMIT 1`,
		symbol, timeframe,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest analysis: %w", err)
	}

	result := models.AnalysisResult{
		Symbol:         row.Symbol,
		Timeframe:      row.Timeframe,
		AnalysisText:   row.AnalysisText,
		TrendDirection: models.Trend(row.TrendDirection),
		RiskLevel:      models.RiskLevel(row.RiskLevel),
		CreatedAt:      row.CreatedAt,
	}
	if len(row.Signals) > 0 {
		if err := json.Unmarshal(row.Signals, &result.Signals); err != nil {
			return nil, fmt.Errorf("decode signals: %w", err)
		}
	}
	if len(row.KeyLevels) > 0 {
		if err := json.Unmarshal(row.KeyLevels, &result.KeyLevels); err != nil {
			return nil, fmt.Errorf("decode key levels: %w", err)
		}
	}
	return &result, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.logger.Info().Msg("closing postgres store")
	return p.db.Close()
}
