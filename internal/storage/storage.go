// Package storage is the persistence gateway for indicator snapshots,
// pattern detections, and analysis results.
package storage

import (
	"context"
	"errors"
	"fmt"

	"tradebot/models"
)

// ErrNotFound is returned by read queries that match no rows.
var ErrNotFound = errors.New("not found")

// PersistError reports a storage write failure. The on-demand analysis path
// propagates it to the caller; the periodic sweep logs it and moves on.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store persists and queries analysis history. History is append-only:
// records are never mutated after insertion, and reads return the most
// recent rows first.
type Store interface {
	InsertIndicatorSnapshot(ctx context.Context, snap models.IndicatorSnapshot) error
	InsertPatternMatch(ctx context.Context, match models.PatternMatch) error
	InsertAnalysisResult(ctx context.Context, result models.AnalysisResult) error

	LatestIndicatorSnapshot(ctx context.Context, symbol, timeframe string) (*models.IndicatorSnapshot, error)
	LatestPatternMatches(ctx context.Context, symbol, timeframe string, activeOnly bool, limit int) ([]models.PatternMatch, error)
	LatestAnalysisResult(ctx context.Context, symbol, timeframe string) (*models.AnalysisResult, error)

	Close() error
}
