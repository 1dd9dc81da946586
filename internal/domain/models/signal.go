package models

import (
	"fmt"
	"time"
)

// Fallback reasons recorded on degraded signals. An empty reason means the
// trained-model path produced the score.
const (
	FallbackInsufficientData = "insufficient_data"
	FallbackTrainFailed      = "train_failed"
	FallbackArtifactError    = "artifact_error"
)

// FeatureWeight is one entry of a signal explanation. Weights are
// non-negative and the slice is kept sorted descending by weight.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Signal is the inference output: a bounded score plus an explanation of the
// features that drove it. Computed fresh per call, never persisted.
type Signal struct {
	Symbol      string          `json:"symbol"`
	Timestamp   time.Time       `json:"timestamp"`
	Score       float64         `json:"score"` // in [-1, +1]
	Explanation []FeatureWeight `json:"explanation"`
	Fallback    string          `json:"fallback,omitempty"`
	Narrative   string          `json:"narrative"`
}

// TopFeature returns the highest-weighted explanation entry.
func (s Signal) TopFeature() string {
	if len(s.Explanation) == 0 {
		return ""
	}
	return s.Explanation[0].Feature
}

// Narrate builds the dashboard narrative sentence for the signal.
func (s Signal) Narrate() string {
	top := s.TopFeature()
	if s.Score > 0.2 {
		return fmt.Sprintf("%s shows bullish momentum (score: %.2f), driven by %s.", s.Symbol, s.Score, top)
	}
	return fmt.Sprintf("%s neutral/bearish (score: %.2f); watch %s.", s.Symbol, s.Score, top)
}

// TrainMetrics summarizes one training run.
type TrainMetrics struct {
	Symbol     string    `json:"symbol"`
	CVAccuracy float64   `json:"cv_accuracy"`
	NFeatures  int       `json:"n_features"`
	NSamples   int       `json:"n_samples"`
	TrainedAt  time.Time `json:"trained_at"`
}

// BacktestResult is the toy cumulative P&L of trading the signal sign.
type BacktestResult struct {
	Symbol string  `json:"symbol"`
	PnL    float64 `json:"pnl"`
	Trades int     `json:"trades"`
}

// CorrelationMatrix holds pairwise return correlations across assets.
type CorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Matrix  [][]float64 `json:"matrix"`
}
