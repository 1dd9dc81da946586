package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantterm/internal/domain/models"
)

// ErrInsufficientData is raised by training when the engineered sample count
// is below the configured minimum. Callers degrade to the momentum proxy.
var ErrInsufficientData = errors.New("insufficient training data")

// TrainConfig carries training knobs.
type TrainConfig struct {
	MinSamples   int
	CVSplits     int
	Epochs       int
	LearningRate float64
}

// Trainer fits the per-symbol classifier+scaler pair from engineered
// features. Target is the sign of the next period's return.
type Trainer struct {
	artifacts *Store
	cfg       TrainConfig
}

func NewTrainer(artifacts *Store, cfg TrainConfig) *Trainer {
	if cfg.MinSamples < 2 {
		cfg.MinSamples = 60
	}
	if cfg.CVSplits < 2 {
		cfg.CVSplits = 5
	}
	return &Trainer{artifacts: artifacts, cfg: cfg}
}

// Train builds the supervised set from rows, cross-validates with
// time-ordered expanding splits, fits the final pair on all samples and
// persists it. The returned metrics feed the model_metadata audit table.
func (t *Trainer) Train(ctx context.Context, symbol string, rows []models.FeatureRow) (models.TrainMetrics, error) {
	var metrics models.TrainMetrics

	// Last row has no next-period return to label.
	if len(rows) < 2 {
		return metrics, fmt.Errorf("%w: %d feature rows for %s", ErrInsufficientData, len(rows), symbol)
	}
	n := len(rows) - 1
	if n < t.cfg.MinSamples {
		return metrics, fmt.Errorf("%w: %d samples for %s, need %d", ErrInsufficientData, n, symbol, t.cfg.MinSamples)
	}

	columns := models.ModelFeatureColumns()
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		x[i] = rows[i].ModelFeatureVector()
		if rows[i+1].Returns > 0 {
			y[i] = 1
		}
	}

	scaler := FitScaler(columns, x)
	xs, err := scaler.TransformAll(x)
	if err != nil {
		return metrics, fmt.Errorf("scale training set: %w", err)
	}

	cvAcc := t.crossValidate(ctx, columns, xs, y)

	clf := TrainClassifier(columns, xs, y, t.cfg.Epochs, t.cfg.LearningRate)
	if err := t.artifacts.Save(symbol, clf, scaler); err != nil {
		return metrics, fmt.Errorf("persist artifacts: %w", err)
	}

	metrics = models.TrainMetrics{
		Symbol:     symbol,
		CVAccuracy: cvAcc,
		NFeatures:  len(columns),
		NSamples:   n,
		TrainedAt:  time.Now().UTC(),
	}
	return metrics, nil
}

// crossValidate runs time-ordered expanding-window splits: each fold trains
// on everything before the fold and validates on the fold itself. Shuffling
// would leak the future into the past.
func (t *Trainer) crossValidate(ctx context.Context, columns []string, x [][]float64, y []int) float64 {
	n := len(x)
	foldSize := n / (t.cfg.CVSplits + 1)
	if foldSize < 1 {
		return 0
	}

	var accSum float64
	var folds int
	for s := 1; s <= t.cfg.CVSplits; s++ {
		if ctx.Err() != nil {
			break
		}
		trainEnd := s * foldSize
		valEnd := trainEnd + foldSize
		if s == t.cfg.CVSplits {
			valEnd = n
		}
		if trainEnd < 2 || valEnd <= trainEnd {
			continue
		}

		clf := TrainClassifier(columns, x[:trainEnd], y[:trainEnd], t.cfg.Epochs, t.cfg.LearningRate)
		correct := 0
		for i := trainEnd; i < valEnd; i++ {
			p, err := clf.PredictProba(x[i])
			if err != nil {
				continue
			}
			pred := 0
			if p >= 0.5 {
				pred = 1
			}
			if pred == y[i] {
				correct++
			}
		}
		accSum += float64(correct) / float64(valEnd-trainEnd)
		folds++
	}

	if folds == 0 {
		return 0
	}
	return accSum / float64(folds)
}
