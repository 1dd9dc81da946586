package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"quantterm/internal/domain/models"
)

// ErrColumnMismatch is returned when the feature column order recorded at
// training time does not match what inference is about to feed the model.
// Guarded against explicitly: a silent reorder would corrupt every score.
var ErrColumnMismatch = errors.New("feature column order mismatch")

// Scaler standardizes features to zero mean and unit variance, per column.
// It is trained and persisted as a pair with the classifier.
type Scaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Std     []float64 `json:"std"`
}

// FitScaler computes per-column mean and standard deviation.
func FitScaler(columns []string, x [][]float64) *Scaler {
	nCols := len(columns)
	s := &Scaler{
		Columns: columns,
		Mean:    make([]float64, nCols),
		Std:     make([]float64, nCols),
	}
	n := float64(len(x))
	if n == 0 {
		for j := range s.Std {
			s.Std[j] = 1
		}
		return s
	}

	for _, row := range x {
		for j := 0; j < nCols; j++ {
			s.Mean[j] += row[j]
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range x {
		for j := 0; j < nCols; j++ {
			d := row[j] - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1 // constant column, leave it centered
		}
	}
	return s
}

// Transform standardizes one feature vector. The input column order must
// match the order the scaler was fit with.
func (s *Scaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrColumnMismatch, len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for j := range row {
		out[j] = (row[j] - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// TransformAll standardizes a matrix in place-order.
func (s *Scaler) TransformAll(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		t, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// Classifier is a logistic-regression binary classifier over the engineered
// features. Columns records the training-time feature order; inference must
// reproduce it exactly.
type Classifier struct {
	Columns []string  `json:"columns"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// TrainClassifier fits logistic regression by batch gradient descent on
// standardized inputs. y holds 0/1 labels.
func TrainClassifier(columns []string, x [][]float64, y []int, epochs int, lr float64) *Classifier {
	c := &Classifier{
		Columns: columns,
		Weights: make([]float64, len(columns)),
	}
	n := len(x)
	if n == 0 {
		return c
	}
	if epochs <= 0 {
		epochs = 400
	}
	if lr <= 0 {
		lr = 0.1
	}

	gradW := make([]float64, len(c.Weights))
	for e := 0; e < epochs; e++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0
		for i, row := range x {
			err := sigmoid(c.logit(row)) - float64(y[i])
			for j := range gradW {
				gradW[j] += err * row[j]
			}
			gradB += err
		}
		scale := lr / float64(n)
		for j := range c.Weights {
			c.Weights[j] -= scale * gradW[j]
		}
		c.Bias -= scale * gradB
	}
	return c
}

func (c *Classifier) logit(row []float64) float64 {
	z := c.Bias
	for j, w := range c.Weights {
		z += w * row[j]
	}
	return z
}

// PredictProba returns the class-1 (next period up) probability for a
// standardized feature vector.
func (c *Classifier) PredictProba(row []float64) (float64, error) {
	if len(row) != len(c.Weights) {
		return 0, fmt.Errorf("%w: model expects %d features, got %d", ErrColumnMismatch, len(c.Weights), len(row))
	}
	return sigmoid(c.logit(row)), nil
}

// Importances maps each feature to its normalized absolute weight, sorted
// descending. This is the signal explanation for the model path.
func (c *Classifier) Importances() []models.FeatureWeight {
	total := 0.0
	for _, w := range c.Weights {
		total += math.Abs(w)
	}

	out := make([]models.FeatureWeight, len(c.Columns))
	for j, col := range c.Columns {
		weight := 0.0
		if total > 0 {
			weight = math.Abs(c.Weights[j]) / total
		}
		out[j] = models.FeatureWeight{Feature: col, Weight: weight}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
