package ml

import (
	"math"
	"testing"

	"quantterm/internal/domain/models"
)

func TestFitScalerNormalizes(t *testing.T) {
	cols := []string{"a", "b"}
	x := [][]float64{{1, 10}, {2, 20}, {3, 30}}

	s := FitScaler(cols, x)
	xs, err := s.TransformAll(x)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	for j := 0; j < 2; j++ {
		var sum float64
		for i := range xs {
			sum += xs[i][j]
		}
		if math.Abs(sum) > 1e-9 {
			t.Fatalf("column %d not centered: sum=%v", j, sum)
		}
	}
}

func TestFitScalerConstantColumn(t *testing.T) {
	cols := []string{"a"}
	x := [][]float64{{7}, {7}, {7}}

	s := FitScaler(cols, x)
	out, err := s.Transform([]float64{7})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	// Zero-variance columns scale by 1, so no division blowup.
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		t.Fatalf("constant column produced %v", out[0])
	}
}

func TestScalerTransformLengthMismatch(t *testing.T) {
	s := FitScaler([]string{"a", "b"}, [][]float64{{1, 2}, {3, 4}})
	if _, err := s.Transform([]float64{1}); err == nil {
		t.Fatalf("expected error on length mismatch")
	}
}

func TestClassifierLearnsSeparableData(t *testing.T) {
	cols := []string{"f"}
	var x [][]float64
	var y []int
	for i := 0; i < 50; i++ {
		x = append(x, []float64{-1})
		y = append(y, 0)
		x = append(x, []float64{1})
		y = append(y, 1)
	}

	clf := TrainClassifier(cols, x, y, 300, 0.5)

	pLow, err := clf.PredictProba([]float64{-1})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	pHigh, err := clf.PredictProba([]float64{1})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pLow >= 0.5 || pHigh <= 0.5 {
		t.Fatalf("classifier failed to separate: pLow=%v pHigh=%v", pLow, pHigh)
	}
}

func TestPredictProbaBounds(t *testing.T) {
	clf := TrainClassifier([]string{"a"}, [][]float64{{100}, {-100}}, []int{1, 0}, 500, 1)
	p, err := clf.PredictProba([]float64{1e6})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p < 0 || p > 1 {
		t.Fatalf("probability out of bounds: %v", p)
	}
}

func TestImportancesSortedAndNormalized(t *testing.T) {
	clf := &Classifier{
		Columns: models.ModelFeatureColumns(),
		Weights: []float64{0.1, -0.6, 0.3, 0.0},
	}

	imp := clf.Importances()
	if len(imp) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(imp))
	}
	if imp[0].Feature != "momentum_5d" {
		t.Fatalf("expected momentum_5d first, got %s", imp[0].Feature)
	}
	var total float64
	for i, w := range imp {
		if w.Weight < 0 {
			t.Fatalf("negative importance at %d", i)
		}
		if i > 0 && imp[i-1].Weight < w.Weight {
			t.Fatalf("importances not sorted desc")
		}
		total += w.Weight
	}
	if math.Abs(total-1) > 1e-9 {
		t.Fatalf("importances sum to %v, want 1", total)
	}
}
