package ml

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func samplePair() (*Classifier, *Scaler) {
	cols := []string{"volatility", "momentum_5d"}
	clf := &Classifier{Columns: cols, Weights: []float64{0.4, -0.2}, Bias: 0.1}
	sc := &Scaler{Columns: cols, Mean: []float64{0.2, 0.01}, Std: []float64{0.1, 0.05}}
	return clf, sc
}

func TestArtifactRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	clf, sc := samplePair()

	if store.Exists("ES") {
		t.Fatalf("pair should not exist before save")
	}
	if err := store.Save("ES", clf, sc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !store.Exists("ES") {
		t.Fatalf("pair should exist after save")
	}

	gotClf, gotSc, err := store.Load("ES")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gotClf.Weights[0] != clf.Weights[0] || gotClf.Bias != clf.Bias {
		t.Fatalf("classifier mismatch: %+v", gotClf)
	}
	if gotSc.Mean[1] != sc.Mean[1] {
		t.Fatalf("scaler mismatch: %+v", gotSc)
	}
}

func TestLoadMissingPair(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, _, err := store.Load("NOPE"); !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
}

func TestHalfPairIsMissing(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	clf, sc := samplePair()
	if err := store.Save("ES", clf, sc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "scaler_ES.json")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if store.Exists("ES") {
		t.Fatalf("half pair must not count as present")
	}
	if _, _, err := store.Load("ES"); !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
}

func TestLoadRejectsColumnMismatch(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	clf, sc := samplePair()
	sc.Columns = []string{"momentum_5d", "volatility"} // reordered
	if err := store.Save("ES", clf, sc); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, _, err := store.Load("ES"); !errors.Is(err, ErrColumnMismatch) {
		t.Fatalf("expected ErrColumnMismatch, got %v", err)
	}
}

func TestLoadRejectsCorruptModel(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	clf, sc := samplePair()
	clf.Weights = clf.Weights[:1] // columns/weights length skew
	if err := store.Save("ES", clf, sc); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, _, err := store.Load("ES"); err == nil {
		t.Fatalf("expected corrupt artifact error")
	}
}
