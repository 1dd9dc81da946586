package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file pair per symbol. Classifier and scaler are always saved and
// loaded together: a half-written or half-present pair is unusable.

// ErrArtifactMissing reports that one or both files of the pair are absent.
// Callers treat it as the cue to train a fresh model.
var ErrArtifactMissing = errors.New("model artifact missing")

// Store persists classifier+scaler pairs as JSON files under a directory,
// named deterministically from the symbol.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) modelPath(symbol string) string {
	return filepath.Join(s.dir, fmt.Sprintf("model_%s.json", symbol))
}

func (s *Store) scalerPath(symbol string) string {
	return filepath.Join(s.dir, fmt.Sprintf("scaler_%s.json", symbol))
}

// Exists reports whether a complete artifact pair is on disk for symbol.
func (s *Store) Exists(symbol string) bool {
	if _, err := os.Stat(s.modelPath(symbol)); err != nil {
		return false
	}
	if _, err := os.Stat(s.scalerPath(symbol)); err != nil {
		return false
	}
	return true
}

// Save writes the pair atomically enough for a single-writer process:
// temp file then rename, model first.
func (s *Store) Save(symbol string, c *Classifier, sc *Scaler) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := writeJSON(s.modelPath(symbol), c); err != nil {
		return fmt.Errorf("save model %s: %w", symbol, err)
	}
	if err := writeJSON(s.scalerPath(symbol), sc); err != nil {
		return fmt.Errorf("save scaler %s: %w", symbol, err)
	}
	return nil
}

// Load reads the pair and verifies the two artifacts agree on feature
// columns. Disagreement means a partial retrain happened; the pair is
// rejected rather than silently mixed.
func (s *Store) Load(symbol string) (*Classifier, *Scaler, error) {
	var c Classifier
	if err := readJSON(s.modelPath(symbol), &c); err != nil {
		return nil, nil, err
	}
	var sc Scaler
	if err := readJSON(s.scalerPath(symbol), &sc); err != nil {
		return nil, nil, err
	}

	if len(c.Columns) == 0 || len(c.Columns) != len(c.Weights) {
		return nil, nil, fmt.Errorf("model %s: corrupt artifact", symbol)
	}
	if len(sc.Columns) != len(c.Columns) {
		return nil, nil, fmt.Errorf("%w: model has %d columns, scaler %d", ErrColumnMismatch, len(c.Columns), len(sc.Columns))
	}
	for i := range c.Columns {
		if c.Columns[i] != sc.Columns[i] {
			return nil, nil, fmt.Errorf("%w: %q vs %q at %d", ErrColumnMismatch, c.Columns[i], sc.Columns[i], i)
		}
	}
	return &c, &sc, nil
}

func writeJSON(path string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, filepath.Base(path))
		}
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
