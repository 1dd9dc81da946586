package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
	"quantterm/pkg/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS raw_ohlc (
		symbol    TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		open      REAL,
		high      REAL,
		low       REAL,
		close     REAL NOT NULL,
		volume    INTEGER NOT NULL DEFAULT 0,
		source    TEXT,
		PRIMARY KEY (symbol, timestamp)
	)`,
	`CREATE TABLE IF NOT EXISTS fundamentals (
		date   TIMESTAMP NOT NULL,
		metric TEXT NOT NULL,
		value  REAL,
		PRIMARY KEY (date, metric)
	)`,
	`CREATE TABLE IF NOT EXISTS features (
		symbol      TEXT NOT NULL,
		date        TIMESTAMP NOT NULL,
		returns     REAL,
		volatility  REAL,
		momentum_5d REAL,
		corr_dxy    REAL,
		macro_rate  REAL,
		PRIMARY KEY (symbol, date)
	)`,
	`CREATE TABLE IF NOT EXISTS model_metadata (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		model_name TEXT NOT NULL,
		version    TEXT,
		timestamp  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		params     TEXT,
		metrics    TEXT
	)`,
}

// SQLiteStore implements BarStore on a local SQLite file. The handle is
// injected, never package-global; schema is ensured on construction so no
// separate migration step is required for the minimal tables.
type SQLiteStore struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewSQLiteStore(db *sqlx.DB, log *logger.Logger) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, log: log}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return s, nil
}

// UpsertBars writes the batch in a single transaction, last write wins per
// (symbol, timestamp). A failed write propagates: silent loss here would
// corrupt everything trained on top of it.
func (s *SQLiteStore) UpsertBars(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO raw_ohlc (symbol, timestamp, open, high, low, close, volume, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timestamp) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			source = excluded.source`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if b.Symbol == "" || b.Timestamp.IsZero() {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			b.Symbol, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume, b.Source,
		); err != nil {
			return fmt.Errorf("upsert bar %s@%s: %w", b.Symbol, b.Timestamp.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// LoadBars returns bars for symbol with timestamp >= since, ascending. Any
// storage error degrades to an empty result: callers treat "empty" as a
// legitimate, cheap-to-retry state rather than an exception.
func (s *SQLiteStore) LoadBars(ctx context.Context, symbol string, since time.Time) []models.Bar {
	var bars []models.Bar
	err := s.db.SelectContext(ctx, &bars, `
		SELECT symbol, timestamp, open, high, low, close, volume, source
		FROM raw_ohlc
		WHERE symbol = ? AND timestamp >= ?
		ORDER BY timestamp ASC`, symbol, since.UTC())
	if err != nil {
		s.log.Warn("load bars failed, returning empty",
			logger.String("symbol", symbol), logger.Error(err))
		return nil
	}
	return bars
}

func (s *SQLiteStore) UpsertFundamentals(ctx context.Context, rows []models.Fundamental) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fundamentals upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fundamentals (date, metric, value) VALUES (?, ?, ?)
			ON CONFLICT(date, metric) DO UPDATE SET value = excluded.value`,
			r.Date.UTC(), r.Metric, r.Value,
		); err != nil {
			return fmt.Errorf("upsert fundamental %s@%s: %w", r.Metric, r.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fundamentals: %w", err)
	}
	return nil
}

// LoadFundamentals returns the metric series ascending by date, degrading to
// empty on storage errors like LoadBars.
func (s *SQLiteStore) LoadFundamentals(ctx context.Context, metric string) []models.Fundamental {
	var rows []models.Fundamental
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date, metric, value FROM fundamentals
		WHERE metric = ? ORDER BY date ASC`, metric)
	if err != nil {
		s.log.Warn("load fundamentals failed, returning empty",
			logger.String("metric", metric), logger.Error(err))
		return nil
	}
	return rows
}

// RecordTraining appends a training run to the model_metadata audit table.
func (s *SQLiteStore) RecordTraining(ctx context.Context, name, version string, m models.TrainMetrics) error {
	metrics, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO model_metadata (model_name, version, timestamp, params, metrics)
		VALUES (?, ?, ?, ?, ?)`,
		name, version, time.Now().UTC(), "{}", string(metrics),
	); err != nil {
		return fmt.Errorf("record training: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ drepo.BarStore = (*SQLiteStore)(nil)

// FeatureTableArchive appends engineered rows to the local features table.
// It is the default FeatureArchive when no columnar archive is configured.
type FeatureTableArchive struct {
	db *sqlx.DB
}

func NewFeatureTableArchive(db *sqlx.DB) *FeatureTableArchive {
	return &FeatureTableArchive{db: db}
}

func (a *FeatureTableArchive) Append(ctx context.Context, rows []models.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feature archive: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO features (symbol, date, returns, volatility, momentum_5d, corr_dxy, macro_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				returns = excluded.returns,
				volatility = excluded.volatility,
				momentum_5d = excluded.momentum_5d,
				corr_dxy = excluded.corr_dxy,
				macro_rate = excluded.macro_rate`,
			r.Symbol, r.Timestamp.UTC(), r.Returns, r.Volatility, r.Momentum5D, r.CorrDXY, r.MacroRate,
		); err != nil {
			return fmt.Errorf("archive feature row %s@%s: %w", r.Symbol, r.Timestamp.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit feature archive: %w", err)
	}
	return nil
}

func (a *FeatureTableArchive) Close() error { return nil }

var _ drepo.FeatureArchive = (*FeatureTableArchive)(nil)
