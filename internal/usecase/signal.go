package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
	"quantterm/internal/services/features"
	"quantterm/internal/services/ml"
	"quantterm/pkg/cache"
	"quantterm/pkg/logger"
)

// SignalService scores a symbol from its engineered features. It always
// answers: when the trained-model path cannot run, it degrades to a
// momentum proxy and records why on the signal instead of erroring.
type SignalService struct {
	pipeline  *features.Pipeline
	trainer   *ml.Trainer
	artifacts *ml.Store
	store     drepo.BarStore
	archive   drepo.FeatureArchive
	publisher drepo.SignalPublisher
	cache     cache.Service
	metrics   drepo.Metrics
	log       *logger.Logger

	minRows       int
	amplification float64
	signalTTL     time.Duration
}

func NewSignalService(
	pipeline *features.Pipeline,
	trainer *ml.Trainer,
	artifacts *ml.Store,
	store drepo.BarStore,
	archive drepo.FeatureArchive,
	publisher drepo.SignalPublisher,
	cacheSvc cache.Service,
	metrics drepo.Metrics,
	log *logger.Logger,
	minRows int,
	amplification float64,
	signalTTL time.Duration,
) *SignalService {
	if minRows <= 0 {
		minRows = 50
	}
	if amplification <= 0 {
		amplification = 5
	}
	if signalTTL <= 0 {
		signalTTL = 2 * time.Hour
	}
	return &SignalService{
		pipeline:      pipeline,
		trainer:       trainer,
		artifacts:     artifacts,
		store:         store,
		archive:       archive,
		publisher:     publisher,
		cache:         cacheSvc,
		metrics:       metrics,
		log:           log,
		minRows:       minRows,
		amplification: amplification,
		signalTTL:     signalTTL,
	}
}

// Features engineers and returns the full feature frame for a symbol.
func (s *SignalService) Features(ctx context.Context, symbol string) ([]models.FeatureRow, error) {
	rows, err := s.pipeline.Engineer(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s.archiveRows(ctx, rows)
	return rows, nil
}

// Infer computes the signal for a symbol. It never returns an error for a
// degraded model path; those cases fall back to the momentum proxy with the
// reason recorded on the signal itself.
func (s *SignalService) Infer(ctx context.Context, symbol string) (models.Signal, error) {
	key := cache.Key("signal", symbol)
	var cached models.Signal
	if err := s.cache.Get(ctx, key, &cached); err == nil && !cached.Timestamp.IsZero() {
		return cached, nil
	}

	rows, err := s.pipeline.Engineer(ctx, symbol)
	if err != nil {
		return models.Signal{}, fmt.Errorf("engineer features for %s: %w", symbol, err)
	}
	s.archiveRows(ctx, rows)

	sig := s.score(ctx, symbol, rows)
	sig.Narrative = sig.Narrate()

	s.metrics.RecordSignal(symbol, sig.Fallback)
	s.publish(ctx, sig)
	if err := s.cache.Set(ctx, key, sig, s.signalTTL); err != nil {
		s.log.Debug("signal cache write failed", logger.String("symbol", symbol), logger.Error(err))
	}
	return sig, nil
}

// score implements the three-state decision: not enough history is a proxy
// signal, a missing model triggers a synchronous train, and only a loaded,
// column-consistent artifact pair gets to produce a model score.
func (s *SignalService) score(ctx context.Context, symbol string, rows []models.FeatureRow) models.Signal {
	if len(rows) < s.minRows {
		s.log.Info("falling back to momentum proxy",
			logger.String("symbol", symbol),
			logger.Int("rows", len(rows)),
			logger.Int("min_rows", s.minRows))
		return s.proxySignal(symbol, rows, models.FallbackInsufficientData)
	}

	if !s.artifacts.Exists(symbol) {
		s.log.Info("no model on disk, training", logger.String("symbol", symbol))
		metrics, err := s.trainer.Train(ctx, symbol, rows)
		if err != nil {
			s.log.Warn("training failed, using momentum proxy",
				logger.String("symbol", symbol), logger.Error(err))
			return s.proxySignal(symbol, rows, models.FallbackTrainFailed)
		}
		s.recordTraining(ctx, symbol, metrics)
	}

	sig, err := s.modelSignal(symbol, rows)
	if err != nil {
		s.log.Warn("model inference failed, using momentum proxy",
			logger.String("symbol", symbol), logger.Error(err))
		return s.proxySignal(symbol, rows, models.FallbackArtifactError)
	}
	return sig
}

func (s *SignalService) modelSignal(symbol string, rows []models.FeatureRow) (models.Signal, error) {
	clf, scaler, err := s.artifacts.Load(symbol)
	if err != nil {
		return models.Signal{}, err
	}

	latest := rows[len(rows)-1]
	// Feed the row in the column order the model was trained with, not
	// the order the pipeline happens to emit today.
	vec, err := featureVector(latest, clf.Columns)
	if err != nil {
		return models.Signal{}, err
	}
	scaled, err := scaler.Transform(vec)
	if err != nil {
		return models.Signal{}, err
	}
	prob, err := clf.PredictProba(scaled)
	if err != nil {
		return models.Signal{}, err
	}

	return models.Signal{
		Symbol:      symbol,
		Timestamp:   latest.Timestamp,
		Score:       (prob - 0.5) * 2,
		Explanation: clf.Importances(),
	}, nil
}

// proxySignal scores from amplified recent momentum, clipped to [-1, 1].
// Zero rows yields a neutral signal rather than an error.
func (s *SignalService) proxySignal(symbol string, rows []models.FeatureRow, reason string) models.Signal {
	sig := models.Signal{
		Symbol:      symbol,
		Timestamp:   time.Now().UTC(),
		Fallback:    reason,
		Explanation: proxyExplanation(),
	}
	if len(rows) == 0 {
		return sig
	}
	latest := rows[len(rows)-1]
	sig.Timestamp = latest.Timestamp
	sig.Score = clip(latest.Momentum5D*s.amplification, -1, 1)
	return sig
}

// TrainModel retrains the symbol's model unconditionally and audits the run.
func (s *SignalService) TrainModel(ctx context.Context, symbol string) (models.TrainMetrics, error) {
	rows, err := s.pipeline.Engineer(ctx, symbol)
	if err != nil {
		return models.TrainMetrics{}, fmt.Errorf("engineer features for %s: %w", symbol, err)
	}

	metrics, err := s.trainer.Train(ctx, symbol, rows)
	if err != nil {
		return models.TrainMetrics{}, err
	}
	s.recordTraining(ctx, symbol, metrics)

	if err := s.cache.Delete(ctx, cache.Key("signal", symbol)); err != nil {
		s.log.Debug("signal cache invalidation failed", logger.String("symbol", symbol), logger.Error(err))
	}
	return metrics, nil
}

// Backtest replays the signal sign over history: long the next day's return
// when amplified momentum is positive, short when negative. Toy by design.
func (s *SignalService) Backtest(ctx context.Context, symbol string) (models.BacktestResult, error) {
	rows, err := s.pipeline.Engineer(ctx, symbol)
	if err != nil {
		return models.BacktestResult{}, fmt.Errorf("engineer features for %s: %w", symbol, err)
	}

	res := models.BacktestResult{Symbol: symbol}
	for i := 0; i+1 < len(rows); i++ {
		score := clip(rows[i].Momentum5D*s.amplification, -1, 1)
		if score == 0 {
			continue
		}
		direction := 1.0
		if score < 0 {
			direction = -1.0
		}
		res.PnL += direction * rows[i+1].Returns
		res.Trades++
	}
	return res, nil
}

// DefaultCorrelationLookback bounds the correlation window to roughly one
// trading year when the caller does not ask for a specific span.
const DefaultCorrelationLookback = 252

// Correlations builds the pairwise return-correlation matrix over the
// trailing lookback feature rows of each symbol. A lookback below two rows
// cannot produce a correlation and falls back to the default.
func (s *SignalService) Correlations(ctx context.Context, symbols []string, lookback int) (models.CorrelationMatrix, error) {
	if lookback < 2 {
		lookback = DefaultCorrelationLookback
	}

	series := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		rows, err := s.pipeline.Engineer(ctx, symbol)
		if err != nil {
			return models.CorrelationMatrix{}, fmt.Errorf("engineer features for %s: %w", symbol, err)
		}
		returns := make([]float64, 0, len(rows))
		for _, r := range rows {
			returns = append(returns, r.Returns)
		}
		if len(returns) > lookback {
			returns = returns[len(returns)-lookback:]
		}
		series[symbol] = returns
	}

	matrix := make([][]float64, len(symbols))
	for i, a := range symbols {
		matrix[i] = make([]float64, len(symbols))
		for j, b := range symbols {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			matrix[i][j] = pearson(series[a], series[b])
		}
	}
	return models.CorrelationMatrix{Symbols: symbols, Matrix: matrix}, nil
}

func (s *SignalService) archiveRows(ctx context.Context, rows []models.FeatureRow) {
	if s.archive == nil || len(rows) == 0 {
		return
	}
	if err := s.archive.Append(ctx, rows); err != nil {
		s.log.Warn("feature archive append failed", logger.Error(err))
	}
}

func (s *SignalService) publish(ctx context.Context, sig models.Signal) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, sig); err != nil {
		s.log.Warn("signal publish failed", logger.String("symbol", sig.Symbol), logger.Error(err))
	}
}

func (s *SignalService) recordTraining(ctx context.Context, symbol string, metrics models.TrainMetrics) {
	name := fmt.Sprintf("classifier_%s", symbol)
	if err := s.store.RecordTraining(ctx, name, "v1", metrics); err != nil {
		s.log.Warn("training audit write failed", logger.String("symbol", symbol), logger.Error(err))
	}
}

// featureVector extracts row values in the given column order.
func featureVector(row models.FeatureRow, columns []string) ([]float64, error) {
	vec := make([]float64, len(columns))
	for i, col := range columns {
		switch col {
		case "returns":
			vec[i] = row.Returns
		case "volatility":
			vec[i] = row.Volatility
		case "momentum_5d":
			vec[i] = row.Momentum5D
		case "corr_dxy":
			vec[i] = row.CorrDXY
		case "macro_rate":
			vec[i] = row.MacroRate
		default:
			return nil, fmt.Errorf("%w: unknown column %q", ml.ErrColumnMismatch, col)
		}
	}
	return vec, nil
}

// proxyExplanation attributes the proxy score entirely to momentum.
func proxyExplanation() []models.FeatureWeight {
	cols := models.ModelFeatureColumns()
	out := make([]models.FeatureWeight, 0, len(cols))
	out = append(out, models.FeatureWeight{Feature: "momentum_5d", Weight: 1})
	for _, c := range cols {
		if c == "momentum_5d" {
			continue
		}
		out = append(out, models.FeatureWeight{Feature: c, Weight: 0})
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a, b = a[len(a)-n:], b[len(b)-n:]

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
