package usecase

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quantterm/internal/domain/models"
	"quantterm/internal/services/features"
	"quantterm/internal/services/ml"
	"quantterm/pkg/cache"
	"quantterm/pkg/logger"
)

// oscillatingBars produces closes that trend gently while oscillating, so
// both label classes appear in training data.
func oscillatingBars(symbol string, n int) []models.Bar {
	out := make([]models.Bar, n)
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := range out {
		close := 100 + 10*math.Sin(float64(i)/3) + 0.05*float64(i)
		out[i] = models.Bar{
			Symbol:    symbol,
			Timestamp: base.AddDate(0, 0, i),
			Open:      close - 0.2,
			High:      close + 0.5,
			Low:       close - 0.5,
			Close:     close,
			Volume:    1000,
			Source:    models.SourceYahoo,
		}
	}
	return out
}

func buildSignalService(t *testing.T, store *stubStore, minSamples int) (*SignalService, string) {
	t.Helper()
	dir := t.TempDir()

	pipeline := features.NewPipeline(store, features.Config{
		Window:          5,
		MomentumPeriod:  5,
		ReferenceSymbol: "DXY",
		MacroMetric:     "FEDFUNDS",
		MacroDefault:    5.33,
	})
	artifacts := ml.NewStore(dir)
	trainer := ml.NewTrainer(artifacts, ml.TrainConfig{
		MinSamples:   minSamples,
		CVSplits:     3,
		Epochs:       60,
		LearningRate: 0.1,
	})
	svc := NewSignalService(
		pipeline, trainer, artifacts, store, nil, nil,
		cache.NewMemoryCache(0), noopMetrics{}, logger.Nop(),
		50, 5, time.Hour,
	)
	return svc, dir
}

func TestInferInsufficientDataUsesProxy(t *testing.T) {
	store := newStubStore()
	store.bars["ES"] = oscillatingBars("ES", 40)
	svc, dir := buildSignalService(t, store, 20)

	sig, err := svc.Infer(context.Background(), "ES")
	require.NoError(t, err)
	require.Equal(t, models.FallbackInsufficientData, sig.Fallback)
	require.GreaterOrEqual(t, sig.Score, -1.0)
	require.LessOrEqual(t, sig.Score, 1.0)
	require.Equal(t, "momentum_5d", sig.TopFeature())
	require.NotEmpty(t, sig.Narrative)

	// Below the threshold nothing is trained or persisted.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestInferNoHistoryIsNeutral(t *testing.T) {
	svc, _ := buildSignalService(t, newStubStore(), 20)

	sig, err := svc.Infer(context.Background(), "GHOST")
	require.NoError(t, err)
	require.Equal(t, models.FallbackInsufficientData, sig.Fallback)
	require.Zero(t, sig.Score)
}

func TestInferTrainsOnFirstCallAndScores(t *testing.T) {
	store := newStubStore()
	store.bars["XAUUSD"] = oscillatingBars("XAUUSD", 120)
	svc, _ := buildSignalService(t, store, 20)

	sig, err := svc.Infer(context.Background(), "XAUUSD")
	require.NoError(t, err)
	require.Empty(t, sig.Fallback)
	require.GreaterOrEqual(t, sig.Score, -1.0)
	require.LessOrEqual(t, sig.Score, 1.0)

	require.Len(t, sig.Explanation, len(models.ModelFeatureColumns()))
	for i := 1; i < len(sig.Explanation); i++ {
		require.GreaterOrEqual(t, sig.Explanation[i-1].Weight, sig.Explanation[i].Weight)
	}
}

func TestInferTrainFailureFallsBackToProxy(t *testing.T) {
	store := newStubStore()
	store.bars["NQ"] = oscillatingBars("NQ", 80)
	// 79 feature rows clear the inference threshold but not this trainer's.
	svc, _ := buildSignalService(t, store, 500)

	sig, err := svc.Infer(context.Background(), "NQ")
	require.NoError(t, err)
	require.Equal(t, models.FallbackTrainFailed, sig.Fallback)
	require.GreaterOrEqual(t, sig.Score, -1.0)
	require.LessOrEqual(t, sig.Score, 1.0)
}

func TestInferCorruptArtifactFallsBackToProxy(t *testing.T) {
	store := newStubStore()
	store.bars["EURUSD"] = oscillatingBars("EURUSD", 120)
	svc, dir := buildSignalService(t, store, 20)

	_, err := svc.TrainModel(context.Background(), "EURUSD")
	require.NoError(t, err)

	// A scaler trained against different columns must never be applied.
	corrupt := `{"columns":["bogus"],"mean":[0],"std":[1]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scaler_EURUSD.json"), []byte(corrupt), 0o644))

	sig, err := svc.Infer(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.Equal(t, models.FallbackArtifactError, sig.Fallback)
}

func TestInferServesCachedSignal(t *testing.T) {
	store := newStubStore()
	store.bars["ES"] = oscillatingBars("ES", 120)
	svc, _ := buildSignalService(t, store, 20)

	first, err := svc.Infer(context.Background(), "ES")
	require.NoError(t, err)

	// Wipe the history; a cached answer must not notice.
	store.bars["ES"] = nil
	second, err := svc.Infer(context.Background(), "ES")
	require.NoError(t, err)
	require.Equal(t, first.Score, second.Score)
	require.Equal(t, first.Fallback, second.Fallback)
}

func TestTrainModelInsufficientData(t *testing.T) {
	store := newStubStore()
	store.bars["ES"] = oscillatingBars("ES", 10)
	svc, _ := buildSignalService(t, store, 50)

	_, err := svc.TrainModel(context.Background(), "ES")
	require.ErrorIs(t, err, ml.ErrInsufficientData)
}

func TestBacktestTradesTheSignalSign(t *testing.T) {
	store := newStubStore()
	store.bars["ES"] = oscillatingBars("ES", 120)
	svc, _ := buildSignalService(t, store, 20)

	res, err := svc.Backtest(context.Background(), "ES")
	require.NoError(t, err)
	require.Equal(t, "ES", res.Symbol)
	require.Greater(t, res.Trades, 0)
}

func TestCorrelationsMatrixShape(t *testing.T) {
	store := newStubStore()
	store.bars["ES"] = oscillatingBars("ES", 120)
	store.bars["NQ"] = oscillatingBars("NQ", 120)
	svc, _ := buildSignalService(t, store, 20)

	m, err := svc.Correlations(context.Background(), []string{"ES", "NQ"}, DefaultCorrelationLookback)
	require.NoError(t, err)
	require.Equal(t, []string{"ES", "NQ"}, m.Symbols)
	require.Len(t, m.Matrix, 2)
	require.Equal(t, 1.0, m.Matrix[0][0])
	require.Equal(t, 1.0, m.Matrix[1][1])
	// Identical price paths correlate perfectly.
	require.InDelta(t, 1.0, m.Matrix[0][1], 1e-9)
}

func TestCorrelationsLookbackDefaultsWhenTooSmall(t *testing.T) {
	store := newStubStore()
	store.bars["ES"] = oscillatingBars("ES", 120)
	store.bars["NQ"] = oscillatingBars("NQ", 120)
	svc, _ := buildSignalService(t, store, 20)

	full, err := svc.Correlations(context.Background(), []string{"ES", "NQ"}, 0)
	require.NoError(t, err)
	short, err := svc.Correlations(context.Background(), []string{"ES", "NQ"}, 10)
	require.NoError(t, err)
	require.InDelta(t, full.Matrix[0][1], short.Matrix[0][1], 1e-9)
	require.InDelta(t, 1.0, short.Matrix[0][1], 1e-9)
}
