package repository

import (
	"context"
	"time"

	"quantterm/internal/domain/models"
)

// MarketSource is one provider adapter. Fetch returns normalized daily bars,
// most recent last is not guaranteed; ordering is the fallback chain's job.
// A clean "provider had nothing" is reported as ErrNoData, not a transport error.
type MarketSource interface {
	Name() models.Source
	// Available reports whether the adapter can be called at all; a missing
	// API key makes a keyed provider deterministically unavailable.
	Available() bool
	Fetch(ctx context.Context, symbol string, days int) ([]models.Bar, error)
}

// BarStore is the persistence layer. Writes propagate errors (silent data loss
// would corrupt downstream training); reads degrade to empty on any storage
// error, so callers treat "empty" as a legitimate, cheap-to-retry state.
type BarStore interface {
	UpsertBars(ctx context.Context, bars []models.Bar) error
	LoadBars(ctx context.Context, symbol string, since time.Time) []models.Bar
	UpsertFundamentals(ctx context.Context, rows []models.Fundamental) error
	LoadFundamentals(ctx context.Context, metric string) []models.Fundamental
	RecordTraining(ctx context.Context, name, version string, metrics models.TrainMetrics) error
	Health(ctx context.Context) error
	Close() error
}

// FeatureArchive is an optional audit sink for engineered rows. Appends are
// telemetry: failures are logged by implementations and never block a caller.
type FeatureArchive interface {
	Append(ctx context.Context, rows []models.FeatureRow) error
	Close() error
}

// SignalPublisher emits computed signals for downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, sig models.Signal) error
	Close() error
}

// Metrics records operational counters and latencies.
type Metrics interface {
	RecordFetchAttempt(provider string)
	RecordFetchSuccess(provider string, bars int)
	RecordFallback(provider string)
	RecordSignal(symbol, fallback string)
	RecordError(kind string)
	RecordLastClose(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
