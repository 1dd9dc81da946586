package di

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	drepo "quantterm/internal/domain/repository"
	"quantterm/internal/handler/api"
	internalrepo "quantterm/internal/repository"
	"quantterm/internal/service/providers"
	"quantterm/internal/services/features"
	"quantterm/internal/services/ml"
	"quantterm/internal/usecase"
	"quantterm/pkg/cache"
	pkgch "quantterm/pkg/clickhouse"
	"quantterm/pkg/config"
	xhttp "quantterm/pkg/http"
	pkgkafka "quantterm/pkg/kafka"
	applogger "quantterm/pkg/logger"
	"quantterm/pkg/metrics"
	"quantterm/pkg/retry"
	"quantterm/pkg/server"
	"quantterm/pkg/sqlite"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideDB opens the SQLite database file.
func ProvideDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlite.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	return db, nil
}

// ProvideBarStore builds the SQLite store and runs its schema.
func ProvideBarStore(db *sqlx.DB, log *applogger.Logger) (drepo.BarStore, error) {
	store, err := internalrepo.NewSQLiteStore(db, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return store, nil
}

// ProvideSources builds the market source chain in priority order.
func ProvideSources(cfg *config.Config) []drepo.MarketSource {
	return []drepo.MarketSource{
		providers.NewAlphaVantage(
			cfg.Providers.AlphaVantage.BaseURL,
			cfg.Providers.AlphaVantage.APIKey,
			cfg.Providers.AlphaVantage.Timeout,
			cfg.SymbolMap,
		),
		providers.NewPolygon(
			cfg.Providers.Polygon.BaseURL,
			cfg.Providers.Polygon.APIKey,
			cfg.Providers.Polygon.Timeout,
			cfg.SymbolMap,
		),
		providers.NewYahoo(
			cfg.Providers.Yahoo.BaseURL,
			cfg.Providers.Yahoo.Timeout,
			cfg.SymbolMap,
		),
	}
}

// ProvideCache picks Redis when configured, in-process memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Redis.Enabled {
		return cache.NewRedisCache(
			cfg.Cache.Redis.Addr,
			cfg.Cache.Redis.Password,
			cfg.Cache.Redis.DB,
			"quantterm",
		)
	}
	return cache.NewMemoryCache(0), nil
}

// ProvideFeatureArchive creates the feature-history sink: ClickHouse when
// configured, otherwise the local features table in SQLite.
func ProvideFeatureArchive(cfg *config.Config, db *sqlx.DB, log *applogger.Logger) (drepo.FeatureArchive, error) {
	if !cfg.Archive.Enabled {
		return internalrepo.NewFeatureTableArchive(db), nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.Archive.Host, cfg.Archive.Port),
		pkgch.WithDatabase(cfg.Archive.Database),
		pkgch.WithCredentials(cfg.Archive.User, cfg.Archive.Password),
		pkgch.WithDialTimeout(cfg.Archive.DialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	archive, err := internalrepo.NewClickHouseArchive(ctx, client, cfg.Archive.Database)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse archive: %w", err)
	}
	log.Info("feature archive enabled", applogger.String("database", cfg.Archive.Database))
	return archive, nil
}

// ProvideSignalPublisher creates the optional Kafka signal publisher.
func ProvideSignalPublisher(cfg *config.Config, log *applogger.Logger) (drepo.SignalPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	log.Info("signal publisher enabled", applogger.String("topic", cfg.Kafka.Topic))
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideFetcher creates the OHLC fetch usecase.
func ProvideFetcher(
	cfg *config.Config,
	sources []drepo.MarketSource,
	store drepo.BarStore,
	cacheSvc cache.Service,
	m drepo.Metrics,
	log *applogger.Logger,
) *usecase.Fetcher {
	policy := retry.Policy{
		MaxAttempts: cfg.Providers.Retry.MaxAttempts,
		BaseDelay:   cfg.Providers.Retry.BaseDelay,
		MaxDelay:    cfg.Providers.Retry.MaxDelay,
		Jitter:      cfg.Providers.Retry.Jitter,
	}
	rate := usecase.RateConfig{
		Capacity:     cfg.Providers.RateLimit.Capacity,
		RefillPerSec: cfg.Providers.RateLimit.RefillPerSec,
	}
	return usecase.NewFetcher(sources, store, cacheSvc, policy, rate, cfg.Cache.DataTTL, m, log)
}

// ProvideSignalService creates the feature/inference usecase.
func ProvideSignalService(
	cfg *config.Config,
	store drepo.BarStore,
	archive drepo.FeatureArchive,
	publisher drepo.SignalPublisher,
	cacheSvc cache.Service,
	m drepo.Metrics,
	log *applogger.Logger,
) *usecase.SignalService {
	pipeline := features.NewPipeline(store, features.Config{
		Window:          cfg.Features.Window,
		MomentumPeriod:  cfg.Features.MomentumPeriod,
		ReferenceSymbol: cfg.ReferenceSymbol,
		MacroMetric:     cfg.Features.MacroMetric,
		MacroDefault:    cfg.Features.MacroDefault,
	})
	artifacts := ml.NewStore(cfg.Models.Dir)
	trainer := ml.NewTrainer(artifacts, ml.TrainConfig{
		MinSamples:   cfg.Models.MinSamples,
		CVSplits:     cfg.Models.CVSplits,
		Epochs:       cfg.Models.Epochs,
		LearningRate: cfg.Models.LearningRate,
	})
	return usecase.NewSignalService(
		pipeline, trainer, artifacts, store, archive, publisher, cacheSvc, m, log,
		cfg.Features.MinRows, cfg.Features.Amplification, cfg.Cache.SignalTTL,
	)
}

// ProvideHandler creates the HTTP handler with all routes.
func ProvideHandler(
	cfg *config.Config,
	log *applogger.Logger,
	fetcher *usecase.Fetcher,
	signals *usecase.SignalService,
	store drepo.BarStore,
) xhttp.Handler {
	return api.NewTerminalHandler(log, fetcher, signals, store, cfg.Assets)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	store drepo.BarStore,
	archive drepo.FeatureArchive,
	publisher drepo.SignalPublisher,
	cacheSvc cache.Service,
) *server.App {
	app := server.New(cfg, log, handler, store, archive, publisher)
	app.AddCloser(cacheSvc.Close)
	return app
}
