package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
	"quantterm/internal/service/providers"
	"quantterm/internal/service/ratelimit"
	"quantterm/pkg/cache"
	"quantterm/pkg/logger"
	"quantterm/pkg/retry"
	"quantterm/pkg/util"
)

// Fetcher pulls daily bars through an ordered chain of market data sources
// and persists whatever it gets. Source order is priority order: the first
// source that returns bars wins and the rest are never tried.
type Fetcher struct {
	sources []drepo.MarketSource
	store   drepo.BarStore
	cache   cache.Service
	policy  retry.Policy
	limiter *ratelimit.Limiter
	rate    RateConfig
	dataTTL time.Duration
	metrics drepo.Metrics
	log     *logger.Logger
}

// RateConfig is the local token-bucket applied per provider before any
// network call, so a burst of dashboard loads cannot burn an API quota.
type RateConfig struct {
	Capacity     float64
	RefillPerSec float64
}

func NewFetcher(
	sources []drepo.MarketSource,
	store drepo.BarStore,
	cacheSvc cache.Service,
	policy retry.Policy,
	rate RateConfig,
	dataTTL time.Duration,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Fetcher {
	if dataTTL <= 0 {
		dataTTL = time.Hour
	}
	if rate.Capacity <= 0 {
		rate.Capacity = 5
	}
	if rate.RefillPerSec <= 0 {
		rate.RefillPerSec = 5.0 / 60
	}
	return &Fetcher{
		sources: sources,
		store:   store,
		cache:   cacheSvc,
		policy:  policy,
		limiter: ratelimit.New(),
		rate:    rate,
		dataTTL: dataTTL,
		metrics: metrics,
		log:     log,
	}
}

// FetchOHLC walks the source chain for the given symbol. Per-source failures
// are logged and swallowed; only exhausting every source is an error.
func (f *Fetcher) FetchOHLC(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	if days <= 0 {
		days = 1000
	}

	for _, src := range f.sources {
		if !src.Available() {
			f.log.Debug("source not configured, skipping",
				logger.String("source", string(src.Name())),
				logger.String("symbol", symbol))
			continue
		}
		if !f.limiter.Allow(string(src.Name()), f.rate.Capacity, f.rate.RefillPerSec) {
			f.metrics.RecordFallback(string(src.Name()))
			f.log.Warn("provider quota exhausted locally, trying next",
				logger.String("source", string(src.Name())),
				logger.String("symbol", symbol))
			continue
		}

		bars, err := f.fetchOne(ctx, src, symbol, days)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.metrics.RecordFallback(string(src.Name()))
			f.log.Warn("source failed, trying next",
				logger.String("source", string(src.Name())),
				logger.String("symbol", symbol),
				logger.Error(err))
			continue
		}
		if len(bars) == 0 {
			f.metrics.RecordFallback(string(src.Name()))
			f.log.Warn("source returned no rows, trying next",
				logger.String("source", string(src.Name())),
				logger.String("symbol", symbol))
			continue
		}

		bars = trimBars(bars, days)
		if err := f.store.UpsertBars(ctx, bars); err != nil {
			return nil, fmt.Errorf("persist %s bars: %w", symbol, err)
		}

		f.metrics.RecordFetchSuccess(string(src.Name()), len(bars))
		f.metrics.RecordLastClose(symbol, bars[len(bars)-1].Close)
		f.log.Info("fetched bars",
			logger.String("source", string(src.Name())),
			logger.String("symbol", symbol),
			logger.Int("rows", len(bars)))
		return bars, nil
	}

	f.metrics.RecordError("fetch_exhausted")
	return nil, fmt.Errorf("all sources exhausted for %s: %w", symbol, providers.ErrNoData)
}

// GetOHLC serves bars cache-first, then store, then the live source chain.
func (f *Fetcher) GetOHLC(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	if days <= 0 {
		days = 1000
	}
	key := cache.Key("ohlc", symbol, days)

	var cached []models.Bar
	if err := f.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
		return cached, nil
	}

	since := util.DaysAgo(days)
	if bars := f.store.LoadBars(ctx, symbol, since); len(bars) > 0 {
		f.cacheBars(ctx, key, bars)
		return bars, nil
	}

	bars, err := f.FetchOHLC(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	f.cacheBars(ctx, key, bars)
	return bars, nil
}

// Refresh re-pulls every configured asset and invalidates its cache entries.
// One failing asset does not stop the rest; the error reports all failures.
func (f *Fetcher) Refresh(ctx context.Context, symbols []string, days int) (map[string]int, error) {
	counts := make(map[string]int, len(symbols))
	var failed []string

	for _, symbol := range symbols {
		bars, err := f.FetchOHLC(ctx, symbol, days)
		if err != nil {
			if ctx.Err() != nil {
				return counts, ctx.Err()
			}
			failed = append(failed, symbol)
			continue
		}
		counts[symbol] = len(bars)
		if err := f.cache.Delete(ctx, cache.Key("ohlc", symbol, days), cache.Key("signal", symbol)); err != nil {
			f.log.Debug("cache invalidation failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	if len(failed) > 0 {
		return counts, fmt.Errorf("refresh failed for %v", failed)
	}
	return counts, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, src drepo.MarketSource, symbol string, days int) ([]models.Bar, error) {
	var bars []models.Bar
	err := f.policy.Do(ctx, func() error {
		f.metrics.RecordFetchAttempt(string(src.Name()))
		start := time.Now()
		var ferr error
		bars, ferr = src.Fetch(ctx, symbol, days)
		f.metrics.RecordLatency("fetch_"+string(src.Name()), time.Since(start).Seconds())
		if errors.Is(ferr, providers.ErrNoData) {
			// An empty answer is definitive for this source. Retrying
			// will not conjure rows, so hand off to the next source.
			return retry.Stop(ferr)
		}
		return ferr
	})
	return bars, err
}

func (f *Fetcher) cacheBars(ctx context.Context, key string, bars []models.Bar) {
	if err := f.cache.Set(ctx, key, bars, f.dataTTL); err != nil {
		f.log.Debug("cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// trimBars keeps the most recent n bars, oldest first.
func trimBars(bars []models.Bar, n int) []models.Bar {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars
}
