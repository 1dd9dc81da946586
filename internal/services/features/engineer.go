package features

import (
	"context"
	"math"
	"time"

	"quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
)

// Config carries the engineering knobs. The NaN policy is fixed: volatility,
// correlation, momentum and macro are filled with neutral zeros where the
// rolling window is incomplete; only the first bar (undefined returns) is
// dropped.
type Config struct {
	Window          int     // rolling window for volatility/correlation
	MomentumPeriod  int     // momentum lookback in bars
	ReferenceSymbol string  // correlation reference asset (DXY)
	MacroMetric     string  // fundamentals metric joined as macro_rate
	MacroDefault    float64 // macro value when the series is absent
}

// Pipeline derives FeatureRows from persisted bars. It is pure computation:
// it reads through the BarStore but never writes (archiving is an explicit,
// separate call owned by the usecase layer).
type Pipeline struct {
	store drepo.BarStore
	cfg   Config
}

func NewPipeline(store drepo.BarStore, cfg Config) *Pipeline {
	if cfg.Window < 2 {
		cfg.Window = 20
	}
	if cfg.MomentumPeriod < 1 {
		cfg.MomentumPeriod = 5
	}
	return &Pipeline{store: store, cfg: cfg}
}

// Engineer computes the feature rows for symbol over its full persisted
// history. Zero persisted bars yields an empty slice and no error; callers
// must treat that as a legitimate state, not a failure.
func (p *Pipeline) Engineer(ctx context.Context, symbol string) ([]models.FeatureRow, error) {
	bars := p.store.LoadBars(ctx, symbol, time.Time{})
	if len(bars) == 0 {
		return []models.FeatureRow{}, nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	returns := dailyReturns(closes)
	vol := rollingStd(returns, p.cfg.Window)
	for i := range vol {
		vol[i] *= math.Sqrt(252)
	}
	momentum := momentumSeries(closes, p.cfg.MomentumPeriod)

	refReturns := p.referenceReturns(ctx, bars)
	corr := rollingCorr(returns, refReturns, p.cfg.Window)

	macro := p.macroSeries(ctx, bars)

	// First bar has no return; drop it, fill everything else with neutral zeros.
	rows := make([]models.FeatureRow, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		rows = append(rows, models.FeatureRow{
			Symbol:     symbol,
			Timestamp:  bars[i].Timestamp,
			Returns:    returns[i],
			Volatility: vol[i],
			Momentum5D: momentum[i],
			CorrDXY:    corr[i],
			MacroRate:  macro[i],
		})
	}
	return rows, nil
}

// referenceReturns aligns the reference asset's returns to the symbol's
// calendar, zero-filling dates the reference did not trade.
func (p *Pipeline) referenceReturns(ctx context.Context, bars []models.Bar) []float64 {
	aligned := make([]float64, len(bars))

	refBars := p.store.LoadBars(ctx, p.cfg.ReferenceSymbol, time.Time{})
	if len(refBars) < 2 {
		return aligned
	}

	byDate := make(map[string]float64, len(refBars))
	for i := 1; i < len(refBars); i++ {
		prev := refBars[i-1].Close
		if prev == 0 {
			continue
		}
		byDate[dateKey(refBars[i].Timestamp)] = refBars[i].Close/prev - 1
	}

	for i, b := range bars {
		aligned[i] = byDate[dateKey(b.Timestamp)]
	}
	return aligned
}

// macroSeries forward-fills the configured fundamentals metric onto the bar
// calendar, falling back to the constant default when the series is empty.
func (p *Pipeline) macroSeries(ctx context.Context, bars []models.Bar) []float64 {
	out := make([]float64, len(bars))

	series := p.store.LoadFundamentals(ctx, p.cfg.MacroMetric)
	if len(series) == 0 {
		for i := range out {
			out[i] = p.cfg.MacroDefault
		}
		return out
	}

	j := 0
	last := series[0].Value
	for i, b := range bars {
		for j < len(series) && !series[j].Date.After(b.Timestamp) {
			last = series[j].Value
			j++
		}
		out[i] = last
	}
	return out
}

// dailyReturns is the close-to-close relative change; index 0 is undefined
// and left at zero (the row is dropped by the caller).
func dailyReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i] = closes[i]/closes[i-1] - 1
	}
	return out
}

func momentumSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := period; i < len(closes); i++ {
		if closes[i-period] == 0 {
			continue
		}
		out[i] = closes[i]/closes[i-period] - 1
	}
	return out
}

// rollingStd is the sample standard deviation over the trailing window,
// zero while the window is incomplete.
func rollingStd(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	for i := window; i < len(series); i++ {
		sum, sum2 := 0.0, 0.0
		for k := i - window + 1; k <= i; k++ {
			sum += series[k]
			sum2 += series[k] * series[k]
		}
		n := float64(window)
		mean := sum / n
		variance := (sum2 - n*mean*mean) / (n - 1)
		if variance > 0 {
			out[i] = math.Sqrt(variance)
		}
	}
	return out
}

// rollingCorr is the Pearson correlation of a and b over the trailing
// window, zero while incomplete or when either side has no variance.
func rollingCorr(a, b []float64, window int) []float64 {
	out := make([]float64, len(a))
	if len(b) != len(a) {
		return out
	}
	for i := window; i < len(a); i++ {
		var sa, sb, saa, sbb, sab float64
		for k := i - window + 1; k <= i; k++ {
			sa += a[k]
			sb += b[k]
			saa += a[k] * a[k]
			sbb += b[k] * b[k]
			sab += a[k] * b[k]
		}
		n := float64(window)
		cov := sab - sa*sb/n
		va := saa - sa*sa/n
		vb := sbb - sb*sb/n
		if va <= 0 || vb <= 0 {
			continue
		}
		out[i] = cov / math.Sqrt(va*vb)
	}
	return out
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
