package models

import "time"

// Source identifies the market-data provider a bar came from.
type Source string

const (
	SourceAlphaVantage Source = "alphavantage"
	SourcePolygon      Source = "polygon"
	SourceYahoo        Source = "yahoo"
)

// Bar is one OHLCV observation at day granularity. Bars are unique per
// (symbol, timestamp); a later fetch for the same key overwrites the stored row.
type Bar struct {
	Symbol    string    `db:"symbol" json:"symbol"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Open      float64   `db:"open" json:"open"`
	High      float64   `db:"high" json:"high"`
	Low       float64   `db:"low" json:"low"`
	Close     float64   `db:"close" json:"close"`
	Volume    int64     `db:"volume" json:"volume"`
	Source    Source    `db:"source" json:"source"`
}

// FeatureRow is one engineered observation derived from a window of bars.
// Rows are recomputed on each request, never incrementally maintained.
type FeatureRow struct {
	Symbol     string    `db:"symbol" json:"symbol"`
	Timestamp  time.Time `db:"date" json:"timestamp"`
	Returns    float64   `db:"returns" json:"returns"`
	Volatility float64   `db:"volatility" json:"volatility"`
	Momentum5D float64   `db:"momentum_5d" json:"momentum_5d"`
	CorrDXY    float64   `db:"corr_dxy" json:"corr_dxy"`
	MacroRate  float64   `db:"macro_rate" json:"macro_rate"`
}

// FeatureColumns is the canonical column order of a FeatureRow.
// Returns is positional column 0; the remainder are model inputs.
func FeatureColumns() []string {
	return []string{"returns", "volatility", "momentum_5d", "corr_dxy", "macro_rate"}
}

// ModelFeatureColumns are the columns fed to the classifier: everything except
// returns (the label source) and identity columns.
func ModelFeatureColumns() []string {
	return []string{"volatility", "momentum_5d", "corr_dxy", "macro_rate"}
}

// ModelFeatureVector extracts the model inputs in ModelFeatureColumns order.
func (r FeatureRow) ModelFeatureVector() []float64 {
	return []float64{r.Volatility, r.Momentum5D, r.CorrDXY, r.MacroRate}
}

// Fundamental is one exogenous macro observation, e.g. metric "FEDFUNDS".
type Fundamental struct {
	Date   time.Time `db:"date" json:"date"`
	Metric string    `db:"metric" json:"metric"`
	Value  float64   `db:"value" json:"value"`
}
