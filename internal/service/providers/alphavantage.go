package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
)

// AlphaVantage is the primary market-data source. It requires an API key;
// without one the adapter reports itself unavailable and the chain skips it.
type AlphaVantage struct {
	client    *resty.Client
	apiKey    string
	symbolMap map[string]string
}

func NewAlphaVantage(baseURL, apiKey string, timeout time.Duration, symbolMap map[string]string) drepo.MarketSource {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &AlphaVantage{
		client:    client,
		apiKey:    apiKey,
		symbolMap: symbolMap,
	}
}

func (a *AlphaVantage) Name() models.Source { return models.SourceAlphaVantage }

func (a *AlphaVantage) Available() bool { return a.apiKey != "" }

type avEnvelope struct {
	Daily   map[string]map[string]string `json:"Time Series (Daily)"`
	FXDaily map[string]map[string]string `json:"Time Series FX (Daily)"`
	Note    string                       `json:"Note"`
	ErrMsg  string                       `json:"Error Message"`
}

// Fetch pulls the daily series for symbol and normalizes it to canonical bars.
func (a *AlphaVantage) Fetch(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	if !a.Available() {
		return nil, ErrNoData
	}

	params := map[string]string{
		"apikey":     a.apiKey,
		"outputsize": "full",
	}
	if from, to, ok := fxPair(symbol); ok {
		params["function"] = "FX_DAILY"
		params["from_symbol"] = from
		params["to_symbol"] = to
	} else {
		params["function"] = "TIME_SERIES_DAILY"
		params["symbol"] = Ticker(a.symbolMap, symbol)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/query")
	if err != nil {
		return nil, fmt.Errorf("alphavantage fetch %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("alphavantage %s: status %d", symbol, resp.StatusCode())
	}

	var env avEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("alphavantage parse %s: %w", symbol, err)
	}
	if env.Note != "" {
		// API throttle message; transient, the chain's retry policy handles it.
		return nil, fmt.Errorf("alphavantage %s: rate limited: %s", symbol, env.Note)
	}

	series := env.Daily
	if len(series) == 0 {
		series = env.FXDaily
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	bars := make([]models.Bar, 0, len(series))
	for date, fields := range series {
		ts, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		bar := models.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      avFloat(fields, "1. open"),
			High:      avFloat(fields, "2. high"),
			Low:       avFloat(fields, "3. low"),
			Close:     avFloat(fields, "4. close"),
			Volume:    int64(avFloat(fields, "5. volume")),
			Source:    models.SourceAlphaVantage,
		}
		if bar.Close == 0 {
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return sortBars(bars), nil
}

func avFloat(fields map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(fields[key], 64)
	if err != nil {
		return 0
	}
	return v
}

// fxPair splits a six-letter FX identifier like EURUSD into its legs.
func fxPair(symbol string) (string, string, bool) {
	if len(symbol) != 6 {
		return "", "", false
	}
	for _, r := range symbol {
		if r < 'A' || r > 'Z' {
			return "", "", false
		}
	}
	switch symbol[3:] {
	case "USD", "EUR", "GBP", "JPY", "CHF":
		return symbol[:3], symbol[3:], true
	}
	return "", "", false
}
