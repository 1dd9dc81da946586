package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
)

// Yahoo is the tertiary, keyless source. It is the guaranteed-available last
// resort of the fallback chain; only its empty result is fatal to a fetch.
type Yahoo struct {
	client    *resty.Client
	symbolMap map[string]string
}

func NewYahoo(baseURL string, timeout time.Duration, symbolMap map[string]string) drepo.MarketSource {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "quantterm/1.0")

	return &Yahoo{client: client, symbolMap: symbolMap}
}

func (y *Yahoo) Name() models.Source { return models.SourceYahoo }

// Available is always true: the chart API needs no key.
func (y *Yahoo) Available() bool { return true }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) Fetch(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	ticker := Ticker(y.symbolMap, symbol)

	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"range":    yahooRange(days),
			"interval": "1d",
		}).
		Get("/v8/finance/chart/" + ticker)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("yahoo %s: status %d", symbol, resp.StatusCode())
	}

	var yc yahooChart
	if err := json.Unmarshal(resp.Body(), &yc); err != nil {
		return nil, fmt.Errorf("yahoo parse %s: %w", symbol, err)
	}
	if yc.Chart.Error != nil || len(yc.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	result := yc.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil, ErrNoData
	}
	quote := result.Indicators.Quote[0]

	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := deref(quote.Close, i)
		if c == 0 {
			continue // market holiday / null bucket
		}
		var vol int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		bars = append(bars, models.Bar{
			Symbol:    symbol,
			Timestamp: time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:      deref(quote.Open, i),
			High:      deref(quote.High, i),
			Low:       deref(quote.Low, i),
			Close:     c,
			Volume:    vol,
			Source:    models.SourceYahoo,
		})
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return sortBars(bars), nil
}

func deref(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func yahooRange(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	case days <= 1825:
		return "5y"
	default:
		return "10y"
	}
}
