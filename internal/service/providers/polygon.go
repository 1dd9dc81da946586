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

// Polygon is the secondary market-data source (keyed aggregates API).
type Polygon struct {
	client    *resty.Client
	apiKey    string
	symbolMap map[string]string
}

func NewPolygon(baseURL, apiKey string, timeout time.Duration, symbolMap map[string]string) drepo.MarketSource {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &Polygon{
		client:    client,
		apiKey:    apiKey,
		symbolMap: symbolMap,
	}
}

func (p *Polygon) Name() models.Source { return models.SourcePolygon }

func (p *Polygon) Available() bool { return p.apiKey != "" }

type polygonAgg struct {
	T int64   `json:"t"` // ms since epoch
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type polygonResponse struct {
	Status       string       `json:"status"`
	ResultsCount int          `json:"resultsCount"`
	Results      []polygonAgg `json:"results"`
}

// Fetch pulls daily aggregates covering the requested span. Polygon counts
// calendar days, so the request window is padded to cover weekends/holidays.
func (p *Polygon) Fetch(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	if !p.Available() {
		return nil, ErrNoData
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -(days*3/2 + 7))
	ticker := Ticker(p.symbolMap, symbol)

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"adjusted": "true",
			"sort":     "asc",
			"limit":    "50000",
			"apiKey":   p.apiKey,
		}).
		Get(fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
			ticker, from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err != nil {
		return nil, fmt.Errorf("polygon fetch %s: %w", symbol, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("polygon %s: status %d: %s", symbol, resp.StatusCode(), resp.String())
	}

	var pr polygonResponse
	if err := json.Unmarshal(resp.Body(), &pr); err != nil {
		return nil, fmt.Errorf("polygon parse %s: %w", symbol, err)
	}
	if pr.ResultsCount == 0 || len(pr.Results) == 0 {
		return nil, ErrNoData
	}

	bars := make([]models.Bar, 0, len(pr.Results))
	for _, a := range pr.Results {
		if a.C == 0 {
			continue
		}
		bars = append(bars, models.Bar{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(a.T).UTC().Truncate(24 * time.Hour),
			Open:      a.O,
			High:      a.H,
			Low:       a.L,
			Close:     a.C,
			Volume:    int64(a.V),
			Source:    models.SourcePolygon,
		})
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return sortBars(bars), nil
}
