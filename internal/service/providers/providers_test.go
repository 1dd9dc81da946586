package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"quantterm/internal/domain/models"
)

var testSymbolMap = map[string]string{"XAUUSD": "GC=F", "ES": "ES=F"}

func TestTickerMapping(t *testing.T) {
	if got := Ticker(testSymbolMap, "ES"); got != "ES=F" {
		t.Fatalf("mapped ticker = %q", got)
	}
	if got := Ticker(testSymbolMap, "AAPL"); got != "AAPL" {
		t.Fatalf("unmapped symbol must pass through, got %q", got)
	}
}

func TestFXPair(t *testing.T) {
	from, to, ok := fxPair("EURUSD")
	if !ok || from != "EUR" || to != "USD" {
		t.Fatalf("EURUSD -> %s/%s ok=%v", from, to, ok)
	}
	if _, _, ok := fxPair("ES"); ok {
		t.Fatalf("ES is not an FX pair")
	}
	if _, _, ok := fxPair("ABCXYZ"); ok {
		t.Fatalf("unknown quote leg must not parse")
	}
}

func TestAlphaVantageUnavailableWithoutKey(t *testing.T) {
	av := NewAlphaVantage("http://unused", "", time.Second, testSymbolMap)
	if av.Available() {
		t.Fatalf("adapter must be unavailable without a key")
	}
}

func TestAlphaVantageParsesDailySeries(t *testing.T) {
	var gotFunction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFunction = r.URL.Query().Get("function")
		w.Write([]byte(`{
			"Time Series (Daily)": {
				"2026-03-02": {"1. open": "2050.0", "2. high": "2060.0", "3. low": "2040.0", "4. close": "2055.5", "5. volume": "120000"},
				"2026-03-03": {"1. open": "2055.0", "2. high": "2070.0", "3. low": "2050.0", "4. close": "2068.0", "5. volume": "130000"}
			}
		}`))
	}))
	defer srv.Close()

	av := NewAlphaVantage(srv.URL, "key", time.Second, testSymbolMap)
	bars, err := av.Fetch(context.Background(), "ES", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotFunction != "TIME_SERIES_DAILY" {
		t.Fatalf("function = %q", gotFunction)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !bars[0].Timestamp.Before(bars[1].Timestamp) {
		t.Fatalf("bars not ascending")
	}
	if bars[1].Close != 2068.0 || bars[1].Volume != 130000 {
		t.Fatalf("unexpected bar: %+v", bars[1])
	}
	if bars[0].Source != models.SourceAlphaVantage {
		t.Fatalf("source = %q", bars[0].Source)
	}
}

func TestAlphaVantageFXUsesFXDaily(t *testing.T) {
	var q url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query()
		w.Write([]byte(`{
			"Time Series FX (Daily)": {
				"2026-03-02": {"1. open": "1.08", "2. high": "1.09", "3. low": "1.07", "4. close": "1.085"}
			}
		}`))
	}))
	defer srv.Close()

	av := NewAlphaVantage(srv.URL, "key", time.Second, testSymbolMap)
	bars, err := av.Fetch(context.Background(), "EURUSD", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if q.Get("function") != "FX_DAILY" || q.Get("from_symbol") != "EUR" || q.Get("to_symbol") != "USD" {
		t.Fatalf("unexpected query: %v", q)
	}
	if len(bars) != 1 || bars[0].Close != 1.085 {
		t.Fatalf("unexpected bars: %+v", bars)
	}
}

func TestAlphaVantageRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	}))
	defer srv.Close()

	av := NewAlphaVantage(srv.URL, "key", time.Second, testSymbolMap)
	_, err := av.Fetch(context.Background(), "ES", 100)
	if err == nil {
		t.Fatalf("expected rate limit error")
	}
	if errors.Is(err, ErrNoData) {
		t.Fatalf("throttling must stay retryable, not ErrNoData")
	}
}

func TestAlphaVantageEmptySeriesIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	}))
	defer srv.Close()

	av := NewAlphaVantage(srv.URL, "key", time.Second, testSymbolMap)
	if _, err := av.Fetch(context.Background(), "BOGUS1", 100); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestYahooParsesChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/GC=F" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"chart": {
				"result": [{
					"timestamp": [1772409600, 1772496000, 1772582400],
					"indicators": {"quote": [{
						"open": [2050.0, 2055.0, null],
						"high": [2060.0, 2070.0, null],
						"low": [2040.0, 2050.0, null],
						"close": [2055.5, 2068.0, null],
						"volume": [120000, 130000, null]
					}]}
				}],
				"error": null
			}
		}`))
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, time.Second, testSymbolMap)
	bars, err := y.Fetch(context.Background(), "XAUUSD", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// Null close buckets (holidays) are skipped.
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 2055.5 || bars[1].Volume != 130000 {
		t.Fatalf("unexpected bars: %+v", bars)
	}
}

func TestYahooChartErrorIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": {"code": "Not Found", "description": "No data found"}}}`))
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, time.Second, testSymbolMap)
	if _, err := y.Fetch(context.Background(), "BOGUS", 100); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestYahoo404IsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, time.Second, testSymbolMap)
	if _, err := y.Fetch(context.Background(), "BOGUS", 100); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestYahooRangeBuckets(t *testing.T) {
	cases := map[int]string{10: "1mo", 200: "1y", 700: "2y", 1000: "5y", 4000: "10y"}
	for days, want := range cases {
		if got := yahooRange(days); got != want {
			t.Fatalf("yahooRange(%d) = %q, want %q", days, got, want)
		}
	}
}

func TestPolygonParsesAggregates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("apiKey"); got != "pk" {
			t.Errorf("apiKey = %q", got)
		}
		w.Write([]byte(`{
			"status": "OK",
			"resultsCount": 2,
			"results": [
				{"t": 1772409600000, "o": 5900.0, "h": 5920.0, "l": 5880.0, "c": 5910.5, "v": 1500000},
				{"t": 1772496000000, "o": 5910.0, "h": 5950.0, "l": 5900.0, "c": 5944.0, "v": 1600000}
			]
		}`))
	}))
	defer srv.Close()

	p := NewPolygon(srv.URL, "pk", time.Second, testSymbolMap)
	bars, err := p.Fetch(context.Background(), "ES", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[1].Close != 5944.0 || bars[1].Source != models.SourcePolygon {
		t.Fatalf("unexpected bar: %+v", bars[1])
	}
	if bars[0].Timestamp.Hour() != 0 {
		t.Fatalf("timestamps must be truncated to midnight, got %v", bars[0].Timestamp)
	}
}

func TestPolygonEmptyResultsIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OK", "resultsCount": 0, "results": []}`))
	}))
	defer srv.Close()

	p := NewPolygon(srv.URL, "pk", time.Second, testSymbolMap)
	if _, err := p.Fetch(context.Background(), "BOGUS", 100); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestPolygonUnavailableWithoutKey(t *testing.T) {
	p := NewPolygon("http://unused", "", time.Second, testSymbolMap)
	if p.Available() {
		t.Fatalf("adapter must be unavailable without a key")
	}
}
