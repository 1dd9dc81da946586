package providers

import (
	"errors"
	"sort"

	"quantterm/internal/domain/models"
)

// ErrNoData is the typed "provider responded but had nothing" result. It is
// an adapter-level outcome, not a transport failure: the fallback chain moves
// on to the next source and never retries it.
var ErrNoData = errors.New("no data returned")

// Ticker resolves a canonical asset identifier to a provider ticker via the
// injected symbol map. Unmapped symbols pass through unchanged.
func Ticker(symbolMap map[string]string, symbol string) string {
	if t, ok := symbolMap[symbol]; ok {
		return t
	}
	return symbol
}

// sortBars orders bars ascending by timestamp in place and returns them.
func sortBars(bars []models.Bar) []models.Bar {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars
}
