package models

// Requests for terminal HTTP endpoints. Defined in domain for consistency and reuse.

type OHLCRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Days   int    `query:"days" json:"days" default:"1000" validate:"gte=1,lte=50000"`
}

type FeaturesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type SignalRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type TrainRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

// RefreshRequest re-pulls bars. An empty Symbol refreshes every configured asset.
type RefreshRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Days   int    `query:"days" json:"days" default:"1000" validate:"gte=1,lte=50000"`
}

type BacktestRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}
