package api

import (
	"github.com/labstack/echo/v4"

	models "quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
	"quantterm/internal/usecase"
	xhttp "quantterm/pkg/http"
	xlogger "quantterm/pkg/logger"
)

// TerminalHandler exposes the dashboard API: bars, features, signals and the
// operations that maintain them.
type TerminalHandler struct {
	logger  *xlogger.Logger
	fetcher *usecase.Fetcher
	signals *usecase.SignalService
	store   drepo.BarStore
	assets  []string
}

func NewTerminalHandler(
	logger *xlogger.Logger,
	fetcher *usecase.Fetcher,
	signals *usecase.SignalService,
	store drepo.BarStore,
	assets []string,
) *TerminalHandler {
	return &TerminalHandler{
		logger:  logger,
		fetcher: fetcher,
		signals: signals,
		store:   store,
		assets:  assets,
	}
}

func (h *TerminalHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/ohlc", h.OHLC)
	g.GET("/features", h.Features)
	g.GET("/signal", h.Signal)
	g.GET("/backtest", h.Backtest)
	g.GET("/correlations", h.Correlations)
	g.POST("/train", h.Train)
	g.POST("/refresh", h.Refresh)
}

func (h *TerminalHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Error("store health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("storage unavailable"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *TerminalHandler) OHLC(c echo.Context) error {
	req := &models.OHLCRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	bars, err := h.fetcher.GetOHLC(c.Request().Context(), req.Symbol, req.Days)
	if err != nil {
		h.logger.Error("ohlc usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no data available for %s", req.Symbol).WithError(err))
	}
	return xhttp.ListResponse(c, bars, int64(len(bars)))
}

func (h *TerminalHandler) Features(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.signals.Features(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("features usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TerminalHandler) Signal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sig, err := h.signals.Infer(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("signal usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *TerminalHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	metrics, err := h.signals.TrainModel(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("train usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("training failed for %s", req.Symbol).WithError(err))
	}
	return xhttp.SuccessResponse(c, metrics)
}

func (h *TerminalHandler) Refresh(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	symbols := h.assets
	if req.Symbol != "" {
		symbols = []string{req.Symbol}
	}

	counts, err := h.fetcher.Refresh(c.Request().Context(), symbols, req.Days)
	if err != nil {
		h.logger.Error("refresh usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("refresh incomplete").WithError(err))
	}
	return xhttp.SuccessResponse(c, counts)
}

func (h *TerminalHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.signals.Backtest(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("backtest usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *TerminalHandler) Correlations(c echo.Context) error {
	lookback := xhttp.ParseIntDefault(c.QueryParam("lookback"), usecase.DefaultCorrelationLookback)
	matrix, err := h.signals.Correlations(c.Request().Context(), h.assets, lookback)
	if err != nil {
		h.logger.Error("correlations usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, matrix)
}
