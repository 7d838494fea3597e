package api

import (
	"net/http"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/signal"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StocksHandler serves the board, detail, chart and history reads.
type StocksHandler struct {
	stocks  *usecase.StocksUseCase
	tracker *usecase.SignalTracker
	l       *applogger.Logger
}

func NewStocksHandler(stocks *usecase.StocksUseCase, tracker *usecase.SignalTracker, l *applogger.Logger) *StocksHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &StocksHandler{stocks: stocks, tracker: tracker, l: l}
}

func (h *StocksHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/stocks", h.Board)
	g.GET("/stock/:id", h.Detail)
	g.GET("/stock/:id/price-chart", h.PriceChart)
	g.GET("/stock/:id/signal-history", h.History)
	g.GET("/indicators", h.Indicators)
}

func (h *StocksHandler) Board(c echo.Context) error {
	req := &models.BoardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	b, err := h.stocks.Board(c.Request().Context(), req.Indicators, req.Viewer)
	if err != nil {
		return h.fail(c, "board", err)
	}
	return xhttp.SuccessResponse(c, b)
}

func (h *StocksHandler) Detail(c echo.Context) error {
	req := &models.StockRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	v, err := h.stocks.Detail(c.Request().Context(), req.ID, req.Indicators, req.Viewer)
	if err != nil {
		return h.fail(c, "detail", err)
	}
	return xhttp.SuccessResponse(c, v)
}

func (h *StocksHandler) PriceChart(c echo.Context) error {
	req := &models.PriceChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	v, err := h.stocks.PriceChart(c.Request().Context(), req.ID, models.TimeRange(req.TimeRange), req.Period)
	if err != nil {
		return h.fail(c, "price_chart", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, v)
}

func (h *StocksHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.tracker.History(c.Request().Context(), req.ID, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *StocksHandler) Indicators(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return c.JSON(http.StatusOK, xhttp.APIResponse{Status: http.StatusOK, Message: "OK", Data: signal.Catalog()})
}

func (h *StocksHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.l.Error("stocks request failed", applogger.String("op", op), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
