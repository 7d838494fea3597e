package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/signal"
	"StockPulse/internal/repository"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/services/summarizer"
	"StockPulse/internal/usecase"
	"StockPulse/pkg/cache"
	xhttp "StockPulse/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	listErr error
}

var stubSignals = []signal.Signal{{Name: signal.EMA, Decision: "Buy"}, {Name: signal.RSI, Decision: "Sell"}}

func (p *stubProvider) ListStocks(context.Context) ([]models.StockSummary, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return []models.StockSummary{{ID: "tcs", Name: "TCS", CurrentPrice: models.NumOf(3500), Signals: stubSignals}}, nil
}

func (p *stubProvider) GetStock(_ context.Context, id string) (*models.StockDetail, error) {
	if id != "tcs" {
		return nil, domrepo.ErrStockNotFound
	}
	return &models.StockDetail{ID: "tcs", Name: "TCS", CurrentPrice: models.NumOf(3500), Signals: stubSignals}, nil
}

func (p *stubProvider) GetPriceChart(_ context.Context, id string, _ models.TimeRange) (*models.PriceChart, error) {
	if id != "tcs" {
		return nil, domrepo.ErrStockNotFound
	}
	return &models.PriceChart{PriceData: []models.PricePoint{{Date: "2026-01-02", Close: models.NumOf(3500)}}}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newEcho(t *testing.T, p domrepo.StockProvider) *echo.Echo {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	prefs := usecase.NewPreferencesUseCase(repository.NewCachePreferenceStore(mem, time.Hour), nil)
	stocks := usecase.NewStocksUseCase(p, prefs, nil, nil)
	tracker := usecase.NewSignalTracker(repository.NewNoopHistory(), nil, nil, nil)
	pipe := summarizer.NewPipeline(summarizer.Placeholder{}, nil, nil, 0, nil, nil)
	summaries := usecase.NewSummaryUseCase(p, pipe, nil, ratelimit.New(0.001, 2), time.Second, nil)

	e := echo.New()
	xhttp.Handlers{
		NewStocksHandler(stocks, tracker, nil),
		NewPreferencesHandler(prefs, nil),
		NewSummaryHandler(summaries, nil),
	}.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func TestBoard(t *testing.T) {
	e := newEcho(t, &stubProvider{})

	code, env := do(t, e, http.MethodGet, "/api/stocks", "")
	require.Equal(t, http.StatusOK, code)
	var b usecase.Board
	require.NoError(t, json.Unmarshal(env.Data, &b))
	require.Len(t, b.Stocks, 1)
	assert.Equal(t, "Buy", b.Stocks[0].OverallSignal)

	code, env = do(t, e, http.MethodGet, "/api/stocks?indicators=RSI", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, "Sell", b.Stocks[0].OverallSignal)

	code, _ = do(t, e, http.MethodGet, "/api/stocks?indicators=Foo", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBoard_UpstreamIsBadGateway(t *testing.T) {
	e := newEcho(t, &stubProvider{listErr: domrepo.ErrUpstream})
	code, _ := do(t, e, http.MethodGet, "/api/stocks", "")
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestDetailAndChart(t *testing.T) {
	e := newEcho(t, &stubProvider{})

	code, env := do(t, e, http.MethodGet, "/api/stock/tcs?indicators=EMA", "")
	require.Equal(t, http.StatusOK, code)
	var v usecase.StockView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, "Strong Buy", v.OverallSignal)

	code, _ = do(t, e, http.MethodGet, "/api/stock/nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, e, http.MethodGet, "/api/stock/tcs/price-chart?time_range=6m", "")
	require.Equal(t, http.StatusOK, code)
	var c usecase.ChartView
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, models.Range6M, c.TimeRange)
	assert.Equal(t, "N/A", c.RSI)

	code, _ = do(t, e, http.MethodGet, "/api/stock/tcs/price-chart?time_range=2w", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHistoryAndIndicators(t *testing.T) {
	e := newEcho(t, &stubProvider{})

	code, env := do(t, e, http.MethodGet, "/api/stock/tcs/signal-history?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	var list xhttp.ListDataResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Zero(t, list.Total)

	code, _ = do(t, e, http.MethodGet, "/api/stock/tcs/signal-history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, e, http.MethodGet, "/api/indicators", "")
	require.Equal(t, http.StatusOK, code)
	var cat []signal.IndicatorInfo
	require.NoError(t, json.Unmarshal(env.Data, &cat))
	assert.Len(t, cat, len(signal.AllIndicators()))
}

func TestPreferencesRoutes(t *testing.T) {
	e := newEcho(t, &stubProvider{})

	code, env := do(t, e, http.MethodPost, "/api/preferences/bob/indicators/RSI/toggle", "")
	require.Equal(t, http.StatusOK, code)
	var mv usecase.MaskView
	require.NoError(t, json.Unmarshal(env.Data, &mv))
	assert.NotContains(t, mv.Selected, signal.RSI)

	// the stored mask now drives the board
	_, env = do(t, e, http.MethodGet, "/api/stocks?viewer=bob", "")
	var b usecase.Board
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, "Strong Buy", b.Stocks[0].OverallSignal)

	code, _ = do(t, e, http.MethodPost, "/api/preferences/bob/indicators/Nope/toggle", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, e, http.MethodDelete, "/api/preferences/bob/indicators", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &mv))
	assert.False(t, mv.Stored)

	code, env = do(t, e, http.MethodGet, "/api/preferences/bob/indicators", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &mv))
	assert.Len(t, mv.Selected, len(signal.AllIndicators()))
}

func TestSummaryRoutes(t *testing.T) {
	e := newEcho(t, &stubProvider{})

	code, env := do(t, e, http.MethodPost, "/api/stock/tcs/summary", `{"section":"price-chart","timeRange":"5y","show200dma":false,"viewer":"v1"}`)
	require.Equal(t, http.StatusOK, code)
	var res summarizer.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, summarizer.SectionPriceChart, res.Section)
	assert.Equal(t, "TCS", res.StockName)

	code, _ = do(t, e, http.MethodPost, "/api/stock/tcs/summary", `{"section":"weather"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, e, http.MethodPost, "/api/stock/nope/summary", `{"section":"ratios","viewer":"v2"}`)
	assert.Equal(t, http.StatusNotFound, code)

	// v1 has one token left of a burst of two
	code, _ = do(t, e, http.MethodPost, "/api/stock/tcs/summary", `{"section":"ratios","viewer":"v1"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, e, http.MethodPost, "/api/stock/tcs/summary", `{"section":"ratios","viewer":"v1"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = do(t, e, http.MethodGet, "/api/summary/jobs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, e, http.MethodGet, "/api/summary/jobs/6f1c2f4e-8a53-4c3e-9d0b-2b7a1e5e6a10", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestToAppError(t *testing.T) {
	tests := map[string]struct {
		err    error
		status int
	}{
		"blocked": {err: summarizer.Blocked("SAFETY"), status: 422},
		"quota":   {err: &summarizer.Error{Kind: summarizer.ErrQuotaExceeded, Message: "q"}, status: http.StatusTooManyRequests},
		"key":     {err: &summarizer.Error{Kind: summarizer.ErrInvalidAPIKey, Message: "k"}, status: http.StatusServiceUnavailable},
		"timeout": {err: context.DeadlineExceeded, status: http.StatusGatewayTimeout},
		"other":   {err: assert.AnError, status: http.StatusInternalServerError},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.status, toAppError(tt.err).Status)
		})
	}
}
