package usecase

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/signal"
	"StockPulse/internal/services/insight"
	applogger "StockPulse/pkg/logger"
)

// Verdict is the overall signal for one stock under one mask.
type Verdict struct {
	OverallSignal string           `json:"overallSignal"`
	SignalClass   string           `json:"signalClass"`
	Breakdown     signal.Breakdown `json:"breakdown"`
}

// Judge evaluates signals under mask.
func Judge(signals []signal.Signal, mask signal.SelectionMask) Verdict {
	b := signal.Evaluate(signals, mask)
	label := b.Decision.String()
	return Verdict{OverallSignal: label, SignalClass: signal.StyleClass(label), Breakdown: b}
}

// BoardRow is a stock summary with its overall signal.
type BoardRow struct {
	models.StockSummary
	Verdict
}

type Board struct {
	Mask     string                 `json:"mask"`
	Selected []signal.IndicatorName `json:"selected"`
	Stocks   []BoardRow             `json:"stocks"`
}

// StockView is everything the detail page renders.
type StockView struct {
	Stock   *models.StockDetail `json:"stock"`
	Mask    string              `json:"mask"`
	Metrics insight.KeyMetrics  `json:"keyMetrics"`
	Change  insight.PriceChange `json:"priceChange"`
	Charts  insight.Charts      `json:"charts"`
	Verdict
}

// Rejudge recomputes the verdict for a new mask without refetching.
func (v *StockView) Rejudge(mask signal.SelectionMask) {
	v.Mask = mask.String()
	v.Verdict = Judge(v.Stock.Signals, mask)
}

type ChartView struct {
	StockID   string                     `json:"stockId"`
	TimeRange models.TimeRange           `json:"timeRange"`
	Points    []models.PricePoint        `json:"priceData"`
	Series    []insight.PriceVolumePoint `json:"series"`
	RSI       string                     `json:"rsi"`
	RSIPeriod int                        `json:"rsiPeriod"`
}

// StocksUseCase serves the board, detail and chart reads.
type StocksUseCase struct {
	provider domrepo.StockProvider
	prefs    *PreferencesUseCase
	metrics  domrepo.Metrics
	l        *applogger.Logger
	timeout  time.Duration
}

func NewStocksUseCase(p domrepo.StockProvider, prefs *PreferencesUseCase, m domrepo.Metrics, l *applogger.Logger) *StocksUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &StocksUseCase{provider: p, prefs: prefs, metrics: m, l: l, timeout: 30 * time.Second}
}

func (uc *StocksUseCase) Board(ctx context.Context, indicators, viewer string) (*Board, error) {
	mask, err := uc.prefs.Resolve(ctx, indicators, viewer)
	if err != nil {
		return nil, err
	}
	return uc.BoardWithMask(ctx, mask)
}

// BoardWithMask lists every stock with its verdict under mask.
func (uc *StocksUseCase) BoardWithMask(ctx context.Context, mask signal.SelectionMask) (*Board, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	list, err := uc.provider.ListStocks(ctx)
	if err != nil {
		uc.recordError("board")
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	rows := make([]BoardRow, len(list))
	for i, s := range list {
		rows[i] = BoardRow{StockSummary: s, Verdict: Judge(s.Signals, mask)}
	}
	return &Board{Mask: mask.String(), Selected: mask.Names(), Stocks: rows}, nil
}

func (uc *StocksUseCase) Detail(ctx context.Context, id, indicators, viewer string) (*StockView, error) {
	mask, err := uc.prefs.Resolve(ctx, indicators, viewer)
	if err != nil {
		return nil, err
	}
	return uc.DetailWithMask(ctx, id, mask)
}

// DetailWithMask loads one stock and derives metrics and chart series.
func (uc *StocksUseCase) DetailWithMask(ctx context.Context, id string, mask signal.SelectionMask) (*StockView, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	d, err := uc.provider.GetStock(ctx, id)
	if err != nil {
		uc.recordError("detail")
		return nil, fmt.Errorf("get stock %s: %w", id, err)
	}
	v := &StockView{
		Stock:   d,
		Metrics: insight.Metrics(d),
		Change:  insight.Change(d),
		Charts:  insight.BuildCharts(d),
	}
	v.Rejudge(mask)
	return v, nil
}

// PriceChart loads points for r and computes RSI over them.
func (uc *StocksUseCase) PriceChart(ctx context.Context, id string, r models.TimeRange, period int) (*ChartView, error) {
	if period <= 0 {
		period = insight.DefaultRSIPeriod
	}
	if !models.IsValidTimeRange(r) {
		r = models.DefaultTimeRange()
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	chart, err := uc.provider.GetPriceChart(ctx, id, r)
	if err != nil {
		uc.recordError("chart")
		return nil, fmt.Errorf("price chart %s: %w", id, err)
	}
	points := chart.PriceData
	if points == nil {
		points = []models.PricePoint{}
	}
	return &ChartView{
		StockID:   id,
		TimeRange: r,
		Points:    points,
		Series:    insight.PriceVolume(points),
		RSI:       insight.RSI(points, period),
		RSIPeriod: period,
	}, nil
}

func (uc *StocksUseCase) recordError(op string) {
	if uc.metrics != nil {
		uc.metrics.RecordError("usecase_" + op)
	}
}
