package insight

import (
	"StockPulse/internal/domain/models"

	"github.com/shopspring/decimal"
)

// DefaultRSIPeriod is the classic 14-bar window.
const DefaultRSIPeriod = 14

// RSI computes the relative strength index over the chart's closing prices
// with Wilder smoothing. Points without a close are skipped. It needs at
// least period+1 closes and returns "100.00" when there were no losses.
func RSI(points []models.PricePoint, period int) string {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	closes := make([]float64, 0, len(points))
	for _, p := range points {
		if c, ok := p.ClosePrice().Get(); ok {
			closes = append(closes, c)
		}
	}
	v, ok := rsi(closes, period)
	if !ok {
		return NA
	}
	return fixed(decimal.NewFromFloat(v))
}

func rsi(closes []float64, period int) (float64, bool) {
	if len(closes) <= period {
		return 0, false
	}
	n := float64(period)

	var gains, losses float64
	for i := 1; i <= period; i++ {
		diff := closes[i] - closes[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	avgGain, avgLoss := gains/n, losses/n

	for i := period + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff >= 0 {
			avgGain = (avgGain*(n-1) + diff) / n
			avgLoss = avgLoss * (n - 1) / n
		} else {
			avgGain = avgGain * (n - 1) / n
			avgLoss = (avgLoss*(n-1) - diff) / n
		}
	}
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
