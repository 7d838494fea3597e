package signal

import "strings"

// IndicatorName identifies one technical indicator reported by the provider.
type IndicatorName string

const (
	EMA            IndicatorName = "EMA"
	SMA            IndicatorName = "SMA"
	MACD           IndicatorName = "MACD"
	ADX            IndicatorName = "ADX"
	Supertrend     IndicatorName = "Supertrend"
	Ichimoku       IndicatorName = "Ichimoku"
	PSAR           IndicatorName = "PSAR"
	RSI            IndicatorName = "RSI"
	WilliamsR      IndicatorName = "WilliamsR"
	VWAP           IndicatorName = "VWAP"
	BollingerBands IndicatorName = "BollingerBands"
	ATR            IndicatorName = "ATR"
)

// allIndicators is the canonical order. Aggregation sums in this order.
var allIndicators = []IndicatorName{
	EMA, SMA, MACD, ADX, Supertrend, Ichimoku, PSAR, RSI, WilliamsR, VWAP, BollingerBands, ATR,
}

var indicatorWeights = map[IndicatorName]float64{
	RSI:            1.0,
	EMA:            1.5,
	SMA:            1.5,
	MACD:           1.0,
	ADX:            1.0,
	Supertrend:     1.5,
	BollingerBands: 1.0,
	VWAP:           1.0,
	WilliamsR:      1.0,
	PSAR:           1.0,
	Ichimoku:       1.5,
	ATR:            1.0,
}

var displayNames = map[IndicatorName]string{
	Supertrend:     "SUPER TREND",
	Ichimoku:       "ICHIMOKU CLOUD",
	PSAR:           "PARABOLIC SAR",
	WilliamsR:      "WILLIAMS %R",
	BollingerBands: "BOLLINGER BANDS",
}

// AllIndicators returns a copy of the closed indicator set in canonical order.
func AllIndicators() []IndicatorName {
	out := make([]IndicatorName, len(allIndicators))
	copy(out, allIndicators)
	return out
}

// IsKnown reports whether n belongs to the closed indicator set.
func (n IndicatorName) IsKnown() bool {
	_, ok := indicatorWeights[n]
	return ok
}

// Weight returns the static weight of n, or 0 for names outside the set.
func (n IndicatorName) Weight() float64 {
	return indicatorWeights[n]
}

// DisplayName returns the label shown next to the indicator toggle.
func (n IndicatorName) DisplayName() string {
	if d, ok := displayNames[n]; ok {
		return d
	}
	return string(n)
}

// ParseIndicator matches s against the closed set, case-insensitively.
func ParseIndicator(s string) (IndicatorName, bool) {
	s = strings.TrimSpace(s)
	for _, n := range allIndicators {
		if strings.EqualFold(string(n), s) {
			return n, true
		}
	}
	return "", false
}

// IndicatorInfo describes one indicator for listing endpoints.
type IndicatorInfo struct {
	Name        IndicatorName `json:"name"`
	DisplayName string        `json:"displayName"`
	Weight      float64       `json:"weight"`
}

// Catalog lists every indicator with its display name and weight.
func Catalog() []IndicatorInfo {
	out := make([]IndicatorInfo, 0, len(allIndicators))
	for _, n := range allIndicators {
		out = append(out, IndicatorInfo{Name: n, DisplayName: n.DisplayName(), Weight: n.Weight()})
	}
	return out
}
