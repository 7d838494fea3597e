package models

// TimeRange is a price-chart window code accepted by the provider.
type TimeRange string

const (
	Range1M  TimeRange = "1m"
	Range6M  TimeRange = "6m"
	Range1Y  TimeRange = "1y"
	Range3Y  TimeRange = "3y"
	Range5Y  TimeRange = "5y"
	RangeMax TimeRange = "max"
)

// IsValidTimeRange returns true if r is a supported range.
func IsValidTimeRange(r TimeRange) bool {
	switch r {
	case Range1M, Range6M, Range1Y, Range3Y, Range5Y, RangeMax:
		return true
	default:
		return false
	}
}

// DefaultTimeRange returns the range the chart opens with.
func DefaultTimeRange() TimeRange { return Range1Y }

// NormalizeTimeRange converts a raw string to a valid range (or default).
func NormalizeTimeRange(s string) TimeRange {
	r := TimeRange(s)
	if IsValidTimeRange(r) {
		return r
	}
	return DefaultTimeRange()
}

// PricePoint is one bar of the price chart.
type PricePoint struct {
	Date   string `json:"date"`
	Close  Num    `json:"close"`
	Price  Num    `json:"price"`
	Volume Num    `json:"volume"`
	DMA50  Num    `json:"dma50"`
	DMA200 Num    `json:"dma200"`
}

// ClosePrice prefers close and falls back to price.
func (p PricePoint) ClosePrice() Num {
	if p.Close.Valid {
		return p.Close
	}
	return p.Price
}

// PriceChart is the provider's price-chart response.
type PriceChart struct {
	PriceData []PricePoint `json:"priceData"`
}
