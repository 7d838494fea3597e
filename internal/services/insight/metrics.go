// Package insight derives display figures and chart series from provider
// payloads. All functions are pure.
package insight

import (
	"StockPulse/internal/domain/models"

	"github.com/shopspring/decimal"
)

// NA is rendered for anything that cannot be computed.
const NA = "N/A"

var hundred = decimal.NewFromInt(100)

// KeyMetrics is the key-metrics panel of the detail page.
type KeyMetrics struct {
	MarketCap     string `json:"marketCap"`
	CurrentPrice  string `json:"currentPrice"`
	PreviousClose string `json:"previousClose"`
	DayRange      string `json:"dayHighLow"`
	YearRange     string `json:"yearHighLow"`
	PE            string `json:"stockPE"`
	BookValue     string `json:"bookValue"`
	DividendYield string `json:"dividendYield"`
	ROCE          string `json:"roce"`
	ROE           string `json:"roe"`
	FaceValue     string `json:"faceValue"`
}

// PriceChange is the move against the previous close.
type PriceChange struct {
	Absolute   string `json:"absolute"`
	Percent    string `json:"percent"`
	IsPositive bool   `json:"isPositive"`
}

// Metrics computes every key metric of d.
func Metrics(d *models.StockDetail) KeyMetrics {
	if d == nil {
		d = &models.StockDetail{}
	}
	mc := string(d.MarketCap)
	if mc == "" {
		mc = NA
	}
	return KeyMetrics{
		MarketCap:     mc,
		CurrentPrice:  plain(d.CurrentPrice),
		PreviousClose: plain(d.PreviousClose),
		DayRange:      Range(d.DayHigh, d.DayLow),
		YearRange:     Range(d.YearHigh, d.YearLow),
		PE:            PE(d),
		BookValue:     BookValue(d),
		DividendYield: DividendYield(d),
		ROCE:          ROCE(d),
		ROE:           ROE(d),
		FaceValue:     plain(d.FaceValue),
	}
}

// PE is price over trailing EPS.
func PE(d *models.StockDetail) string {
	return ratio(d.CurrentPrice, d.EarningsPerShareTTM, false)
}

// DividendYield is dividend per share over price, in percent.
func DividendYield(d *models.StockDetail) string {
	return ratio(d.DividendPerShare, d.CurrentPrice, true)
}

// ROCE is EBIT over capital employed, in percent.
func ROCE(d *models.StockDetail) string {
	return ratio(d.EarningsBeforeInterestAndTaxAnnual, d.CapitalEmployedAnnual, true)
}

// ROE is net profit over shareholder equity, in percent.
func ROE(d *models.StockDetail) string {
	return ratio(d.NetProfitAnnual, d.ShareholderEquity, true)
}

// BookValue formats the book value per share. Zero is a valid book value.
func BookValue(d *models.StockDetail) string {
	if !d.BookValuePerShare.Valid {
		return NA
	}
	return fixed(decimal.NewFromFloat(d.BookValuePerShare.Value))
}

// Range renders "hi / lo" with N/A for a missing side.
func Range(hi, lo models.Num) string {
	return plain(hi) + " / " + plain(lo)
}

// Change computes the price change against the previous close. Both inputs
// must be known and non-zero.
func Change(d *models.StockDetail) PriceChange {
	if d == nil || !d.CurrentPrice.NonZero() || !d.PreviousClose.NonZero() {
		return PriceChange{Absolute: NA, Percent: NA, IsPositive: true}
	}
	cur := decimal.NewFromFloat(d.CurrentPrice.Value)
	prev := decimal.NewFromFloat(d.PreviousClose.Value)
	diff := cur.Sub(prev)
	return PriceChange{
		Absolute:   fixed(diff),
		Percent:    fixed(diff.Div(prev).Mul(hundred)),
		IsPositive: !diff.IsNegative(),
	}
}

// ratio returns num/den (x100 when pct) to two places. Missing or zero
// inputs yield N/A.
func ratio(num, den models.Num, pct bool) string {
	if !num.NonZero() || !den.NonZero() {
		return NA
	}
	v := decimal.NewFromFloat(num.Value).Div(decimal.NewFromFloat(den.Value))
	if pct {
		v = v.Mul(hundred)
	}
	return fixed(v)
}

func fixed(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func plain(n models.Num) string {
	if !n.Valid {
		return NA
	}
	return decimal.NewFromFloat(n.Value).String()
}
