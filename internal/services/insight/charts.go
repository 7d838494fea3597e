package insight

import (
	"strings"

	"StockPulse/internal/domain/models"
)

const ttmYear = "TTM"

// PriceVolumePoint is one bar of the price/volume chart.
type PriceVolumePoint struct {
	Date   string     `json:"date"`
	Price  models.Num `json:"price"`
	Volume models.Num `json:"volume"`
}

type RevenueProfitPoint struct {
	Name      string     `json:"name"`
	Sales     models.Num `json:"sales"`
	NetProfit models.Num `json:"netProfit"`
}

type CashFlowPoint struct {
	Name      string     `json:"name"`
	Operating models.Num `json:"cashFromOperating"`
	Investing models.Num `json:"cashFromInvesting"`
	Financing models.Num `json:"cashFromFinancing"`
	Net       models.Num `json:"netCashFlow"`
}

type QuarterlyPoint struct {
	Name      string     `json:"name"`
	Revenue   models.Num `json:"revenue"`
	NetProfit models.Num `json:"netProfit"`
	EPS       models.Num `json:"eps"`
}

type BalancePoint struct {
	Name             string     `json:"name"`
	TotalLiabilities models.Num `json:"totalLiabilities"`
	TotalAssets      models.Num `json:"totalAssets"`
}

type RatioPoint struct {
	Name          string     `json:"name"`
	DebtorDays    models.Num `json:"debtorDays"`
	InventoryDays models.Num `json:"inventoryDays"`
	DaysPayable   models.Num `json:"daysPayable"`
	ROCE          models.Num `json:"roce"`
}

type PeerMetricPoint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// PeerChart is a bar chart of one metric across peers.
type PeerChart struct {
	Title   string            `json:"title"`
	DataKey string            `json:"dataKey"`
	Data    []PeerMetricPoint `json:"data"`
}

type SharePiece struct {
	Name  string     `json:"name"`
	Value models.Num `json:"value"`
}

type ShareTrendPoint struct {
	Date      string     `json:"date"`
	Promoters models.Num `json:"Promoters"`
	FII       models.Num `json:"FII"`
	DII       models.Num `json:"DII"`
	Public    models.Num `json:"Public"`
}

// Charts bundles every derived series of the detail page.
type Charts struct {
	RevenueProfit    []RevenueProfitPoint `json:"revenueProfit"`
	CashFlows        []CashFlowPoint      `json:"cashFlows"`
	Quarterly        []QuarterlyPoint     `json:"quarterly"`
	Balance          []BalancePoint       `json:"balance"`
	Ratios           []RatioPoint         `json:"ratios"`
	PeerCMP          PeerChart            `json:"peerCmp"`
	PeerPE           PeerChart            `json:"peerPe"`
	ShareholdingPie  []SharePiece         `json:"shareholdingPie"`
	ShareholdingPlot []ShareTrendPoint    `json:"shareholdingTrend"`
}

// BuildCharts derives all chart series from d.
func BuildCharts(d *models.StockDetail) Charts {
	if d == nil {
		return Charts{}
	}
	return Charts{
		RevenueProfit:    AnnualRevenueProfit(d.ProfitAndLoss),
		CashFlows:        AnnualCashFlows(d.CashFlows),
		Quarterly:        QuarterlySeries(d.QuarterlyResults),
		Balance:          BalanceSeries(d.BalanceSheet),
		Ratios:           RatioSeries(d.Ratios),
		PeerCMP:          PeerMetric(d.PeerComparison, "cmp", "Current Market Price"),
		PeerPE:           PeerMetric(d.PeerComparison, "pe", "P/E Ratio"),
		ShareholdingPie:  ShareholdingPie(LatestShareholding(d.Shareholding)),
		ShareholdingPlot: ShareholdingTrend(d.Shareholding),
	}
}

// PriceVolume maps chart points to date/price/volume with close as price.
func PriceVolume(points []models.PricePoint) []PriceVolumePoint {
	out := make([]PriceVolumePoint, 0, len(points))
	for _, p := range points {
		out = append(out, PriceVolumePoint{Date: p.Date, Price: p.ClosePrice(), Volume: p.Volume})
	}
	return out
}

// AnnualRevenueProfit skips the TTM row.
func AnnualRevenueProfit(rows []models.ProfitAndLoss) []RevenueProfitPoint {
	out := make([]RevenueProfitPoint, 0, len(rows))
	for _, r := range rows {
		if r.Year == ttmYear {
			continue
		}
		out = append(out, RevenueProfitPoint{Name: r.Year, Sales: r.Sales, NetProfit: r.NetProfit})
	}
	return out
}

// AnnualCashFlows skips the TTM row.
func AnnualCashFlows(rows []models.CashFlow) []CashFlowPoint {
	out := make([]CashFlowPoint, 0, len(rows))
	for _, r := range rows {
		if r.Year == ttmYear {
			continue
		}
		out = append(out, CashFlowPoint{
			Name:      r.Year,
			Operating: r.CashFromOperating,
			Investing: r.CashFromInvesting,
			Financing: r.CashFromFinancing,
			Net:       r.NetCashFlow,
		})
	}
	return out
}

func QuarterlySeries(rows []models.QuarterlyResult) []QuarterlyPoint {
	out := make([]QuarterlyPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, QuarterlyPoint{Name: r.Quarter, Revenue: r.Revenue, NetProfit: r.NetProfit, EPS: r.EPS})
	}
	return out
}

func BalanceSeries(rows []models.BalanceSheet) []BalancePoint {
	out := make([]BalancePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, BalancePoint{Name: r.Year, TotalLiabilities: r.TotalLiabilities, TotalAssets: r.TotalAssets})
	}
	return out
}

func RatioSeries(rows []models.RatioRow) []RatioPoint {
	out := make([]RatioPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, RatioPoint{
			Name:          r.Year,
			DebtorDays:    r.DebtorDays,
			InventoryDays: r.InventoryDays,
			DaysPayable:   r.DaysPayable,
			ROCE:          r.ROCE,
		})
	}
	return out
}

// PeerMetric keeps only peers that have a numeric value for metric.
// Supported metrics: cmp, pe, marketCap, dividendYield, roce.
func PeerMetric(peers []models.PeerRow, metric, title string) PeerChart {
	chart := PeerChart{Title: title, DataKey: metric, Data: []PeerMetricPoint{}}
	for _, p := range peers {
		if v, ok := peerValue(p, metric).Get(); ok {
			chart.Data = append(chart.Data, PeerMetricPoint{Name: p.Name, Value: v})
		}
	}
	return chart
}

func peerValue(p models.PeerRow, metric string) models.Num {
	switch metric {
	case "cmp":
		return p.CMP
	case "pe":
		return p.PE
	case "marketCap":
		return p.MarketCap
	case "dividendYield":
		return p.DividendYield
	case "roce":
		return p.ROCE
	default:
		return models.Num{}
	}
}

// LatestShareholding returns the last history entry, or nil.
func LatestShareholding(history []models.Shareholding) *models.Shareholding {
	if len(history) == 0 {
		return nil
	}
	return &history[len(history)-1]
}

// ShareholdingPie splits the latest pattern into named slices. "others" is
// left out unless it is positive.
func ShareholdingPie(s *models.Shareholding) []SharePiece {
	if s == nil || s.Date == "" {
		return []SharePiece{}
	}
	pieces := []SharePiece{
		{Name: "promoters", Value: s.Promoters},
		{Name: "fii", Value: s.FII},
		{Name: "dii", Value: s.DII},
		{Name: "public", Value: s.Public},
	}
	if v, ok := s.Others.Get(); ok && v > 0 {
		pieces = append(pieces, SharePiece{Name: "others", Value: s.Others})
	}
	for i := range pieces {
		pieces[i].Name = strings.ToUpper(pieces[i].Name)
	}
	return pieces
}

func ShareholdingTrend(history []models.Shareholding) []ShareTrendPoint {
	out := make([]ShareTrendPoint, 0, len(history))
	for _, h := range history {
		out = append(out, ShareTrendPoint{Date: h.Date, Promoters: h.Promoters, FII: h.FII, DII: h.DII, Public: h.Public})
	}
	return out
}
