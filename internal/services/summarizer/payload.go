package summarizer

import (
	"fmt"

	"StockPulse/internal/domain/models"
)

// Section identifies a summarizable part of the detail page.
type Section string

const (
	SectionPriceChart   Section = "price-chart"
	SectionPeers        Section = "peers"
	SectionQuarterly    Section = "quarterly"
	SectionProfitLoss   Section = "profit-loss"
	SectionBalanceSheet Section = "balance-sheet"
	SectionCashFlows    Section = "cash-flows"
	SectionRatios       Section = "ratios"
	SectionShareholding Section = "shareholding"
)

var sectionTitles = map[Section]string{
	SectionPriceChart:   TitlePriceChart,
	SectionPeers:        TitlePeers,
	SectionQuarterly:    TitleQuarterly,
	SectionProfitLoss:   TitleProfitLoss,
	SectionBalanceSheet: TitleBalanceSheet,
	SectionCashFlows:    TitleCashFlows,
	SectionRatios:       TitleRatios,
	SectionShareholding: TitleShareholding,
}

// Title returns the heading used in prompts, or "" for unknown sections.
func (s Section) Title() string { return sectionTitles[s] }

func (s Section) Valid() bool {
	_, ok := sectionTitles[s]
	return ok
}

// ChartState describes what the viewer has on screen for the price chart.
type ChartState struct {
	TimeRange  models.TimeRange
	Show50DMA  bool
	Show200DMA bool
	ShowVolume bool
	Points     int
}

// BuildPayload condenses detail into the data block sent for section.
func BuildPayload(s Section, d *models.StockDetail, chart ChartState) (map[string]any, error) {
	if d == nil {
		d = &models.StockDetail{}
	}
	switch s {
	case SectionPriceChart:
		return priceChartPayload(d, chart), nil
	case SectionPeers:
		return peersPayload(d), nil
	case SectionQuarterly:
		return quarterlyPayload(d), nil
	case SectionProfitLoss:
		return profitLossPayload(d), nil
	case SectionBalanceSheet:
		return balanceSheetPayload(d), nil
	case SectionCashFlows:
		return cashFlowsPayload(d), nil
	case SectionRatios:
		return ratiosPayload(d), nil
	case SectionShareholding:
		return shareholdingPayload(d), nil
	default:
		return nil, fmt.Errorf("unknown section %q", s)
	}
}

func priceChartPayload(d *models.StockDetail, c ChartState) map[string]any {
	tr := c.TimeRange
	if tr == "" {
		tr = models.DefaultTimeRange()
	}
	return map[string]any{
		"stockId":             d.ID,
		"currentTimeRange":    string(tr),
		"is50DMAVisible":      c.Show50DMA,
		"is200DMAVisible":     c.Show200DMA,
		"isVolumeVisible":     c.ShowVolume,
		"hasChartData":        c.Points > 0,
		"chartDataPointCount": c.Points,
	}
}

func peersPayload(d *models.StockDetail) map[string]any {
	rows := head(d.PeerComparison, 10)
	table := make([]map[string]any, 0, len(rows))
	cmp, pe := false, false
	for _, p := range d.PeerComparison {
		cmp = cmp || p.CMP.Valid
		pe = pe || p.PE.Valid
	}
	for _, p := range rows {
		var mc any = p.MarketCap
		if p.MarketCapFormatted != "" {
			mc = p.MarketCapFormatted
		}
		table = append(table, map[string]any{
			"name":          p.Name,
			"cmp":           p.CMP,
			"pe":            p.PE,
			"marketCap":     mc,
			"dividendYield": p.DividendYield,
			"roce":          p.ROCE,
		})
	}
	return map[string]any{
		"tableDataSummary": table,
		"chartsAvailable":  map[string]bool{"cmpChart": cmp, "peChart": pe},
		"mainCompany":      d.Name,
	}
}

func quarterlyPayload(d *models.StockDetail) map[string]any {
	rows := head(d.QuarterlyResults, 8)
	table := make([]map[string]any, 0, len(rows))
	for _, q := range rows {
		table = append(table, map[string]any{
			"quarter":   q.Quarter,
			"revenue":   q.Revenue,
			"netProfit": q.NetProfit,
			"eps":       q.EPS,
		})
	}
	has := len(d.QuarterlyResults) > 0
	return map[string]any{
		"tableDataSummary": table,
		"chartsInfo":       map[string]bool{"financialsTrend": has, "epsTrend": has},
	}
}

func profitLossPayload(d *models.StockDetail) map[string]any {
	rows := head(d.ProfitAndLoss, 5)
	table := make([]map[string]any, 0, len(rows))
	for _, pl := range rows {
		table = append(table, map[string]any{
			"Year":            pl.Year,
			"Sales":           pl.Sales,
			"OperatingProfit": pl.OperatingProfit,
			"NetProfit":       pl.NetProfit,
			"EPS":             pl.EPS,
		})
	}
	return map[string]any{
		"tableSummary": table,
		"growthMetrics": map[string]models.GrowthTable{
			"compoundedSalesGrowth":  d.CompoundedSalesGrowth,
			"compoundedProfitGrowth": d.CompoundedProfitGrowth,
			"stockPriceCagr":         d.StockPriceCAGR,
			"returnOnEquityTrend":    d.ReturnOnEquityTrend,
		},
		"chartAvailable": annualRows(d.ProfitAndLoss) > 0,
	}
}

func balanceSheetPayload(d *models.StockDetail) map[string]any {
	latest := map[string]any{}
	if n := len(d.BalanceSheet); n > 0 {
		bs := d.BalanceSheet[n-1]
		equity := models.Num{}
		if bs.EquityCapital.Valid && bs.Reserves.Valid {
			equity = models.NumOf(bs.EquityCapital.Value + bs.Reserves.Value)
		}
		latest = map[string]any{
			"latestYear":         bs.Year,
			"totalLiabilities":   bs.TotalLiabilities,
			"totalAssets":        bs.TotalAssets,
			"shareholdersEquity": equity,
			"totalDebt":          bs.Borrowings,
		}
	}
	has := len(d.BalanceSheet) > 0
	return map[string]any{
		"tableSummary":    latest,
		"chartsAvailable": map[string]bool{"liabilities": has, "assets": has},
	}
}

func cashFlowsPayload(d *models.StockDetail) map[string]any {
	rows := head(d.CashFlows, 5)
	table := make([]map[string]any, 0, len(rows))
	for _, cf := range rows {
		table = append(table, map[string]any{
			"Year":        cf.Year,
			"OperatingCF": cf.CashFromOperating,
			"InvestingCF": cf.CashFromInvesting,
			"FinancingCF": cf.CashFromFinancing,
			"NetCashFlow": cf.NetCashFlow,
		})
	}
	available := false
	for _, cf := range d.CashFlows {
		if cf.Year != "TTM" {
			available = true
			break
		}
	}
	return map[string]any{
		"tableSummary":   table,
		"chartAvailable": available,
	}
}

func ratiosPayload(d *models.StockDetail) map[string]any {
	latest := map[string]any{}
	if n := len(d.Ratios); n > 0 {
		r := d.Ratios[n-1]
		latest = map[string]any{
			"latestYear":          r.Year,
			"debtorDays":          r.DebtorDays,
			"inventoryDays":       r.InventoryDays,
			"daysPayable":         r.DaysPayable,
			"cashConversionCycle": r.CashConversionCycle,
			"workingCapitalDays":  r.WorkingCapitalDays,
			"roce":                r.ROCE,
		}
	}
	has := len(d.Ratios) > 0
	return map[string]any{
		"latestRatios":    latest,
		"chartsAvailable": map[string]bool{"efficiencyDays": has, "roceTrend": has},
	}
}

func shareholdingPayload(d *models.StockDetail) map[string]any {
	rows := head(d.Shareholding, 4)
	table := make([]map[string]any, 0, len(rows))
	for _, sh := range rows {
		table = append(table, map[string]any{
			"Date":      sh.Date,
			"Promoters": sh.Promoters,
			"FII":       sh.FII,
			"DII":       sh.DII,
			"Public":    sh.Public,
		})
	}
	var latestDate any
	if len(d.Shareholding) > 0 {
		latestDate = d.Shareholding[0].Date
	}
	has := len(d.Shareholding) > 0
	return map[string]any{
		"latestDistributionDate": latestDate,
		"tableSummary":           table,
		"chartsAvailable":        map[string]bool{"pieChart": has, "trendChart": has},
	}
}

func head[T any](rows []T, n int) []T {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

func annualRows(rows []models.ProfitAndLoss) int {
	n := 0
	for _, r := range rows {
		if r.Year != "TTM" {
			n++
		}
	}
	return n
}
