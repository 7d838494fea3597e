package models

import "StockPulse/internal/domain/signal"

// StockSummary is one row of the provider's stock list.
type StockSummary struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CurrentPrice Num             `json:"currentPrice"`
	MarketCap    Text            `json:"marketCap"`
	Signals      []signal.Signal `json:"signals"`
}

// GrowthTable maps a period label ("10 Years", "TTM", ...) to a value.
type GrowthTable map[string]Text

// StockDetail is the provider's full per-stock payload.
type StockDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	NSECode  string `json:"nseCode"`
	BSECode  string `json:"bseCode"`

	CurrentPrice  Num  `json:"currentPrice"`
	PreviousClose Num  `json:"previousClose"`
	DayHigh       Num  `json:"dayHigh"`
	DayLow        Num  `json:"dayLow"`
	YearHigh      Num  `json:"yearHigh"`
	YearLow       Num  `json:"yearLow"`
	MarketCap     Text `json:"marketCap"`
	FaceValue     Num  `json:"faceValue"`

	EarningsPerShareTTM                Num `json:"earningsPerShareTTM"`
	BookValuePerShare                  Num `json:"bookValuePerShare"`
	DividendPerShare                   Num `json:"dividendPerShare"`
	EarningsBeforeInterestAndTaxAnnual Num `json:"earningsBeforeInterestAndTaxAnnual"`
	CapitalEmployedAnnual              Num `json:"capitalEmployedAnnual"`
	NetProfitAnnual                    Num `json:"netProfitAnnual"`
	ShareholderEquity                  Num `json:"shareholderEquity"`

	Signals []signal.Signal `json:"signals"`

	CompoundedSalesGrowth  GrowthTable `json:"compoundedSalesGrowth,omitempty"`
	CompoundedProfitGrowth GrowthTable `json:"compoundedProfitGrowth,omitempty"`
	StockPriceCAGR         GrowthTable `json:"stockPriceCagr,omitempty"`
	ReturnOnEquityTrend    GrowthTable `json:"returnOnEquityTrend,omitempty"`

	PeerComparison   []PeerRow         `json:"peerComparison"`
	QuarterlyResults []QuarterlyResult `json:"quarterlyResults"`
	ProfitAndLoss    []ProfitAndLoss   `json:"profitAndLoss"`
	BalanceSheet     []BalanceSheet    `json:"balanceSheet"`
	CashFlows        []CashFlow        `json:"cashFlows"`
	Ratios           []RatioRow        `json:"ratios"`
	Shareholding     []Shareholding    `json:"shareholdingPatternHistory"`

	Pros      []string `json:"pros"`
	Cons      []string `json:"cons"`
	About     string   `json:"about"`
	KeyPoints []string `json:"keyPoints"`
}

// IsEmpty reports whether the provider returned an empty object.
func (d *StockDetail) IsEmpty() bool {
	return d == nil || (d.ID == "" && d.Name == "")
}

type PeerRow struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	CMP                Num    `json:"cmp"`
	PE                 Num    `json:"pe"`
	MarketCap          Num    `json:"marketCap"`
	MarketCapFormatted string `json:"marketCapFormatted,omitempty"`
	DividendYield      Num    `json:"dividendYield"`
	ROCE               Num    `json:"roce"`
	NetProfitQtr       Num    `json:"netProfitQtr"`
	QtrProfitVar       Num    `json:"qtrProfitVar"`
	SalesQtr           Num    `json:"salesQtr"`
	QtrSalesVar        Num    `json:"qtrSalesVar"`
}

type QuarterlyResult struct {
	Quarter   string `json:"quarter"`
	Revenue   Num    `json:"revenue"`
	NetProfit Num    `json:"netProfit"`
	EPS       Num    `json:"eps"`
	Interest  Num    `json:"interest"`
}

type ProfitAndLoss struct {
	Year            string `json:"year"`
	Sales           Num    `json:"sales"`
	Expenses        Num    `json:"expenses"`
	OperatingProfit Num    `json:"operatingProfit"`
	OPM             Num    `json:"opm"`
	OtherIncome     Num    `json:"otherIncome"`
	Interest        Num    `json:"interest"`
	Depreciation    Num    `json:"depreciation"`
	ProfitBeforeTax Num    `json:"profitBeforeTax"`
	Tax             Num    `json:"tax"`
	NetProfit       Num    `json:"netProfit"`
	EPS             Num    `json:"eps"`
	DividendPayout  Num    `json:"dividendPayout"`
}

type BalanceSheet struct {
	Year             string `json:"year"`
	EquityCapital    Num    `json:"equityCapital"`
	Reserves         Num    `json:"reserves"`
	Borrowings       Num    `json:"borrowings"`
	OtherLiabilities Num    `json:"otherLiabilities"`
	TotalLiabilities Num    `json:"totalLiabilities"`
	FixedAssets      Num    `json:"fixedAssets"`
	CWIP             Num    `json:"cwip"`
	Investments      Num    `json:"investments"`
	OtherAssets      Num    `json:"otherAssets"`
	TotalAssets      Num    `json:"totalAssets"`
}

type CashFlow struct {
	Year              string `json:"year"`
	CashFromOperating Num    `json:"cashFromOperating"`
	CashFromInvesting Num    `json:"cashFromInvesting"`
	CashFromFinancing Num    `json:"cashFromFinancing"`
	NetCashFlow       Num    `json:"netCashFlow"`
}

type RatioRow struct {
	Year                string `json:"year"`
	DebtorDays          Num    `json:"debtorDays"`
	InventoryDays       Num    `json:"inventoryDays"`
	DaysPayable         Num    `json:"daysPayable"`
	CashConversionCycle Num    `json:"cashConversionCycle"`
	WorkingCapitalDays  Num    `json:"workingCapitalDays"`
	ROCE                Num    `json:"roce"`
}

type Shareholding struct {
	Date      string `json:"date"`
	Promoters Num    `json:"promoters"`
	FII       Num    `json:"fii"`
	DII       Num    `json:"dii"`
	Public    Num    `json:"public"`
	Others    Num    `json:"others"`
}
