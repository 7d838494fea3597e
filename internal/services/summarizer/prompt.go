package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"StockPulse/internal/domain/service"
)

const (
	TitlePriceChart   = "Price Chart"
	TitlePeers        = "Peer Comparison"
	TitleQuarterly    = "Quarterly Results"
	TitleProfitLoss   = "Profit & Loss"
	TitleBalanceSheet = "Balance Sheet"
	TitleCashFlows    = "Cash Flows"
	TitleRatios       = "Financial Ratios"
	TitleShareholding = "Shareholding Pattern"
)

// BuildPrompt renders the text part that precedes any images.
func BuildPrompt(req service.SectionRequest) string {
	subject := req.StockName
	if subject == "" {
		subject = "a stock"
	}
	data, err := json.MarshalIndent(req.Data, "", "  ")
	if err != nil {
		data = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a financial analyst AI. Summarize the %q for %q.\n\n", req.Title, subject)
	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "- Analyze provided text and images. Main company is %q.\n", req.StockName)
	b.WriteString("- Explain data/image insights without investment advice.\n")
	b.WriteString("- Highlight key trends an investor should note.\n")
	b.WriteString("- Use simple language, 2-3 short paragraphs.\n")
	b.WriteString("- Stick to provided data.\n\n")
	b.WriteString("Textual Data for the Section:\n")
	b.Write(data)
	b.WriteString("\n")

	if len(req.Images) > 0 {
		b.WriteString("\n\nConsider the provided image(s):")
		for i, img := range req.Images {
			if img.Description != "" {
				fmt.Fprintf(&b, "\nImage %d (%s) shows relevant trends.", i+1, img.Description)
			} else {
				fmt.Fprintf(&b, "\nImage %d shows relevant trends.", i+1)
			}
		}
	}
	fmt.Fprintf(&b, "\n\nBased on this, what are key takeaways from this %q data and image(s)?", req.Title)
	b.WriteString(sectionHints(req))
	return b.String()
}

// ClosingPrompt follows the inline images.
func ClosingPrompt(req service.SectionRequest) string {
	return fmt.Sprintf("\nBased on your analysis of all the provided text and image(s) for the %q of %q, provide the summary.", req.Title, req.StockName)
}

func sectionHints(req service.SectionRequest) string {
	name := req.StockName
	imgs := req.Images
	switch req.Title {
	case TitlePriceChart:
		if len(imgs) == 0 {
			return ""
		}
		img := findImage(imgs, "price chart", 0)
		desc := img.Description
		if desc == "" {
			desc = "main chart"
		}
		return fmt.Sprintf("\nFor this Price Chart (%s), analyze: overall trend, patterns, price vs MAs/volume, current price relative to MAs, volume spikes. Covers %v.",
			desc, req.Data["currentTimeRange"])
	case TitlePeers:
		return fmt.Sprintf("\nFor %q of %q:\n"+
			"- Text data compares %q with peers on CMP, P/E, Market Cap, Div Yield, ROCE.\n"+
			"- The images (%s) show graphical comparisons.\n"+
			"- Analyze %q vs peers from table and charts. Highlight standouts (positive/negative) or alignment with industry. Note significant ratio differences.",
			TitlePeers, name, name, describe(imgs, ", "), name)
	case TitleQuarterly:
		return fmt.Sprintf("\nFor these %q of %q:\n"+
			"- Textual data summarizes recent quarterly figures (Revenue, Net Profit, EPS).\n"+
			"- The images (%s) visualize trends for \"Quarterly Revenue & Net Profit\" and \"Quarterly EPS\".\n"+
			"- Analyze trends in table data and charts. Are revenues, profits, EPS growing, declining, or stable?\n"+
			"- Note significant quarter-over-quarter changes or patterns.\n"+
			"- Briefly explain what these trends might indicate about recent performance.",
			TitleQuarterly, name, describe(imgs, ", "))
	case TitleProfitLoss:
		return fmt.Sprintf("\n\nFor this %q statement of %q:\n"+
			"- The textual data includes a summary of annual P&L figures (Sales, Profits, EPS) and growth metrics (Compounded Sales/Profit Growth, Stock Price CAGR, ROE).\n"+
			"- The image (%s) likely shows trends in annual revenue and net profit.\n"+
			"- Analyze the year-on-year trends from the table and the chart. Is the company showing consistent growth in sales and profitability?\n"+
			"- Comment on the operating profit margin (OPM) trends if discernible from the data.\n"+
			"- Explain what the provided growth metrics (like CAGR for sales/profit, ROE trend) signify about the company's long-term performance and efficiency.",
			TitleProfitLoss, name, firstDescription(imgs, "Annual Financials Chart"))
	case TitleBalanceSheet:
		return fmt.Sprintf("\n\nFor this %q analysis of %q:\n"+
			"- Textual data provides a summary of the latest year's key balance sheet items (Total Assets/Liabilities, Equity, Debt).\n"+
			"- The images (%s) depict the composition of Liabilities and Assets over time.\n"+
			"- From the %q, analyze the structure of the company's liabilities. What are the major components (Equity, Borrowings)? How has the debt level changed over time?\n"+
			"- From the %q, analyze the structure of the company's assets. What are the major components (Fixed Assets, Investments, Other Assets)? How has the asset composition evolved?\n"+
			"- Briefly explain what these compositions and trends might indicate about the company's financial health, leverage, and asset management.",
			TitleBalanceSheet, name, describe(imgs, "; "),
			namedDescription(imgs, "Liabilities", "Liabilities chart"),
			namedDescription(imgs, "Assets", "Assets chart"))
	case TitleCashFlows:
		return fmt.Sprintf("\n\nFor this %q statement of %q:\n"+
			"- Textual data summarizes annual cash flows from Operating, Investing, and Financing activities, along with Net Cash Flow.\n"+
			"- The image (%s) likely visualizes these cash flow components over time, possibly with Operating CF as bars and Net Cash Flow as a line.\n"+
			"- Analyze the trend in Cash from Operating Activities (CFO). Is it consistently positive and growing? This is crucial for sustainable operations.\n"+
			"- What does the Cash from Investing Activities (CFI) indicate? (e.g., negative CFI might mean investments in assets, positive might mean asset sales).\n"+
			"- What does the Cash from Financing Activities (CFF) indicate? (e.g., positive CFF could mean raising debt/equity, negative could mean debt repayment/dividends).\n"+
			"- How has the Net Cash Flow trended? Does the company generally generate positive net cash flow?",
			TitleCashFlows, name, firstDescription(imgs, "Annual Cash Flow Chart"))
	case TitleRatios:
		return fmt.Sprintf("\n\nFor these %q of %q:\n"+
			"- Textual data provides key ratios for the latest year (Debtor Days, Inventory Days, Days Payable, Cash Conversion Cycle, ROCE).\n"+
			"- The images (%s) likely show trends for \"Efficiency Days\" (Debtor, Inventory, Payable Days) and \"ROCE %%\".\n"+
			"- Analyze the trends in Efficiency Days from its chart. Are debtor days increasing or decreasing? How about inventory and payable days? What does the Cash Conversion Cycle trend suggest about working capital management?\n"+
			"- Analyze the ROCE %% trend from its chart. Is the company's Return on Capital Employed improving, declining, or stable? What does this indicate about its profitability and efficiency in using capital?\n"+
			"- Relate these ratio trends to the company's operational efficiency and profitability.",
			TitleRatios, name, describe(imgs, "; "))
	default:
		return ""
	}
}

func describe(imgs []service.Image, sep string) string {
	parts := make([]string, len(imgs))
	for i, img := range imgs {
		parts[i] = img.Description
		if parts[i] == "" {
			parts[i] = fmt.Sprintf("Chart %d", i+1)
		}
	}
	return strings.Join(parts, sep)
}

func firstDescription(imgs []service.Image, fallback string) string {
	if len(imgs) > 0 && imgs[0].Description != "" {
		return imgs[0].Description
	}
	return fallback
}

func namedDescription(imgs []service.Image, needle, fallback string) string {
	for _, img := range imgs {
		if strings.Contains(img.Description, needle) {
			return img.Description
		}
	}
	return fallback
}

// findImage returns the first image whose description contains needle
// (case-insensitive), or imgs[fallback].
func findImage(imgs []service.Image, needle string, fallback int) service.Image {
	for _, img := range imgs {
		if strings.Contains(strings.ToLower(img.Description), needle) {
			return img
		}
	}
	return imgs[fallback]
}
