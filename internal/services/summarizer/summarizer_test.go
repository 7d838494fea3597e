package summarizer

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/service"
	"StockPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	contents []*genai.Content
	calls    int
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.contents = contents
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(s, genai.RoleModel),
	}}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		hasImages bool
		kind      error
		msg       string
	}{
		{"api key", errors.New("Error 400: API key not valid. Please pass a valid API key."), false, ErrInvalidAPIKey, "Invalid Gemini API key. Check configuration."},
		{"quota", errors.New("You exceeded your current quota"), false, ErrQuotaExceeded, "API quota exceeded. Try again later."},
		{"exhausted", errors.New("Error 429, Status: RESOURCE_EXHAUSTED"), false, ErrQuotaExceeded, "API quota exceeded. Try again later."},
		{"image", errors.New("Unable to process input image"), false, ErrImagePayload, "Issue processing chart image(s). May be too large or unsupported format."},
		{"payload with images", errors.New("request payload size exceeds the limit"), true, ErrImagePayload, "Issue processing chart image(s). May be too large or unsupported format."},
		{"payload without images", errors.New("request payload size exceeds the limit"), false, ErrSummaryUnavailable, "Sorry, I couldn't generate a summary at this time."},
		{"other", errors.New("connection reset"), false, ErrSummaryUnavailable, "Sorry, I couldn't generate a summary at this time."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, tt.hasImages)
			assert.ErrorIs(t, got, tt.kind)
			assert.Equal(t, tt.msg, got.Error())
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.Nil(t, Classify(nil, false))
}

func TestBlocked(t *testing.T) {
	err := Blocked("SAFETY")
	assert.ErrorIs(t, err, ErrContentBlocked)
	assert.Equal(t, "Content blocked: SAFETY. Adjust content/safety settings.", err.Error())
	assert.Same(t, err, Classify(err, false))
}

func TestPlaceholder(t *testing.T) {
	p := Placeholder{}
	got, err := p.Summarize(context.Background(), service.SectionRequest{
		Title:     "Cash Flows",
		StockName: "Infosys",
		Data:      map[string]any{"tableSummary": 1, "chartAvailable": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Placeholder summary for Cash Flows of Infosys. Textual data: chartAvailable, tableSummary.", got)

	got, err = p.Summarize(context.Background(), service.SectionRequest{
		Title: "Balance Sheet", StockName: "X", Data: map[string]any{},
		Images: []service.Image{{}, {}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, " 2 chart image(s) prepared."))
}

func TestPlaceholderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Placeholder{Delay: time.Hour}.Summarize(ctx, service.SectionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPrompt(t *testing.T) {
	req := service.SectionRequest{
		Title:     TitleProfitLoss,
		StockName: "TCS",
		Data:      map[string]any{"chartAvailable": true},
		Images:    []service.Image{{Description: "Annual Revenue & Net Profit Chart"}},
	}
	p := BuildPrompt(req)
	assert.Contains(t, p, `Summarize the "Profit & Loss" for "TCS".`)
	assert.Contains(t, p, `"chartAvailable": true`)
	assert.Contains(t, p, "Image 1 (Annual Revenue & Net Profit Chart) shows relevant trends.")
	assert.Contains(t, p, "The image (Annual Revenue & Net Profit Chart) likely shows trends")

	req.StockName = ""
	assert.Contains(t, BuildPrompt(req), `for "a stock"`)
}

func TestBuildPromptPriceChartNeedsImage(t *testing.T) {
	req := service.SectionRequest{Title: TitlePriceChart, Data: map[string]any{"currentTimeRange": "6m"}}
	assert.NotContains(t, BuildPrompt(req), "Covers 6m.")

	req.Images = []service.Image{{MimeType: "image/png", Data: "AA=="}}
	assert.Contains(t, BuildPrompt(req), "For this Price Chart (main chart)")
	assert.Contains(t, BuildPrompt(req), "Covers 6m.")
}

func TestGemini_SendsImagesBetweenTextParts(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("  Revenue grew steadily.  ")}
	g := newGemini(gen, GeminiConfig{}, nil)

	png := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	got, err := g.Summarize(context.Background(), service.SectionRequest{
		Title: TitleCashFlows, StockName: "TCS", Data: map[string]any{},
		Images: []service.Image{{MimeType: "image/png", Data: png, Description: "Annual Cash Flow Analysis Chart"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew steadily.", got)

	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 3)
	assert.NotEmpty(t, parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
	assert.Contains(t, parts[2].Text, `for the "Cash Flows" of "TCS", provide the summary.`)
}

func TestGemini_TextOnlyHasSinglePart(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("ok")}
	g := newGemini(gen, GeminiConfig{}, nil)
	_, err := g.Summarize(context.Background(), service.SectionRequest{Title: TitleRatios, Data: map[string]any{}})
	require.NoError(t, err)
	assert.Len(t, gen.contents[0].Parts, 1)
}

func TestGemini_Blocked(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
	}}
	_, err := newGemini(gen, GeminiConfig{}, nil).Summarize(context.Background(), service.SectionRequest{Data: map[string]any{}})
	assert.ErrorIs(t, err, ErrContentBlocked)
}

func TestGemini_ClassifiesBackendErrors(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("API key not valid")}
	_, err := newGemini(gen, GeminiConfig{}, nil).Summarize(context.Background(), service.SectionRequest{Data: map[string]any{}})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestGemini_BadBase64(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("ok")}
	_, err := newGemini(gen, GeminiConfig{}, nil).Summarize(context.Background(), service.SectionRequest{
		Data: map[string]any{}, Images: []service.Image{{MimeType: "image/png", Data: "!!"}},
	})
	assert.ErrorIs(t, err, ErrImagePayload)
	assert.Zero(t, gen.calls)
}

func sampleDetail() *models.StockDetail {
	n := models.NumOf
	return &models.StockDetail{
		ID:   "TCS",
		Name: "Tata Consultancy",
		ProfitAndLoss: []models.ProfitAndLoss{
			{Year: "2019", Sales: n(1)}, {Year: "2020"}, {Year: "2021"},
			{Year: "2022"}, {Year: "2023"}, {Year: "TTM"},
		},
		BalanceSheet: []models.BalanceSheet{
			{Year: "2022", EquityCapital: n(1), Reserves: n(2)},
			{Year: "2023", EquityCapital: n(10), Reserves: n(20), Borrowings: n(5), TotalAssets: n(100)},
		},
		PeerComparison: []models.PeerRow{
			{Name: "Infosys", CMP: n(1500), MarketCap: n(600000), MarketCapFormatted: "6L Cr"},
			{Name: "Wipro", MarketCap: n(250000)},
		},
		Shareholding: []models.Shareholding{{Date: "Mar 2024"}, {Date: "Dec 2023"}},
	}
}

func TestBuildPayload(t *testing.T) {
	d := sampleDetail()

	pl, err := BuildPayload(SectionProfitLoss, d, ChartState{})
	require.NoError(t, err)
	assert.Len(t, pl["tableSummary"], 5)
	assert.Equal(t, true, pl["chartAvailable"])

	bs, err := BuildPayload(SectionBalanceSheet, d, ChartState{})
	require.NoError(t, err)
	latest := bs["tableSummary"].(map[string]any)
	assert.Equal(t, "2023", latest["latestYear"])
	assert.Equal(t, models.NumOf(30), latest["shareholdersEquity"])
	assert.Equal(t, models.NumOf(5), latest["totalDebt"])

	peers, err := BuildPayload(SectionPeers, d, ChartState{})
	require.NoError(t, err)
	rows := peers["tableDataSummary"].([]map[string]any)
	assert.Equal(t, "6L Cr", rows[0]["marketCap"])
	assert.Equal(t, models.NumOf(250000), rows[1]["marketCap"])
	assert.Equal(t, map[string]bool{"cmpChart": true, "peChart": false}, peers["chartsAvailable"])
	assert.Equal(t, "Tata Consultancy", peers["mainCompany"])

	sh, err := BuildPayload(SectionShareholding, d, ChartState{})
	require.NoError(t, err)
	assert.Equal(t, "Mar 2024", sh["latestDistributionDate"])

	pc, err := BuildPayload(SectionPriceChart, d, ChartState{Points: 3, Show50DMA: true})
	require.NoError(t, err)
	assert.Equal(t, "1y", pc["currentTimeRange"])
	assert.Equal(t, true, pc["hasChartData"])
	assert.Equal(t, 3, pc["chartDataPointCount"])

	_, err = BuildPayload("bogus", d, ChartState{})
	assert.Error(t, err)
}

type countingSummarizer struct {
	calls int
	err   error
}

func (c *countingSummarizer) Summarize(_ context.Context, req service.SectionRequest) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "summary of " + req.Title, nil
}

func TestPipeline_CachesByContent(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := &countingSummarizer{}
	p := NewPipeline(s, nil, mc, time.Hour, nil, nil)

	in := Input{Section: SectionCashFlows, Detail: sampleDetail()}
	first, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "summary of Cash Flows", first.Summary)
	assert.False(t, first.Cached)

	second, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, s.calls)

	in.Images = []service.Image{{MimeType: "image/png", Data: "AA==", Description: "chart"}}
	third, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 1, third.Images)
	assert.Equal(t, 2, s.calls)
}

func TestPipeline_ClassifiesErrors(t *testing.T) {
	p := NewPipeline(&countingSummarizer{err: errors.New("quota exceeded")}, nil, nil, 0, nil, nil)
	_, err := p.Run(context.Background(), Input{Section: SectionRatios, Detail: sampleDetail()})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	_, err = p.Run(context.Background(), Input{Section: "bogus", Detail: sampleDetail()})
	assert.Error(t, err)
}

func TestPipeline_UsesRenderer(t *testing.T) {
	s := &countingSummarizer{}
	imgs := ClientImages{{MimeType: "image/png", Data: "AA==", Description: "Quarterly EPS Chart"}}
	p := NewPipeline(s, imgs, nil, 0, nil, nil)

	res, err := p.Run(context.Background(), Input{Section: SectionQuarterly, Detail: sampleDetail()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Images)
}
