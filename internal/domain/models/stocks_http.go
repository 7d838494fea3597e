package models

// Requests for the stock HTTP endpoints. Defined in domain for consistency and reuse.

type BoardRequest struct {
	Indicators string `query:"indicators" json:"indicators"`
	Viewer     string `query:"viewer" json:"viewer" validate:"omitempty,max=64"`
}

type StockRequest struct {
	ID         string `param:"id" json:"id" validate:"required,max=64"`
	Indicators string `query:"indicators" json:"indicators"`
	Viewer     string `query:"viewer" json:"viewer" validate:"omitempty,max=64"`
}

type PriceChartRequest struct {
	ID        string `param:"id" json:"id" validate:"required,max=64"`
	TimeRange string `query:"time_range" json:"time_range" default:"1y" validate:"oneof=1m 6m 1y 3y 5y max"`
	Period    int    `query:"rsi_period" json:"rsi_period" default:"14" validate:"gte=2,lte=200"`
}

type HistoryRequest struct {
	ID    string `param:"id" json:"id" validate:"required,max=64"`
	Limit int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type SummaryImage struct {
	MimeType    string `json:"mimeType" validate:"required,oneof=image/png image/jpeg image/webp"`
	Data        string `json:"data" validate:"required,base64"`
	Description string `json:"description" validate:"max=200"`
}

type SummaryRequest struct {
	ID        string         `param:"id" json:"-" validate:"required,max=64"`
	Section   string         `json:"section" validate:"required,oneof=price-chart peers quarterly profit-loss balance-sheet cash-flows ratios shareholding"`
	TimeRange string         `json:"timeRange" default:"1y" validate:"oneof=1m 6m 1y 3y 5y max"`
	Images    []SummaryImage `json:"images" validate:"max=4,dive"`
	Async     bool           `json:"async"`
	Viewer    string         `json:"viewer" validate:"omitempty,max=64"`

	// Chart overlays. Absent means shown.
	Show50DMA  *bool `json:"show50dma"`
	Show200DMA *bool `json:"show200dma"`
	ShowVolume *bool `json:"showVolume"`
}

// Flag reads an optional overlay flag, defaulting to true.
func Flag(b *bool) bool { return b == nil || *b }

type SummaryJobRequest struct {
	ID string `param:"id" json:"id" validate:"required,uuid"`
}

type ViewerRequest struct {
	Viewer string `param:"viewer" json:"viewer" validate:"required,max=64"`
}

type ToggleRequest struct {
	Viewer    string `param:"viewer" json:"viewer" validate:"required,max=64"`
	Indicator string `param:"name" json:"name" validate:"required"`
}
