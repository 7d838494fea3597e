package service

import (
	"context"

	"StockPulse/internal/domain/models"
)

// Image is one chart bitmap attached to a summary request.
type Image struct {
	MimeType    string `json:"mimeType"`
	Data        string `json:"data"` // base64, no data-URL prefix
	Description string `json:"description"`
}

// SectionRequest is what a Summarizer is asked to narrate.
type SectionRequest struct {
	Title     string
	Data      map[string]any
	StockName string
	Images    []Image
}

// Summarizer turns section data and images into narrative text.
type Summarizer interface {
	Summarize(ctx context.Context, req SectionRequest) (string, error)
}

// Renderer produces chart bitmaps for one section of a stock.
type Renderer interface {
	Render(ctx context.Context, section string, detail *models.StockDetail) ([]Image, error)
}
