package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	drepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/service"
	"StockPulse/pkg/cache"
	"StockPulse/pkg/logger"
)

// Config picks and tunes the summarizer backend.
type Config struct {
	Provider       string // gemini or placeholder
	Gemini         GeminiConfig
	PlaceholderLag time.Duration
}

// New returns the Gemini backend, or Placeholder when the provider is
// "placeholder" or no API key is set.
func New(ctx context.Context, cfg Config, l *logger.Logger) (service.Summarizer, error) {
	if cfg.Provider == "placeholder" || cfg.Gemini.APIKey == "" {
		if l != nil {
			l.Warn("gemini api key not configured, using placeholder summaries")
		}
		return Placeholder{Delay: cfg.PlaceholderLag}, nil
	}
	return NewGemini(ctx, cfg.Gemini, l)
}

// ClientImages is a Renderer over images the caller already rendered.
type ClientImages []service.Image

func (c ClientImages) Render(context.Context, string, *models.StockDetail) ([]service.Image, error) {
	return c, nil
}

// Input is one pipeline run.
type Input struct {
	Section Section
	Detail  *models.StockDetail
	Chart   ChartState
	// Images overrides the pipeline renderer when non-empty.
	Images []service.Image
}

// Result is a finished summary.
type Result struct {
	Section     Section   `json:"section"`
	Title       string    `json:"title"`
	StockID     string    `json:"stockId"`
	StockName   string    `json:"stockName"`
	Summary     string    `json:"summary"`
	Images      int       `json:"images"`
	Cached      bool      `json:"cached"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Pipeline renders section images, builds the payload and asks the
// summarizer, caching results by content.
type Pipeline struct {
	summarizer service.Summarizer
	renderer   service.Renderer
	cache      cache.Service
	ttl        time.Duration
	metrics    drepo.Metrics
	log        *logger.Logger
}

// NewPipeline wires a pipeline. renderer, c and m may be nil.
func NewPipeline(s service.Summarizer, renderer service.Renderer, c cache.Service, ttl time.Duration, m drepo.Metrics, l *logger.Logger) *Pipeline {
	if renderer == nil {
		renderer = ClientImages(nil)
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Pipeline{summarizer: s, renderer: renderer, cache: c, ttl: ttl, metrics: m, log: l}
}

func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if !in.Section.Valid() {
		return nil, fmt.Errorf("unknown section %q", in.Section)
	}
	if in.Detail == nil {
		return nil, drepo.ErrStockNotFound
	}

	images := in.Images
	if len(images) == 0 {
		var err error
		if images, err = p.renderer.Render(ctx, string(in.Section), in.Detail); err != nil {
			p.log.Warn("chart render failed, summarizing text only",
				logger.String("section", string(in.Section)),
				logger.Error(err),
			)
			images = nil
		}
	}

	data, err := BuildPayload(in.Section, in.Detail, in.Chart)
	if err != nil {
		return nil, err
	}
	req := service.SectionRequest{
		Title:     in.Section.Title(),
		Data:      data,
		StockName: in.Detail.Name,
		Images:    images,
	}

	key := p.cacheKey(in, req)
	if p.cache != nil && key != "" {
		var cached Result
		if err := p.cache.Get(ctx, key, &cached); err == nil {
			cached.Cached = true
			p.record(in.Section, "cached")
			return &cached, nil
		}
	}

	text, err := p.summarizer.Summarize(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.record(in.Section, "timeout")
			return nil, err
		}
		se := Classify(err, len(images) > 0)
		p.record(in.Section, outcome(se))
		return nil, se
	}

	res := &Result{
		Section:     in.Section,
		Title:       req.Title,
		StockID:     in.Detail.ID,
		StockName:   in.Detail.Name,
		Summary:     text,
		Images:      len(images),
		GeneratedAt: time.Now().UTC(),
	}
	if p.cache != nil && key != "" && p.ttl > 0 {
		if err := p.cache.Set(ctx, key, res, p.ttl); err != nil {
			p.log.Warn("summary cache write failed", logger.Error(err))
		}
	}
	p.record(in.Section, "ok")
	return res, nil
}

func (p *Pipeline) cacheKey(in Input, req service.SectionRequest) string {
	b, err := json.Marshal(struct {
		Data   map[string]any  `json:"d"`
		Images []service.Image `json:"i"`
	}{req.Data, req.Images})
	if err != nil {
		return ""
	}
	return cache.GenerateKey("summary", in.Section, in.Detail.ID, cache.HashKey(b))
}

func (p *Pipeline) record(s Section, outcome string) {
	if p.metrics != nil {
		p.metrics.RecordSummary(string(s), outcome)
	}
}

func outcome(e *Error) string {
	switch {
	case errors.Is(e, ErrContentBlocked):
		return "blocked"
	case errors.Is(e, ErrInvalidAPIKey):
		return "invalid_key"
	case errors.Is(e, ErrQuotaExceeded):
		return "quota"
	case errors.Is(e, ErrImagePayload):
		return "image"
	default:
		return "error"
	}
}
