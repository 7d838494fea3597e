package summarizer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockPulse/internal/domain/service"
	"StockPulse/pkg/logger"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
	Timeout     time.Duration
}

// contentGenerator is the slice of *genai.Models the backend uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements service.Summarizer with google.golang.org/genai.
type Gemini struct {
	models contentGenerator
	cfg    GeminiConfig
	log    *logger.Logger
}

// NewGemini creates the genai client for the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig, l *logger.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}
	return newGemini(client.Models, cfg, l), nil
}

func newGemini(m contentGenerator, cfg GeminiConfig, l *logger.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash-latest"
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Gemini{models: m, cfg: cfg, log: l.With(logger.String("component", "gemini"))}
}

// Summarize sends the prompt, then every image as inline data, then the
// closing instruction. Failures come back as *Error.
func (g *Gemini) Summarize(ctx context.Context, req service.SectionRequest) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	parts, err := buildParts(req)
	if err != nil {
		return "", Classify(err, true)
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		g.generationConfig())
	if err != nil {
		g.log.Error("gemini request failed",
			logger.String("section", req.Title),
			logger.Int("images", len(req.Images)),
			logger.Error(err),
		)
		return "", Classify(err, len(req.Images) > 0)
	}
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", Blocked(string(resp.PromptFeedback.BlockReason))
	}

	var text string
	if resp != nil {
		text = strings.TrimSpace(resp.Text())
	}
	if text == "" {
		return "", Classify(errors.New("empty response from model"), false)
	}
	return text, nil
}

func (g *Gemini) generationConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens: g.cfg.MaxTokens,
	}
	for _, c := range []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	} {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}
	return cfg
}

func buildParts(req service.SectionRequest) ([]*genai.Part, error) {
	parts := []*genai.Part{genai.NewPartFromText(BuildPrompt(req))}
	if len(req.Images) == 0 {
		return parts, nil
	}
	for i, img := range req.Images {
		if img.Data == "" || img.MimeType == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return nil, fmt.Errorf("decode image %d: %w", i+1, err)
		}
		parts = append(parts, genai.NewPartFromBytes(raw, img.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(ClosingPrompt(req)))
	return parts, nil
}
