package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/service"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/services/summarizer"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/queue"
)

// ErrRateLimited is returned when a viewer asks for summaries too fast.
var ErrRateLimited = errors.New("too many summary requests")

// SummaryJobType is the queue message type for section summaries.
const SummaryJobType = "summary.section"

// SummaryCommand asks for one section summary.
type SummaryCommand struct {
	StockID    string          `json:"stockId"`
	Section    string          `json:"section"`
	TimeRange  string          `json:"timeRange"`
	Show50DMA  bool            `json:"show50dma"`
	Show200DMA bool            `json:"show200dma"`
	ShowVolume bool            `json:"showVolume"`
	Images     []service.Image `json:"images,omitempty"`
	Viewer     string          `json:"viewer,omitempty"`
	Async      bool            `json:"-"`
}

// SummaryOutcome holds either a finished result or the queued job.
type SummaryOutcome struct {
	Result *summarizer.Result `json:"result,omitempty"`
	Job    *queue.Status      `json:"job,omitempty"`
}

// SummaryUseCase runs section summaries inline or through the job queue.
type SummaryUseCase struct {
	provider domrepo.StockProvider
	pipeline *summarizer.Pipeline
	queue    queue.QueueService
	limiter  *ratelimit.Limiter
	l        *applogger.Logger
	timeout  time.Duration
}

// NewSummaryUseCase wires the use case. q and limiter may be nil.
func NewSummaryUseCase(p domrepo.StockProvider, pipeline *summarizer.Pipeline, q queue.QueueService, limiter *ratelimit.Limiter, timeout time.Duration, l *applogger.Logger) *SummaryUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SummaryUseCase{provider: p, pipeline: pipeline, queue: q, limiter: limiter, l: l, timeout: timeout}
}

// Summarize checks the viewer's budget, then queues the command when asked
// and a queue is available, or runs it inline.
func (uc *SummaryUseCase) Summarize(ctx context.Context, cmd SummaryCommand) (*SummaryOutcome, error) {
	if !summarizer.Section(cmd.Section).Valid() {
		return nil, fmt.Errorf("unknown section %q", cmd.Section)
	}
	if uc.limiter != nil {
		key := cmd.Viewer
		if key == "" {
			key = "anonymous"
		}
		if !uc.limiter.Allow(key) {
			return nil, ErrRateLimited
		}
	}

	if cmd.Async && uc.queue != nil {
		id, err := uc.queue.Enqueue(ctx, SummaryJobType, cmd)
		if err != nil {
			return nil, fmt.Errorf("enqueue summary: %w", err)
		}
		st, err := uc.queue.Status(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("job status: %w", err)
		}
		return &SummaryOutcome{Job: st}, nil
	}

	res, err := uc.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &SummaryOutcome{Result: res}, nil
}

// Run loads what the section needs and runs the pipeline.
func (uc *SummaryUseCase) Run(ctx context.Context, cmd SummaryCommand) (*summarizer.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	d, err := uc.provider.GetStock(ctx, cmd.StockID)
	if err != nil {
		return nil, fmt.Errorf("get stock %s: %w", cmd.StockID, err)
	}

	section := summarizer.Section(cmd.Section)
	chart := summarizer.ChartState{
		TimeRange:  models.NormalizeTimeRange(cmd.TimeRange),
		Show50DMA:  cmd.Show50DMA,
		Show200DMA: cmd.Show200DMA,
		ShowVolume: cmd.ShowVolume,
	}
	if section == summarizer.SectionPriceChart {
		pc, err := uc.provider.GetPriceChart(ctx, cmd.StockID, chart.TimeRange)
		if err != nil {
			// the text payload still describes the chart settings
			uc.l.Warn("price chart unavailable for summary",
				applogger.String("stock_id", cmd.StockID), applogger.Error(err))
		} else {
			chart.Points = len(pc.PriceData)
		}
	}

	return uc.pipeline.Run(ctx, summarizer.Input{
		Section: section,
		Detail:  d,
		Chart:   chart,
		Images:  cmd.Images,
	})
}

// JobStatus reports a queued summary.
func (uc *SummaryUseCase) JobStatus(ctx context.Context, id string) (*queue.Status, error) {
	if uc.queue == nil {
		return nil, queue.ErrJobNotFound
	}
	return uc.queue.Status(ctx, id)
}

// SummaryJob runs queued summary commands.
type SummaryJob struct {
	uc *SummaryUseCase
}

func NewSummaryJob(uc *SummaryUseCase) *SummaryJob { return &SummaryJob{uc: uc} }

func (j *SummaryJob) Name() string { return "section-summary" }

func (j *SummaryJob) Type() string { return SummaryJobType }

// Handle retries only failures that may pass on a later attempt.
func (j *SummaryJob) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	cmd, err := queue.ParsePayload[SummaryCommand](payload)
	if err != nil {
		return nil, queue.Permanent(err)
	}
	res, err := j.uc.Run(ctx, *cmd)
	if err != nil {
		if retryable(err) {
			return nil, err
		}
		return nil, queue.Permanent(err)
	}
	return res, nil
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, domrepo.ErrStockNotFound),
		errors.Is(err, summarizer.ErrContentBlocked),
		errors.Is(err, summarizer.ErrInvalidAPIKey),
		errors.Is(err, summarizer.ErrImagePayload):
		return false
	}
	return true
}

var _ queue.Job = (*SummaryJob)(nil)
