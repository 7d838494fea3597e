package middleware

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	applogger "StockPulse/pkg/logger"
)

// Observer is the downstream the pipeline feeds.
type Observer interface {
	Observe(ctx context.Context, source string, updates []models.SignalUpdate) ([]models.SignalChange, error)
}

// UpdatePipeline sits between the upstream signal feed and the tracker. It
// validates updates and lets at most maxRPS through per stock. Updates
// arriving inside the window are coalesced: only the newest one per stock
// is kept and flushed once the window has passed.
type UpdatePipeline struct {
	next    Observer
	metrics domrepo.Metrics
	l       *applogger.Logger
	maxRPS  int
	flushTO time.Duration
	now     func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
	pending  map[string]pendingUpdate
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type pendingUpdate struct {
	source string
	u      models.SignalUpdate
}

type PipelineOption func(*UpdatePipeline)

// WithMaxRPS sets the max updates per second per stock. Zero disables the
// throttle.
func WithMaxRPS(n int) PipelineOption {
	return func(p *UpdatePipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *UpdatePipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewUpdatePipeline creates a pipeline in front of next.
func NewUpdatePipeline(next Observer, metrics domrepo.Metrics, opts ...PipelineOption) *UpdatePipeline {
	p := &UpdatePipeline{
		next:     next,
		metrics:  metrics,
		l:        applogger.Nop(),
		maxRPS:   5,
		flushTO:  10 * time.Second,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
		pending:  make(map[string]pendingUpdate),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the background flush of coalesced updates.
func (p *UpdatePipeline) Start() {
	p.mu.Lock()
	if p.started || p.maxRPS == 0 {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.window())
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.flush(false)
			}
		}
	}()
}

// Stop halts the flush loop and hands every pending update downstream.
func (p *UpdatePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		p.flush(true)
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
	p.flush(true)
}

// Observe validates updates and forwards those the throttle admits.
// Coalesced updates are not an error.
func (p *UpdatePipeline) Observe(ctx context.Context, source string, updates []models.SignalUpdate) ([]models.SignalChange, error) {
	start := p.now()
	admitted := make([]models.SignalUpdate, 0, len(updates))
	for _, u := range updates {
		if err := u.Validate(); err != nil {
			p.recordError("pipeline_validate")
			return nil, err
		}
		if p.allow(source, u, start) {
			admitted = append(admitted, u)
		}
	}
	if len(admitted) == 0 {
		return nil, nil
	}

	changes, err := p.next.Observe(ctx, source, admitted)
	if err != nil {
		p.recordError("pipeline_process")
		return changes, fmt.Errorf("pipeline downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	}
	return changes, nil
}

// Pending returns how many stocks have a coalesced update waiting.
func (p *UpdatePipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *UpdatePipeline) window() time.Duration {
	return time.Second / time.Duration(p.maxRPS)
}

// allow admits u or parks it as the stock's pending update.
func (p *UpdatePipeline) allow(source string, u models.SignalUpdate, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	last := p.lastSeen[u.StockID]
	if last.IsZero() || now.Sub(last) >= p.window() {
		p.lastSeen[u.StockID] = now
		delete(p.pending, u.StockID)
		return true
	}
	p.pending[u.StockID] = pendingUpdate{source: source, u: u}
	p.recordError("ingest_coalesced")
	return false
}

// flush forwards pending updates whose window has passed, or all of them
// when force is set.
func (p *UpdatePipeline) flush(force bool) {
	now := p.now()
	bySource := make(map[string][]models.SignalUpdate)

	p.mu.Lock()
	for id, pu := range p.pending {
		if !force && now.Sub(p.lastSeen[id]) < p.window() {
			continue
		}
		bySource[pu.source] = append(bySource[pu.source], pu.u)
		p.lastSeen[id] = now
		delete(p.pending, id)
	}
	p.mu.Unlock()

	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, source := range sources {
		batch := bySource[source]
		sort.Slice(batch, func(i, j int) bool { return batch[i].StockID < batch[j].StockID })

		ctx, cancel := context.WithTimeout(context.Background(), p.flushTO)
		if _, err := p.next.Observe(ctx, source, batch); err != nil {
			p.recordError("pipeline_flush")
			p.l.Warn("flush coalesced updates failed",
				applogger.String("source", source),
				applogger.Int("updates", len(batch)),
				applogger.Error(err))
		}
		cancel()
	}
}

func (p *UpdatePipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
