package usecase

import (
	"context"
	"errors"
	"sync"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/signal"
)

func sig(name signal.IndicatorName, decision string) signal.Signal {
	return signal.Signal{Name: name, Decision: decision}
}

type fakeProvider struct {
	mu      sync.Mutex
	list    []models.StockSummary
	stocks  map[string]*models.StockDetail
	chart   *models.PriceChart
	listErr error
	// block holds GetStock for an id until the channel closes
	block map[string]chan struct{}

	chartRanges     []models.TimeRange
	listInvalidated int
	invalidated     []string
	invalidateErr   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		stocks: map[string]*models.StockDetail{},
		block:  map[string]chan struct{}{},
	}
}

func (p *fakeProvider) ListStocks(context.Context) ([]models.StockSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return append([]models.StockSummary(nil), p.list...), nil
}

func (p *fakeProvider) GetStock(ctx context.Context, id string) (*models.StockDetail, error) {
	p.mu.Lock()
	wait := p.block[id]
	d, ok := p.stocks[id]
	p.mu.Unlock()
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, domrepo.ErrStockNotFound
	}
	cp := *d
	return &cp, nil
}

func (p *fakeProvider) GetPriceChart(_ context.Context, id string, r models.TimeRange) (*models.PriceChart, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chartRanges = append(p.chartRanges, r)
	if _, ok := p.stocks[id]; !ok {
		return nil, domrepo.ErrStockNotFound
	}
	if p.chart == nil {
		return &models.PriceChart{}, nil
	}
	return p.chart, nil
}

func (p *fakeProvider) InvalidateList(context.Context) error {
	p.mu.Lock()
	p.listInvalidated++
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) InvalidateStock(_ context.Context, id string) error {
	p.mu.Lock()
	p.invalidated = append(p.invalidated, id)
	p.mu.Unlock()
	return p.invalidateErr
}

type fakeHistory struct {
	mu        sync.Mutex
	recorded  []models.SignalSnapshot
	latest    map[string]*models.SignalSnapshot
	recordErr error
}

func (h *fakeHistory) Init(context.Context) error { return nil }

func (h *fakeHistory) Record(_ context.Context, snaps []models.SignalSnapshot) error {
	if h.recordErr != nil {
		return h.recordErr
	}
	h.mu.Lock()
	h.recorded = append(h.recorded, snaps...)
	h.mu.Unlock()
	return nil
}

func (h *fakeHistory) Latest(_ context.Context, id string) (*models.SignalSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest[id], nil
}

func (h *fakeHistory) Query(_ context.Context, id string, limit int) ([]models.SignalSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.SignalSnapshot
	for i := len(h.recorded) - 1; i >= 0 && len(out) < limit; i-- {
		if h.recorded[i].StockID == id {
			out = append(out, h.recorded[i])
		}
	}
	return out, nil
}

func (h *fakeHistory) Health(context.Context) error { return nil }
func (h *fakeHistory) Close() error                 { return nil }

type fakePublisher struct {
	mu      sync.Mutex
	changes []models.SignalChange
}

func (p *fakePublisher) PublishChanges(_ context.Context, c []models.SignalChange) error {
	p.mu.Lock()
	p.changes = append(p.changes, c...)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type memPrefs struct {
	mu     sync.Mutex
	masks  map[string]string
	getErr error
}

func newMemPrefs() *memPrefs { return &memPrefs{masks: map[string]string{}} }

func (s *memPrefs) GetMask(_ context.Context, viewer string) (signal.SelectionMask, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	raw, ok := s.masks[viewer]
	if !ok {
		return nil, false, nil
	}
	m, err := signal.ParseMask(raw)
	if err != nil {
		return nil, false, nil
	}
	return m, true, nil
}

func (s *memPrefs) SaveMask(_ context.Context, viewer string, m signal.SelectionMask) error {
	s.mu.Lock()
	s.masks[viewer] = m.String()
	s.mu.Unlock()
	return nil
}

func (s *memPrefs) DeleteMask(_ context.Context, viewer string) error {
	s.mu.Lock()
	delete(s.masks, viewer)
	s.mu.Unlock()
	return nil
}

type fakeMetrics struct {
	mu         sync.Mutex
	signals    map[string]int
	errors     map[string]int
	staleDrops int
	sessions   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{signals: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordSignal(source string, d signal.Decision) {
	m.mu.Lock()
	m.signals[source+"/"+d.String()]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) RecordSummary(string, string) {}

func (m *fakeMetrics) SetSessions(n int) {
	m.mu.Lock()
	m.sessions = n
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordStaleDrop() {
	m.mu.Lock()
	m.staleDrops++
	m.mu.Unlock()
}

func (m *fakeMetrics) stale() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleDrops
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

var errBoom = errors.New("boom")

// fixture is a provider with two stocks: tcs leans bullish, infy bearish.
func fixture() *fakeProvider {
	p := newFakeProvider()
	tcsSignals := []signal.Signal{sig(signal.EMA, "Buy"), sig(signal.RSI, "Sell")}
	infySignals := []signal.Signal{sig(signal.EMA, "Sell"), sig(signal.MACD, "Strong Sell")}
	p.list = []models.StockSummary{
		{ID: "tcs", Name: "TCS", CurrentPrice: models.NumOf(3500), Signals: tcsSignals},
		{ID: "infy", Name: "Infosys", CurrentPrice: models.NumOf(1500), Signals: infySignals},
	}
	p.stocks["tcs"] = &models.StockDetail{ID: "tcs", Name: "TCS", CurrentPrice: models.NumOf(3500), PreviousClose: models.NumOf(3400), Signals: tcsSignals}
	p.stocks["infy"] = &models.StockDetail{ID: "infy", Name: "Infosys", CurrentPrice: models.NumOf(1500), Signals: infySignals}
	return p
}
