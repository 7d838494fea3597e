package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/signal"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls [][]models.SignalUpdate
	err   error
}

func (r *recordingObserver) Observe(_ context.Context, _ string, updates []models.SignalUpdate) ([]models.SignalChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]models.SignalUpdate(nil), updates...))
	return nil, r.err
}

func (r *recordingObserver) all() []models.SignalUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SignalUpdate
	for _, c := range r.calls {
		out = append(out, c...)
	}
	return out
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordSignal(string, signal.Decision) {}
func (m *countingMetrics) RecordLatency(string, float64)       {}
func (m *countingMetrics) RecordSummary(string, string)        {}
func (m *countingMetrics) SetSessions(int)                     {}
func (m *countingMetrics) RecordStaleDrop()                    {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func (m *countingMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func update(id, decision string) models.SignalUpdate {
	return models.SignalUpdate{
		StockID: id,
		Signals: []signal.Signal{{Name: signal.EMA, Decision: decision}},
	}
}

func newTestPipeline(next Observer, m *countingMetrics, rps int) (*UpdatePipeline, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	p := NewUpdatePipeline(next, m, WithMaxRPS(rps))
	p.now = clk.Now
	return p, clk
}

func TestPipeline_ForwardsFirstUpdate(t *testing.T) {
	obs := &recordingObserver{}
	p, _ := newTestPipeline(obs, &countingMetrics{}, 5)

	_, err := p.Observe(context.Background(), "ingest", []models.SignalUpdate{update("TCS", "Buy")})
	require.NoError(t, err)
	require.Len(t, obs.all(), 1)
	assert.Equal(t, "TCS", obs.all()[0].StockID)
}

func TestPipeline_CoalescesInsideWindow(t *testing.T) {
	obs := &recordingObserver{}
	m := &countingMetrics{}
	p, clk := newTestPipeline(obs, m, 5)
	ctx := context.Background()

	_, err := p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Buy")})
	require.NoError(t, err)
	clk.Advance(50 * time.Millisecond)
	_, err = p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Sell")})
	require.NoError(t, err)
	_, err = p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Strong Sell")})
	require.NoError(t, err)

	assert.Len(t, obs.all(), 1)
	assert.Equal(t, 1, p.Pending())
	assert.Equal(t, 2, m.count("ingest_coalesced"))

	// not due yet
	p.flush(false)
	assert.Len(t, obs.all(), 1)

	clk.Advance(200 * time.Millisecond)
	p.flush(false)
	got := obs.all()
	require.Len(t, got, 2)
	assert.Equal(t, "Strong Sell", got[1].Signals[0].Decision)
	assert.Zero(t, p.Pending())
}

func TestPipeline_OtherStocksUnaffected(t *testing.T) {
	obs := &recordingObserver{}
	p, _ := newTestPipeline(obs, &countingMetrics{}, 5)
	ctx := context.Background()

	_, err := p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Buy"), update("INFY", "Sell")})
	require.NoError(t, err)
	assert.Len(t, obs.all(), 2)
}

func TestPipeline_FreshUpdateReplacesPending(t *testing.T) {
	obs := &recordingObserver{}
	p, clk := newTestPipeline(obs, &countingMetrics{}, 5)
	ctx := context.Background()

	_, _ = p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Buy")})
	clk.Advance(10 * time.Millisecond)
	_, _ = p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Sell")})
	require.Equal(t, 1, p.Pending())

	clk.Advance(time.Second)
	_, _ = p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Neutral")})
	assert.Zero(t, p.Pending())

	p.flush(true)
	got := obs.all()
	require.Len(t, got, 2)
	assert.Equal(t, "Neutral", got[1].Signals[0].Decision)
}

func TestPipeline_RejectsInvalid(t *testing.T) {
	obs := &recordingObserver{}
	m := &countingMetrics{}
	p, _ := newTestPipeline(obs, m, 5)

	_, err := p.Observe(context.Background(), "ingest", []models.SignalUpdate{{StockID: ""}})
	require.ErrorIs(t, err, models.ErrInvalidUpdate)
	_, err = p.Observe(context.Background(), "ingest", []models.SignalUpdate{{StockID: "TCS", Signals: []signal.Signal{{}}}})
	require.ErrorIs(t, err, models.ErrInvalidUpdate)
	assert.Empty(t, obs.all())
	assert.Equal(t, 2, m.count("pipeline_validate"))
}

func TestPipeline_DownstreamError(t *testing.T) {
	obs := &recordingObserver{err: errors.New("boom")}
	m := &countingMetrics{}
	p, _ := newTestPipeline(obs, m, 5)

	_, err := p.Observe(context.Background(), "ingest", []models.SignalUpdate{update("TCS", "Buy")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, m.count("pipeline_process"))
}

func TestPipeline_ZeroRPSDisablesThrottle(t *testing.T) {
	obs := &recordingObserver{}
	p, _ := newTestPipeline(obs, &countingMetrics{}, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Buy")})
		require.NoError(t, err)
	}
	assert.Len(t, obs.all(), 3)
}

func TestPipeline_StopFlushesPending(t *testing.T) {
	obs := &recordingObserver{}
	p, clk := newTestPipeline(obs, &countingMetrics{}, 5)
	p.Start()
	ctx := context.Background()

	_, _ = p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Buy")})
	_, _ = p.Observe(ctx, "ingest", []models.SignalUpdate{update("TCS", "Sell")})
	clk.Advance(time.Millisecond)
	p.Stop()

	got := obs.all()
	require.Len(t, got, 2)
	assert.Equal(t, "Sell", got[1].Signals[0].Decision)
	assert.Zero(t, p.Pending())
}
