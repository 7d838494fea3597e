package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/domain/signal"
	pkgkafka "StockPulse/pkg/kafka"
	applogger "StockPulse/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Fanout pushes fresh per-stock signals to live viewers.
type Fanout interface {
	Broadcast(update models.SignalUpdate)
}

// Sources recorded on snapshots.
const (
	SourceRefresh = "refresh"
	SourceIngest  = "ingest"
)

// SignalTracker computes default-mask decisions for observed stocks,
// records them and publishes a change whenever a stock's decision moves.
type SignalTracker struct {
	history   domrepo.SignalHistory
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	fanout    Fanout
	l         *applogger.Logger
	now       func() time.Time

	mu   sync.Mutex
	last map[string]signal.Decision
}

func NewSignalTracker(h domrepo.SignalHistory, p domrepo.EventPublisher, m domrepo.Metrics, l *applogger.Logger) *SignalTracker {
	if l == nil {
		l = applogger.Nop()
	}
	return &SignalTracker{
		history:   h,
		publisher: p,
		metrics:   m,
		l:         l,
		now:       time.Now,
		last:      make(map[string]signal.Decision),
	}
}

// SetFanout attaches live viewers. Called once during wiring.
func (t *SignalTracker) SetFanout(f Fanout) { t.fanout = f }

// Observe records updates from source and returns the decision changes.
// Recording and publishing failures are logged and returned joined; fanout
// still happens so viewers are not starved by a storage outage.
func (t *SignalTracker) Observe(ctx context.Context, source string, updates []models.SignalUpdate) ([]models.SignalChange, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	mask := signal.DefaultMask()
	now := t.now().UTC()

	snaps := make([]models.SignalSnapshot, 0, len(updates))
	var changes []models.SignalChange
	for _, u := range updates {
		b := signal.Evaluate(u.Signals, mask)
		snaps = append(snaps, models.SignalSnapshot{
			StockID:    u.StockID,
			Name:       u.Name,
			Decision:   b.Decision,
			Score:      b.Total,
			Mask:       mask.String(),
			Signals:    u.Signals,
			Source:     source,
			RecordedAt: now,
		})
		if prev, moved := t.swap(ctx, u.StockID, b.Decision); moved {
			changes = append(changes, models.SignalChange{
				StockID:  u.StockID,
				Name:     u.Name,
				Previous: prev,
				Current:  b.Decision,
				Score:    b.Total,
				At:       now,
			})
		}
		if t.metrics != nil {
			t.metrics.RecordSignal(source, b.Decision)
		}
	}

	var errs []error
	if t.history != nil {
		if err := t.history.Record(ctx, snaps); err != nil {
			t.l.Error("record snapshots failed", applogger.String("source", source), applogger.Error(err))
			errs = append(errs, fmt.Errorf("record: %w", err))
		}
	}
	if t.publisher != nil && len(changes) > 0 {
		if err := t.publisher.PublishChanges(ctx, changes); err != nil {
			t.l.Error("publish changes failed", applogger.Int("changes", len(changes)), applogger.Error(err))
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	if t.fanout != nil {
		for _, u := range updates {
			t.fanout.Broadcast(u)
		}
	}
	return changes, errors.Join(errs...)
}

// swap stores d as the stock's latest decision. The first sighting of a
// stock is compared with the newest recorded snapshot, if any.
func (t *SignalTracker) swap(ctx context.Context, stockID string, d signal.Decision) (signal.Decision, bool) {
	t.mu.Lock()
	prev, known := t.last[stockID]
	t.mu.Unlock()

	if !known && t.history != nil {
		if snap, err := t.history.Latest(ctx, stockID); err == nil && snap != nil {
			prev, known = snap.Decision, true
		}
	}

	t.mu.Lock()
	t.last[stockID] = d
	t.mu.Unlock()
	return prev, known && prev != d
}

// History returns recorded snapshots for one stock, newest first.
func (t *SignalTracker) History(ctx context.Context, stockID string, limit int) ([]models.SignalSnapshot, error) {
	if t.history == nil {
		return []models.SignalSnapshot{}, nil
	}
	out, err := t.history.Query(ctx, stockID, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", stockID, err)
	}
	return out, nil
}

type listInvalidator interface {
	InvalidateList(ctx context.Context) error
}

// RefreshUseCase is the scheduled signal refresh.
type RefreshUseCase struct {
	provider domrepo.StockProvider
	tracker  *SignalTracker
	l        *applogger.Logger
}

func NewRefreshUseCase(p domrepo.StockProvider, t *SignalTracker, l *applogger.Logger) *RefreshUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &RefreshUseCase{provider: p, tracker: t, l: l}
}

// Run drops the cached list, fetches it fresh and observes every stock.
func (uc *RefreshUseCase) Run(ctx context.Context) error {
	if inv, ok := uc.provider.(listInvalidator); ok {
		if err := inv.InvalidateList(ctx); err != nil {
			uc.l.Warn("invalidate list cache failed", applogger.Error(err))
		}
	}
	list, err := uc.provider.ListStocks(ctx)
	if err != nil {
		return fmt.Errorf("refresh list: %w", err)
	}

	updates := make([]models.SignalUpdate, len(list))
	ts := time.Now().Unix()
	for i, s := range list {
		updates[i] = models.SignalUpdate{StockID: s.ID, Name: s.Name, Signals: s.Signals, Timestamp: ts}
	}
	changes, err := uc.tracker.Observe(ctx, SourceRefresh, updates)
	uc.l.Info("signals refreshed",
		applogger.Int("stocks", len(list)),
		applogger.Int("changes", len(changes)))
	return err
}

type stockInvalidator interface {
	InvalidateStock(ctx context.Context, id string) error
}

// SignalObserver accepts signal updates. Satisfied by *SignalTracker and by
// the throttling pipeline placed in front of it.
type SignalObserver interface {
	Observe(ctx context.Context, source string, updates []models.SignalUpdate) ([]models.SignalChange, error)
}

var _ SignalObserver = (*SignalTracker)(nil)

// SignalIngestHandler consumes upstream per-stock signal updates.
type SignalIngestHandler struct {
	topic    string
	tracker  SignalObserver
	provider domrepo.StockProvider
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewSignalIngestHandler(topic string, t SignalObserver, p domrepo.StockProvider, m domrepo.Metrics, l *applogger.Logger) *SignalIngestHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &SignalIngestHandler{topic: topic, tracker: t, provider: p, metrics: m, l: l}
}

func (h *SignalIngestHandler) Topic() string { return h.topic }

// Handle decodes one SignalUpdate. Malformed payloads are marked permanent
// so the consumer skips retries and dead-letters them.
func (h *SignalIngestHandler) Handle(ctx context.Context, b []byte) error {
	var u models.SignalUpdate
	if err := json.Unmarshal(b, &u); err != nil {
		h.recordError("consumer_unmarshal")
		return pkgkafka.Permanent("ERR_DECODE", err)
	}
	if err := u.Validate(); err != nil {
		h.recordError("consumer_validate")
		return pkgkafka.Permanent("ERR_VALIDATION", err)
	}
	if u.Timestamp > 0 && h.metrics != nil {
		ts := u.Timestamp
		if ts > 1e11 { // ms
			ts /= 1000
		}
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(ts, 0)).Seconds())
	}

	// the cached detail carries the old signals
	if inv, ok := h.provider.(stockInvalidator); ok {
		if err := inv.InvalidateStock(ctx, u.StockID); err != nil {
			h.l.Warn("invalidate stock cache failed",
				applogger.String("stock_id", u.StockID),
				applogger.Error(err))
		}
	}
	_, err := h.tracker.Observe(ctx, SourceIngest, []models.SignalUpdate{u})
	if errors.Is(err, models.ErrInvalidUpdate) {
		return pkgkafka.Permanent("ERR_VALIDATION", err)
	}
	return err
}

// IngestFailureHook counts every failed ingest attempt, retries included.
func IngestFailureHook(m domrepo.Metrics) pkgkafka.ConsumerHook {
	if m == nil {
		return nil
	}
	return pkgkafka.HookFuncs{Err: func(context.Context, kafka.Message, error) {
		m.RecordError("consumer_attempt")
	}}
}

func (h *SignalIngestHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*SignalIngestHandler)(nil)
