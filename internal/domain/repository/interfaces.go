package repository

import (
	"context"
	"errors"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/signal"
)

var (
	// ErrStockNotFound is returned when the provider has no data for an id.
	ErrStockNotFound = errors.New("stock not found")
	// ErrUpstream wraps every non-success answer from the data provider.
	ErrUpstream = errors.New("upstream provider error")
)

// StockProvider is the external Stock Data Provider.
type StockProvider interface {
	ListStocks(ctx context.Context) ([]models.StockSummary, error)
	GetStock(ctx context.Context, id string) (*models.StockDetail, error)
	GetPriceChart(ctx context.Context, id string, r models.TimeRange) (*models.PriceChart, error)
}

// SignalHistory persists overall-signal snapshots.
type SignalHistory interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, snaps []models.SignalSnapshot) error
	Latest(ctx context.Context, stockID string) (*models.SignalSnapshot, error)
	Query(ctx context.Context, stockID string, limit int) ([]models.SignalSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher emits overall-signal change events.
type EventPublisher interface {
	PublishChanges(ctx context.Context, changes []models.SignalChange) error
	Close() error
}

// PreferenceStore keeps each viewer's selection mask.
type PreferenceStore interface {
	GetMask(ctx context.Context, viewer string) (signal.SelectionMask, bool, error)
	SaveMask(ctx context.Context, viewer string, m signal.SelectionMask) error
	DeleteMask(ctx context.Context, viewer string) error
}

type Metrics interface {
	RecordSignal(source string, d signal.Decision)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordSummary(section, outcome string)
	SetSessions(n int)
	RecordStaleDrop()
}
