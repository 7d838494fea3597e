package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/signal"
	applogger "StockPulse/pkg/logger"
)

// DefaultHistoryLimit caps Query when the caller passes no limit.
const DefaultHistoryLimit = 50

// historyChunk keeps each INSERT under SQLite's bound-variable limit.
const historyChunk = 100

const historyColumns = "stock_id, name, decision, score, mask, signals, source, recorded_at"

// dialect hides the few places where SQLite and ClickHouse differ.
type dialect struct {
	name   string
	schema []string
	// timeArg converts a timestamp to the stored column value.
	timeArg func(time.Time) any
	// timeDest returns a scan target and a reader for it.
	timeDest func() (any, func() time.Time)
}

// SQLHistory implements SignalHistory over database/sql.
type SQLHistory struct {
	db      *sql.DB
	d       dialect
	l       *applogger.Logger
	closeDB bool
}

func newSQLHistory(db *sql.DB, d dialect, l *applogger.Logger, closeDB bool) *SQLHistory {
	if l == nil {
		l = applogger.Nop()
	}
	return &SQLHistory{db: db, d: d, l: l.With(applogger.String("store", d.name)), closeDB: closeDB}
}

// Init creates the table and indexes.
func (s *SQLHistory) Init(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s schema: %w", s.d.name, err)
		}
	}
	return nil
}

// Record inserts the snapshots using multi-row VALUES, historyChunk rows
// per statement.
func (s *SQLHistory) Record(ctx context.Context, snaps []models.SignalSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	start := time.Now()

	for lo := 0; lo < len(snaps); lo += historyChunk {
		hi := lo + historyChunk
		if hi > len(snaps) {
			hi = len(snaps)
		}
		values := make([]string, 0, hi-lo)
		args := make([]any, 0, (hi-lo)*8)
		for _, snap := range snaps[lo:hi] {
			sigs, err := json.Marshal(snap.Signals)
			if err != nil {
				return fmt.Errorf("marshal signals: %w", err)
			}
			at := snap.RecordedAt
			if at.IsZero() {
				at = time.Now()
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, snap.StockID, snap.Name, snap.Decision.String(), snap.Score,
				snap.Mask, string(sigs), snap.Source, s.d.timeArg(at.UTC()))
		}
		q := "INSERT INTO signal_history (" + historyColumns + ") VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("history insert error", applogger.Int("rows", hi-lo), applogger.Error(err))
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}

	s.l.Debug("history recorded",
		applogger.Int("rows", len(snaps)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// Latest returns the newest snapshot, or nil when the stock has none.
func (s *SQLHistory) Latest(ctx context.Context, stockID string) (*models.SignalSnapshot, error) {
	out, err := s.Query(ctx, stockID, 1)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// Query returns up to limit snapshots for stockID, newest first.
func (s *SQLHistory) Query(ctx context.Context, stockID string, limit int) ([]models.SignalSnapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM signal_history WHERE stock_id = ? ORDER BY recorded_at DESC LIMIT ?",
		stockID, limit)
	if err != nil {
		s.l.Error("history query error", applogger.String("stock_id", stockID), applogger.Error(err))
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.SignalSnapshot, 0, limit)
	for rows.Next() {
		var (
			snap     models.SignalSnapshot
			decision string
			sigs     string
		)
		tdest, tread := s.d.timeDest()
		if err := rows.Scan(&snap.StockID, &snap.Name, &decision, &snap.Score,
			&snap.Mask, &sigs, &snap.Source, tdest); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Decision, _ = signal.ParseDecision(decision)
		snap.RecordedAt = tread()
		if sigs != "" && sigs != "null" {
			if err := json.Unmarshal([]byte(sigs), &snap.Signals); err != nil {
				return nil, fmt.Errorf("decode signals: %w", err)
			}
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Health pings the database.
func (s *SQLHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool when this store opened it.
func (s *SQLHistory) Close() error {
	if !s.closeDB {
		return nil
	}
	return s.db.Close()
}

// NoopHistory drops writes; used with storage driver "none".
type NoopHistory struct{}

func NewNoopHistory() *NoopHistory { return &NoopHistory{} }

func (NoopHistory) Init(context.Context) error                            { return nil }
func (NoopHistory) Record(context.Context, []models.SignalSnapshot) error { return nil }
func (NoopHistory) Latest(context.Context, string) (*models.SignalSnapshot, error) {
	return nil, nil
}
func (NoopHistory) Query(context.Context, string, int) ([]models.SignalSnapshot, error) {
	return []models.SignalSnapshot{}, nil
}
func (NoopHistory) Health(context.Context) error { return nil }
func (NoopHistory) Close() error                 { return nil }

var errNilDB = errors.New("nil database handle")
