package repository

import (
	"database/sql"
	"time"

	applogger "StockPulse/pkg/logger"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS signal_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			stock_id    TEXT NOT NULL,
			name        TEXT,
			decision    TEXT NOT NULL,
			score       REAL,
			mask        TEXT,
			signals     TEXT,
			source      TEXT,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_history_stock ON signal_history(stock_id, recorded_at)`,
	},
	// unix millis keep ORDER BY cheap and timezone free
	timeArg: func(t time.Time) any { return t.UnixMilli() },
	timeDest: func() (any, func() time.Time) {
		var ms int64
		return &ms, func() time.Time { return time.UnixMilli(ms).UTC() }
	},
}

// NewSQLiteHistory stores snapshots in a SQLite database opened by
// pkg/sqlite. Close closes db.
func NewSQLiteHistory(db *sql.DB, l *applogger.Logger) (*SQLHistory, error) {
	if db == nil {
		return nil, errNilDB
	}
	return newSQLHistory(db, sqliteDialect, l, true), nil
}
