package repository

import (
	"time"

	pkgch "StockPulse/pkg/clickhouse"
	applogger "StockPulse/pkg/logger"
)

var clickhouseDialect = dialect{
	name: "clickhouse",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS signal_history (
			stock_id    String,
			name        String,
			decision    LowCardinality(String),
			score       Float64,
			mask        String,
			signals     String,
			source      LowCardinality(String),
			recorded_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(recorded_at)
		ORDER BY (stock_id, recorded_at)
		TTL toDateTime(recorded_at) + INTERVAL 180 DAY`,
	},
	timeArg: func(t time.Time) any { return t },
	timeDest: func() (any, func() time.Time) {
		var t time.Time
		return &t, func() time.Time { return t.UTC() }
	},
}

// NewClickHouseHistory stores snapshots in ClickHouse. The client stays
// owned by the caller.
func NewClickHouseHistory(ch *pkgch.Client, l *applogger.Logger) (*SQLHistory, error) {
	if ch == nil || ch.DB() == nil {
		return nil, errNilDB
	}
	return newSQLHistory(ch.DB(), clickhouseDialect, l, false), nil
}
