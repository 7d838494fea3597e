package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).With(String("component", "board"))
	l.Info("computed", Int("rows", 3), Float64("score", 1.5), Bool("cached", true),
		Duration("took", 1500*time.Millisecond), Strings("ids", []string{"a", "b"}))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "computed", entry["message"])
	assert.Equal(t, "board", entry["component"])
	assert.Equal(t, float64(3), entry["rows"])
	assert.Equal(t, 1.5, entry["score"])
	assert.Equal(t, true, entry["cached"])
	assert.Equal(t, float64(1500), entry["took"])
	assert.Equal(t, "a, b", entry["ids"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestCollector_AggregatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	l := Nop()
	l.AttachCollector(c)
	for i := 0; i < 3; i++ {
		l.Error("upstream failed", String("stock", "TCS"), Error(errors.New("boom")))
	}
	l.Error("upstream failed", String("stock", "INFY"))
	assert.Equal(t, 2, c.Pending())

	l.Close()
	require.Equal(t, 1, pub.count())
	assert.Equal(t, "logs", pub.topics[0])
	total := 0
	for _, e := range pub.batches[0] {
		total += e.Count
	}
	assert.Equal(t, 4, total)
}

func TestCollector_ThresholdFlush(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, c.Pending())
}
